// Command fxpricer runs the FX-aware pricing pipeline from the terminal:
// single runs, batches, regression suites and memory snapshot inspection.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fx_pricing_agents/internal/agents"
	"fx_pricing_agents/internal/batch"
	"fx_pricing_agents/internal/config"
	"fx_pricing_agents/internal/core"
	"fx_pricing_agents/internal/logger"
	"fx_pricing_agents/internal/services"
	"fx_pricing_agents/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fxpricer",
	Short: "FX-aware pricing decision briefs for imported products",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newRegressionCmd())
	rootCmd.AddCommand(newMemoryCmd())
}

func main() {
	// A missing .env is fine; the API key may come from the environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fxpricer: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.YAMLConfig
	pipeline *core.Pipeline
	runner   *batch.Runner
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.Log); err != nil {
		return nil, err
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	invoker, err := agents.NewModelInvoker(ctx, config.BuildModelConfig(cfg, apiKey))
	if err != nil {
		return nil, err
	}

	pipeline, err := core.NewPipeline(invoker, config.BuildMemoryService(cfg), services.NewVendorFXClient(), config.BuildPipelineOptions(cfg))
	if err != nil {
		return nil, err
	}
	runner, err := batch.NewRunner(pipeline)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, pipeline: pipeline, runner: runner}, nil
}

// saveSnapshot persists the memory store to Redis when a URL is configured.
func (a *app) saveSnapshot(ctx context.Context) error {
	if a.cfg.Redis.URL == "" {
		return nil
	}
	sink, err := storage.NewSnapshotSink(ctx, a.cfg.Redis.URL, config.RedisTTL(a.cfg))
	if err != nil {
		return err
	}
	defer sink.Close()
	return sink.SaveSnapshot(ctx, a.pipeline.Memory().ExportSnapshot("", ""))
}

func newRunCmd() *cobra.Command {
	var cfg core.PricingConfig
	var userID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pricing pipeline for one product",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}

			result, err := a.pipeline.Run(ctx, cfg, userID)
			if err != nil {
				return err
			}

			fmt.Println(result.DecisionBriefText)
			fmt.Println()
			fmt.Println("Structured summary:")
			fmt.Println(result.StructuredSummaryJSON)
			fmt.Println()
			fmt.Println("Evaluation:")
			fmt.Println(result.EvaluationJSON)
			fmt.Println()
			writeObservabilityTable(result)

			digest := a.pipeline.Memory().ConsolidateRecentSessions(cfg.ProductName, cfg.Region, 0, 0)
			fmt.Println()
			fmt.Println(digest)

			if err := a.saveSnapshot(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to save memory snapshot to redis")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.ProductName, "product", "", "product name (required)")
	cmd.Flags().StringVar(&cfg.Category, "category", "general", "product category")
	cmd.Flags().StringVar(&cfg.Region, "region", "US", "sales region")
	cmd.Flags().StringVar(&cfg.ReportingCurrency, "reporting-currency", "USD", "reporting currency")
	cmd.Flags().Float64Var(&cfg.PurchasePrice, "purchase-price", 0, "purchase price per unit (required)")
	cmd.Flags().StringVar(&cfg.PurchaseCurrency, "purchase-currency", "CNY", "purchase currency")
	cmd.Flags().IntVar(&cfg.VolumeUnits, "volume", 1, "volume units")
	cmd.Flags().Float64Var(&cfg.CurrentOrPlannedPrice, "price", 0, "current or planned selling price (required)")
	cmd.Flags().Float64Var(&cfg.TargetMarginPct, "target-margin", 0.25, "target margin as a fraction")
	cmd.Flags().StringVar(&cfg.ManagerNotes, "notes", "", "manager notes")
	cmd.Flags().StringVar(&userID, "user", "", "user id for observability attribution")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("purchase-price")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func newBatchCmd() *cobra.Command {
	var file string
	var userIDPrefix string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the pipeline for every config in a YAML batch file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			configs, err := loadBatchFile(file)
			if err != nil {
				return err
			}

			out, err := a.runner.RunBatch(ctx, configs, userIDPrefix)
			if err != nil {
				return err
			}

			writeBatchTable(out)
			summary := batch.SummarizeBatch(out)
			fmt.Printf("\n%d items in %.1f ms (avg %.1f ms/item, avg %.1f model calls)\n",
				summary.ItemCount, summary.TotalDurationMS, summary.AvgItemDurationMS, summary.AvgModelInvocation)

			if err := a.saveSnapshot(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to save memory snapshot to redis")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file with a list of pricing configs (required)")
	cmd.Flags().StringVar(&userIDPrefix, "user-prefix", "batch-manager", "user id prefix")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newRegressionCmd() *cobra.Command {
	var file string
	var report string

	cmd := &cobra.Command{
		Use:   "regression",
		Short: "Run a regression suite and export a health report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			cases, err := loadBatchFile(file)
			if err != nil {
				return err
			}

			results := a.runner.RunRegression(ctx, cases, "")
			writeRegressionTable(results)

			summary := batch.SummarizeRegression(results)
			fmt.Printf("\n%d/%d passed (pass rate %.0f%%)\n",
				summary.PassCount, summary.CaseCount, summary.PassRate*100)
			for issue, count := range summary.IssueFrequency {
				fmt.Printf("  %s: %d\n", issue, count)
			}

			written, err := batch.ExportRegressionReport(results, report)
			if err != nil {
				return err
			}
			fmt.Printf("\nReport written to %s\n", written)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file with a list of test cases (required)")
	cmd.Flags().StringVar(&report, "report", "regression_report.json", "output report path")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newMemoryCmd() *cobra.Command {
	var product string
	var region string

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect a stored memory snapshot from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := logger.InitLogger(cfg.Log); err != nil {
				return err
			}
			if cfg.Redis.URL == "" {
				return fmt.Errorf("redis.url must be configured for memory inspection")
			}

			sink, err := storage.NewSnapshotSink(ctx, cfg.Redis.URL, config.RedisTTL(cfg))
			if err != nil {
				return err
			}
			defer sink.Close()

			label := fmt.Sprintf("%s|%s",
				strings.ToLower(strings.TrimSpace(product)),
				strings.ToLower(strings.TrimSpace(region)))
			entries, err := sink.LoadSnapshot(ctx, label)
			if err != nil {
				return err
			}

			writeMemoryTable(label, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "product name (required)")
	cmd.Flags().StringVar(&region, "region", "", "region (required)")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func loadBatchFile(path string) ([]core.PricingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading batch file: %w", err)
	}
	var configs []core.PricingConfig
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("error parsing batch file: %w", err)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("batch file %s contains no configs", path)
	}
	return configs, nil
}

func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleRounded)
	return tw
}

func writeObservabilityTable(result *core.Result) {
	d := result.ObservabilityDetailed

	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})
	tw.AppendRows([]table.Row{
		{"model invocations", d.ModelInvocations},
		{"tool invocations", d.ToolInvocations},
		{"agent invocations", d.AgentInvocations},
		{"total model time (ms)", fmt.Sprintf("%.1f", d.TotalModelTimeMS)},
		{"prompt chars", d.TotalPromptChars},
		{"response chars", d.TotalResponseChars},
		{"errors", d.ErrorCount},
	})
	tw.Render()
}

func writeBatchTable(out *batch.Output) {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"#", "Product", "Region", "Duration (ms)", "Model", "Tool", "Agent"})
	for _, m := range out.Meta {
		tw.AppendRow(table.Row{
			m.Index, m.ProductName, m.Region,
			fmt.Sprintf("%.1f", m.DurationMS),
			m.ModelInvocations, m.ToolInvocations, m.AgentInvocations,
		})
	}
	tw.Render()
}

func writeRegressionTable(results []batch.RegressionResult) {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"#", "Product", "Region", "Status", "Issues"})
	for _, item := range results {
		status := "PASS"
		if !item.Health.Passed {
			status = "FAIL"
		}
		tw.AppendRow(table.Row{
			item.Index, item.Input.ProductName, item.Input.Region,
			status, strings.Join(item.Health.Issues, ", "),
		})
	}
	tw.Render()
}

func writeMemoryTable(label string, entries []storage.Entry) {
	fmt.Printf("Snapshot %s (%d sessions)\n", label, len(entries))

	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Created", "Currency", "Score", "Notes"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 60},
	})
	for _, e := range entries {
		score := "-"
		if e.EvaluationOverallScore != nil {
			score = fmt.Sprintf("%.1f", *e.EvaluationOverallScore)
		}
		tw.AppendRow(table.Row{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.ReportingCurrency, score, e.ManagerNotes,
		})
	}
	tw.Render()
}
