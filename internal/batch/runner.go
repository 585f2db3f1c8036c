// Package batch runs the pricing pipeline over many product configurations
// and layers health checks, regression summaries and report export on top.
package batch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"fx_pricing_agents/internal/core"
	"fx_pricing_agents/internal/logger"
)

// minBriefChars is the shortest decision brief considered usable.
const minBriefChars = 400

// ItemMeta is the lightweight observability record kept per batch item.
type ItemMeta struct {
	Index              int     `json:"index"`
	ProductName        string  `json:"product_name"`
	Region             string  `json:"region"`
	DurationMS         float64 `json:"duration_ms"`
	ModelInvocations   int     `json:"model_invocations"`
	ToolInvocations    int     `json:"tool_invocations"`
	AgentInvocations   int     `json:"agent_invocations"`
	TotalPromptChars   int     `json:"total_prompt_chars"`
	TotalResponseChars int     `json:"total_response_chars"`
}

// Output collects per-item results and meta for one batch run.
type Output struct {
	Results         []*core.Result `json:"batch_results"`
	Meta            []ItemMeta     `json:"batch_meta"`
	TotalDurationMS float64        `json:"total_duration_ms"`
}

// Health is the outcome of the basic checks on one pipeline result.
type Health struct {
	Passed     bool     `json:"passed"`
	IssueCount int      `json:"issue_count"`
	Issues     []string `json:"issues"`
}

// RegressionResult ties one test case to its health verdict and telemetry.
type RegressionResult struct {
	Index  int                `json:"index"`
	Input  core.PricingConfig `json:"input"`
	Health Health             `json:"health"`

	ObservabilitySummary any `json:"observability_summary"`
}

// Summary aggregates durations and invocation counts across a batch.
type Summary struct {
	ItemCount          int     `json:"item_count"`
	TotalDurationMS    float64 `json:"total_duration_ms"`
	AvgItemDurationMS  float64 `json:"avg_item_duration_ms"`
	AvgModelInvocation float64 `json:"avg_model_invocations"`
	AvgToolInvocation  float64 `json:"avg_tool_invocations"`
	AvgAgentInvocation float64 `json:"avg_agent_invocations"`
	AvgPromptChars     float64 `json:"avg_prompt_chars"`
	AvgResponseChars   float64 `json:"avg_response_chars"`
}

// RegressionSummary holds pass rates and issue frequencies for a suite.
type RegressionSummary struct {
	CaseCount      int            `json:"case_count"`
	PassCount      int            `json:"pass_count"`
	FailCount      int            `json:"fail_count"`
	PassRate       float64        `json:"pass_rate"`
	IssueFrequency map[string]int `json:"issue_frequency"`
}

// Runner executes a pipeline across batches of configs.
type Runner struct {
	pipeline *core.Pipeline
}

func NewRunner(pipeline *core.Pipeline) (*Runner, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	return &Runner{pipeline: pipeline}, nil
}

// RunBatch runs the pipeline for each config in order, collecting results and
// lightweight meta. The first stage failure aborts the batch.
func (r *Runner) RunBatch(ctx context.Context, configs []core.PricingConfig, userIDPrefix string) (*Output, error) {
	if userIDPrefix == "" {
		userIDPrefix = "batch-manager"
	}

	out := &Output{}
	totalStart := time.Now()

	for i, cfg := range configs {
		logger.Info().
			Int("index", i+1).
			Int("total", len(configs)).
			Str("product", cfg.ProductName).
			Str("region", cfg.Region).
			Msg("starting batch item")
		start := time.Now()

		result, err := r.pipeline.Run(ctx, cfg, fmt.Sprintf("%s:%d", userIDPrefix, i+1))
		if err != nil {
			return nil, fmt.Errorf("batch item %d (%s) failed: %w", i+1, cfg.ProductName, err)
		}

		durationMS := float64(time.Since(start).Nanoseconds()) / 1e6
		detailed := result.ObservabilityDetailed
		out.Meta = append(out.Meta, ItemMeta{
			Index:              i + 1,
			ProductName:        cfg.ProductName,
			Region:             cfg.Region,
			DurationMS:         durationMS,
			ModelInvocations:   detailed.ModelInvocations,
			ToolInvocations:    detailed.ToolInvocations,
			AgentInvocations:   detailed.AgentInvocations,
			TotalPromptChars:   detailed.TotalPromptChars,
			TotalResponseChars: detailed.TotalResponseChars,
		})
		out.Results = append(out.Results, result)

		logger.Info().
			Int("index", i+1).
			Float64("duration_ms", durationMS).
			Msg("batch item done")
	}

	out.TotalDurationMS = float64(time.Since(totalStart).Nanoseconds()) / 1e6
	return out, nil
}

// EvaluateResult performs basic health checks on one pipeline result.
func EvaluateResult(result *core.Result) Health {
	var issues []string

	structValid := gjson.Valid(result.StructuredSummaryJSON)
	if !structValid {
		issues = append(issues, "structured_summary_not_valid_json")
	}
	evalValid := gjson.Valid(result.EvaluationJSON)
	if !evalValid {
		issues = append(issues, "evaluation_not_valid_json")
	}

	brief := strings.TrimSpace(result.DecisionBriefText)
	if brief == "" {
		issues = append(issues, "empty_decision_brief")
	}
	if len(brief) < minBriefChars {
		issues = append(issues, "decision_brief_too_short")
	}

	if result.ObservabilitySummary.ModelInvocations == 0 {
		issues = append(issues, "no_model_invocations")
	}

	if structValid && !gjson.Parse(result.StructuredSummaryJSON).IsObject() {
		issues = append(issues, "structured_summary_not_dict")
	}
	if evalValid && !gjson.Parse(result.EvaluationJSON).IsObject() {
		issues = append(issues, "evaluation_not_dict")
	}

	return Health{
		Passed:     len(issues) == 0,
		IssueCount: len(issues),
		Issues:     issues,
	}
}

// RunRegression runs every test case and evaluates each result. A case whose
// pipeline run fails is recorded as a failed case with a "pipeline_error"
// issue instead of aborting the suite.
func (r *Runner) RunRegression(ctx context.Context, testCases []core.PricingConfig, userIDPrefix string) []RegressionResult {
	if userIDPrefix == "" {
		userIDPrefix = "regression"
	}

	results := make([]RegressionResult, 0, len(testCases))
	for i, cfg := range testCases {
		logger.Info().
			Int("case", i+1).
			Int("total", len(testCases)).
			Str("product", cfg.ProductName).
			Str("region", cfg.Region).
			Msg("running regression case")

		item := RegressionResult{Index: i + 1, Input: cfg}

		result, err := r.pipeline.Run(ctx, cfg, fmt.Sprintf("%s:%d", userIDPrefix, i+1))
		if err != nil {
			logger.Error().Err(err).Int("case", i+1).Msg("regression case errored")
			item.Health = Health{Passed: false, IssueCount: 1, Issues: []string{"pipeline_error"}}
		} else {
			item.Health = EvaluateResult(result)
			item.ObservabilitySummary = result.ObservabilitySummary
		}

		status := "PASS"
		if !item.Health.Passed {
			status = "FAIL"
		}
		logger.Info().
			Int("case", i+1).
			Str("status", status).
			Strs("issues", item.Health.Issues).
			Msg("regression case evaluated")

		results = append(results, item)
	}
	return results
}

// SummarizeBatch computes aggregate statistics for a batch run. An empty batch
// summarizes to zeroes rather than dividing by zero.
func SummarizeBatch(out *Output) Summary {
	s := Summary{}
	if out == nil {
		return s
	}
	s.TotalDurationMS = out.TotalDurationMS
	if len(out.Meta) == 0 {
		return s
	}

	for _, m := range out.Meta {
		s.AvgItemDurationMS += m.DurationMS
		s.AvgModelInvocation += float64(m.ModelInvocations)
		s.AvgToolInvocation += float64(m.ToolInvocations)
		s.AvgAgentInvocation += float64(m.AgentInvocations)
		s.AvgPromptChars += float64(m.TotalPromptChars)
		s.AvgResponseChars += float64(m.TotalResponseChars)
	}

	n := float64(len(out.Meta))
	s.ItemCount = len(out.Meta)
	s.AvgItemDurationMS /= n
	s.AvgModelInvocation /= n
	s.AvgToolInvocation /= n
	s.AvgAgentInvocation /= n
	s.AvgPromptChars /= n
	s.AvgResponseChars /= n
	return s
}

// SummarizeRegression computes pass rate and issue frequency for a suite.
func SummarizeRegression(results []RegressionResult) RegressionSummary {
	summary := RegressionSummary{
		CaseCount:      len(results),
		IssueFrequency: map[string]int{},
	}
	if len(results) == 0 {
		return summary
	}

	for _, item := range results {
		if item.Health.Passed {
			summary.PassCount++
		}
		for _, issue := range item.Health.Issues {
			summary.IssueFrequency[issue]++
		}
	}
	summary.FailCount = summary.CaseCount - summary.PassCount
	summary.PassRate = float64(summary.PassCount) / float64(summary.CaseCount)
	return summary
}

// ExportRegressionReport writes the full results plus their summary to a JSON
// file and returns the filename.
func ExportRegressionReport(results []RegressionResult, filename string) (string, error) {
	if filename == "" {
		filename = "regression_report.json"
	}

	payload := map[string]any{
		"results": results,
		"summary": SummarizeRegression(results),
	}
	data, err := sonic.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal regression report: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write regression report: %w", err)
	}
	return filename, nil
}
