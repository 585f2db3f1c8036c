package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"fx_pricing_agents/internal/agents"
	"fx_pricing_agents/internal/logger"
	"fx_pricing_agents/internal/observability"
	"fx_pricing_agents/internal/services"
	"fx_pricing_agents/internal/storage"
	"fx_pricing_agents/internal/textproc"
)

const (
	DefaultAppName        = "fx_marketing_agent_system"
	DefaultFallbackFXRate = 0.14
	DefaultUserID         = "fx-manager"
)

// DefaultPriceMultipliers expand the current or planned price into candidate
// price points for margin planning.
var DefaultPriceMultipliers = []float64{0.95, 1.0, 1.05, 1.10}

// DefaultPipelineFXShocks is the shock set the pipeline evaluates per run.
var DefaultPipelineFXShocks = []float64{-0.10, 0.0, 0.10}

// FXRateFetcher supplies vendor FX snapshots. Implemented by
// services.VendorFXClient.
type FXRateFetcher interface {
	FetchRates(ctx context.Context, baseCurrency string, targetCurrencies []string, amount float64) services.VendorFXSnapshot
}

// Options tune pipeline-wide behavior. Zero values fall back to the defaults
// above.
type Options struct {
	AppName          string
	FallbackFXRate   float64
	FXShocks         []float64
	PriceMultipliers []float64
}

// Pipeline runs the seven-stage pricing flow: market research, competitive
// pricing, vendor FX, FX impact, margin planning, decision brief and
// evaluation, then commits the completed session to memory.
type Pipeline struct {
	invoker  agents.Invoker
	memory   *storage.MemoryService
	fxClient FXRateFetcher
	opts     Options
}

func NewPipeline(invoker agents.Invoker, memory *storage.MemoryService, fxClient FXRateFetcher, opts Options) (*Pipeline, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if memory == nil {
		return nil, fmt.Errorf("memory service is required")
	}
	if fxClient == nil {
		return nil, fmt.Errorf("fx client is required")
	}
	if opts.AppName == "" {
		opts.AppName = DefaultAppName
	}
	if opts.FallbackFXRate <= 0 {
		opts.FallbackFXRate = DefaultFallbackFXRate
	}
	if opts.FXShocks == nil {
		opts.FXShocks = DefaultPipelineFXShocks
	}
	if opts.PriceMultipliers == nil {
		opts.PriceMultipliers = DefaultPriceMultipliers
	}
	return &Pipeline{
		invoker:  invoker,
		memory:   memory,
		fxClient: fxClient,
		opts:     opts,
	}, nil
}

// Memory exposes the session store backing this pipeline.
func (p *Pipeline) Memory() *storage.MemoryService {
	return p.memory
}

// Run executes the full pricing flow for one product configuration. Each run
// gets its own collector and session id; the collector is returned inside the
// result as both compact and detailed views.
func (p *Pipeline) Run(ctx context.Context, cfg PricingConfig, userID string) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing config: %w", err)
	}
	if userID == "" {
		userID = DefaultUserID
	}

	collector := observability.NewCollector()
	rc := agents.RunContext{
		AppName:   p.opts.AppName,
		UserID:    fmt.Sprintf("%s:%s:%s", userID, cfg.ProductName, cfg.Region),
		SessionID: uuid.NewString(),
		Collector: collector,
	}

	logger.Info().
		Str("product", cfg.ProductName).
		Str("region", cfg.Region).
		Str("session_id", rc.SessionID).
		Msg("starting pricing pipeline run")

	combinedNotes := cfg.ManagerNotes
	if prev, ok := p.memory.LoadLastSession(cfg.ProductName, cfg.Region); ok {
		notes := prev.ManagerNotes
		if len(notes) > 200 {
			notes = notes[:200]
		}
		historyNote := fmt.Sprintf(
			"Previous decision exists for this product and region. Last run at %s, last notes: %s",
			prev.CreatedAt.Format(time.ANSIC), notes,
		)
		combinedNotes = cfg.ManagerNotes + " | Historical context: " + historyNote
	}

	marketJSON, err := p.runMarketStage(ctx, cfg, rc)
	if err != nil {
		return nil, err
	}

	competitiveJSON, err := p.runCompetitiveStage(ctx, cfg, rc)
	if err != nil {
		return nil, err
	}

	vendorJSON, err := p.runVendorFXStage(ctx, cfg, rc)
	if err != nil {
		return nil, err
	}
	currentFXRate, _ := VendorRateOrDefault(vendorJSON, p.opts.FallbackFXRate)

	fxImpactJSON, err := p.runFXImpactStage(ctx, cfg, currentFXRate, rc)
	if err != nil {
		return nil, err
	}

	marginJSON, err := p.runMarginStage(ctx, cfg, currentFXRate, rc)
	if err != nil {
		return nil, err
	}

	briefText, structuredJSON, err := p.runDecisionBriefStage(ctx, cfg, marketJSON, competitiveJSON, fxImpactJSON, marginJSON, combinedNotes, rc)
	if err != nil {
		return nil, err
	}

	evaluationText, evaluationJSON, err := p.runEvaluationStage(ctx, cfg, briefText, structuredJSON, rc)
	if err != nil {
		return nil, err
	}

	p.memory.AddSession(storage.AddSessionParams{
		ProductName:            cfg.ProductName,
		Region:                 cfg.Region,
		ReportingCurrency:      cfg.ReportingCurrency,
		ManagerNotes:           cfg.ManagerNotes,
		MarketResearchJSON:     marketJSON,
		CompetitivePricingJSON: competitiveJSON,
		FXImpactJSON:           fxImpactJSON,
		MarginScenariosJSON:    marginJSON,
		DecisionBriefText:      briefText,
		StructuredSummaryJSON:  structuredJSON,
		EvaluationJSON:         evaluationJSON,
		SessionID:              rc.SessionID,
		UserID:                 rc.UserID,
	})

	return &Result{
		ProductName:            cfg.ProductName,
		Region:                 cfg.Region,
		ReportingCurrency:      cfg.ReportingCurrency,
		SessionID:              rc.SessionID,
		DecisionBriefText:      briefText,
		StructuredSummaryJSON:  structuredJSON,
		EvaluationJSON:         evaluationJSON,
		EvaluationText:         evaluationText,
		MarketResearchJSON:     marketJSON,
		CompetitivePricingJSON: competitiveJSON,
		FXImpactJSON:           fxImpactJSON,
		MarginScenariosJSON:    marginJSON,
		VendorFXJSON:           vendorJSON,
		ObservabilitySummary:   collector.Summary(),
		ObservabilityDetailed:  collector.DetailedSummary(),
	}, nil
}

func (p *Pipeline) runMarketStage(ctx context.Context, cfg PricingConfig, rc agents.RunContext) (string, error) {
	rc.Collector.AgentBefore(agents.MarketResearchAgent, rc.IDs())
	defer rc.Collector.AgentAfter(agents.MarketResearchAgent, rc.IDs())

	rc.Collector.ToolBefore("get_product_snapshot", rc.IDs())
	snapshot := services.GetProductSnapshot(cfg.ProductName, cfg.Category, cfg.Region, cfg.PurchaseCurrency)
	rc.Collector.ToolAfter("get_product_snapshot", rc.IDs())

	snapshotJSON, err := sonic.MarshalString(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal product snapshot: %w", err)
	}

	prompt := agents.BuildMarketResearchPrompt(cfg.ProductName, cfg.Category, cfg.Region, snapshotJSON)
	out, err := p.invoker.Invoke(ctx, agents.MarketResearchAgent, prompt, rc)
	if err != nil {
		return "", fmt.Errorf("market research stage failed: %w", err)
	}
	return textproc.ExtractJSONBlock(out), nil
}

func (p *Pipeline) runCompetitiveStage(ctx context.Context, cfg PricingConfig, rc agents.RunContext) (string, error) {
	rc.Collector.AgentBefore(agents.CompetitivePricingAgent, rc.IDs())
	defer rc.Collector.AgentAfter(agents.CompetitivePricingAgent, rc.IDs())

	rc.Collector.ToolBefore("get_competitor_price_snapshot", rc.IDs())
	snapshot := services.GetCompetitorPriceSnapshot(cfg.ProductName, cfg.Region, cfg.ReportingCurrency, nil)
	rc.Collector.ToolAfter("get_competitor_price_snapshot", rc.IDs())

	snapshotJSON, err := sonic.MarshalString(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal competitor snapshot: %w", err)
	}

	ourPrice := cfg.CurrentOrPlannedPrice
	prompt := agents.BuildCompetitivePricingPrompt(cfg.ProductName, cfg.Region, cfg.ReportingCurrency, &ourPrice, snapshotJSON)
	out, err := p.invoker.Invoke(ctx, agents.CompetitivePricingAgent, prompt, rc)
	if err != nil {
		return "", fmt.Errorf("competitive pricing stage failed: %w", err)
	}
	return textproc.ExtractJSONBlock(out), nil
}

func (p *Pipeline) runVendorFXStage(ctx context.Context, cfg PricingConfig, rc agents.RunContext) (string, error) {
	rc.Collector.AgentBefore(agents.VendorFXAgent, rc.IDs())
	defer rc.Collector.AgentAfter(agents.VendorFXAgent, rc.IDs())

	rc.Collector.ToolBefore("fetch_vendor_fx_rates", rc.IDs())
	snapshot := p.fxClient.FetchRates(ctx, cfg.PurchaseCurrency, []string{cfg.ReportingCurrency}, cfg.PurchasePrice)
	rc.Collector.ToolAfter("fetch_vendor_fx_rates", rc.IDs())

	snapshotJSON, err := sonic.MarshalString(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vendor snapshot: %w", err)
	}

	prompt := agents.BuildVendorFXPrompt(cfg.PurchaseCurrency, []string{cfg.ReportingCurrency}, cfg.PurchasePrice, snapshotJSON)
	out, err := p.invoker.Invoke(ctx, agents.VendorFXAgent, prompt, rc)
	if err != nil {
		return "", fmt.Errorf("vendor fx stage failed: %w", err)
	}
	return textproc.ExtractJSONBlock(out), nil
}

func (p *Pipeline) runFXImpactStage(ctx context.Context, cfg PricingConfig, currentFXRate float64, rc agents.RunContext) (string, error) {
	rc.Collector.AgentBefore(agents.FXImpactAgent, rc.IDs())
	defer rc.Collector.AgentAfter(agents.FXImpactAgent, rc.IDs())

	rc.Collector.ToolBefore("calculate_fx_impact_scenarios", rc.IDs())
	scenarios := services.CalculateFXImpactScenarios(
		cfg.PurchasePrice, cfg.PurchaseCurrency, cfg.ReportingCurrency,
		currentFXRate, p.opts.FXShocks, cfg.VolumeUnits,
	)
	rc.Collector.ToolAfter("calculate_fx_impact_scenarios", rc.IDs())

	scenariosJSON, err := sonic.MarshalString(scenarios)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fx scenarios: %w", err)
	}

	sellingPrice := cfg.CurrentOrPlannedPrice
	prompt := agents.BuildFXImpactPrompt(
		cfg.PurchasePrice, cfg.PurchaseCurrency, cfg.ReportingCurrency,
		currentFXRate, cfg.VolumeUnits, &sellingPrice, p.opts.FXShocks, scenariosJSON,
	)
	out, err := p.invoker.Invoke(ctx, agents.FXImpactAgent, prompt, rc)
	if err != nil {
		return "", fmt.Errorf("fx impact stage failed: %w", err)
	}
	return textproc.ExtractJSONBlock(out), nil
}

func (p *Pipeline) runMarginStage(ctx context.Context, cfg PricingConfig, currentFXRate float64, rc agents.RunContext) (string, error) {
	rc.Collector.AgentBefore(agents.MarginScenarioPlannerAgent, rc.IDs())
	defer rc.Collector.AgentAfter(agents.MarginScenarioPlannerAgent, rc.IDs())

	unitCost := cfg.PurchasePrice * currentFXRate
	candidatePrices := make([]float64, 0, len(p.opts.PriceMultipliers))
	for _, m := range p.opts.PriceMultipliers {
		candidatePrices = append(candidatePrices, math.Round(cfg.CurrentOrPlannedPrice*m*100)/100)
	}

	targetMargin := cfg.TargetMarginPct
	rc.Collector.ToolBefore("plan_margin_scenarios", rc.IDs())
	plan := services.PlanMarginScenarios(unitCost, candidatePrices, &targetMargin)
	rc.Collector.ToolAfter("plan_margin_scenarios", rc.IDs())

	rc.Collector.ToolBefore("build_pricing_recommendation", rc.IDs())
	competitors := services.GetCompetitorPriceSnapshot(cfg.ProductName, cfg.Region, cfg.ReportingCurrency, nil)
	recommendation := services.BuildPricingRecommendation(unitCost, competitors, nil, cfg.TargetMarginPct)
	rc.Collector.ToolAfter("build_pricing_recommendation", rc.IDs())

	planJSON, err := sonic.MarshalString(plan)
	if err != nil {
		return "", fmt.Errorf("failed to marshal margin plan: %w", err)
	}
	recommendationJSON, err := sonic.MarshalString(recommendation)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pricing recommendation: %w", err)
	}

	prompt := agents.BuildMarginScenarioPrompt(unitCost, cfg.ReportingCurrency, candidatePrices, &targetMargin, planJSON, recommendationJSON)
	out, err := p.invoker.Invoke(ctx, agents.MarginScenarioPlannerAgent, prompt, rc)
	if err != nil {
		return "", fmt.Errorf("margin scenario stage failed: %w", err)
	}
	return textproc.ExtractJSONBlock(out), nil
}

func (p *Pipeline) runDecisionBriefStage(ctx context.Context, cfg PricingConfig, marketJSON, competitiveJSON, fxImpactJSON, marginJSON, notes string, rc agents.RunContext) (briefText, structuredJSON string, err error) {
	rc.Collector.AgentBefore(agents.DecisionBriefAgent, rc.IDs())
	defer rc.Collector.AgentAfter(agents.DecisionBriefAgent, rc.IDs())

	prompt := agents.BuildDecisionBriefPrompt(
		cfg.ProductName, cfg.Region, cfg.ReportingCurrency,
		marketJSON, competitiveJSON, fxImpactJSON, marginJSON, notes,
	)
	out, err := p.invoker.Invoke(ctx, agents.DecisionBriefAgent, prompt, rc)
	if err != nil {
		return "", "", fmt.Errorf("decision brief stage failed: %w", err)
	}

	briefText, structuredJSON = textproc.SplitTextAndJSON(out, agents.StructuredSummaryMarker)
	return briefText, structuredJSON, nil
}

func (p *Pipeline) runEvaluationStage(ctx context.Context, cfg PricingConfig, briefText, structuredJSON string, rc agents.RunContext) (evaluationText, evaluationJSON string, err error) {
	rc.Collector.AgentBefore(agents.EvaluationAgent, rc.IDs())
	defer rc.Collector.AgentAfter(agents.EvaluationAgent, rc.IDs())

	contextNotes := fmt.Sprintf("FX pricing evaluation for %s in %s.", cfg.ProductName, cfg.Region)
	prompt := agents.BuildEvaluationPrompt(briefText, structuredJSON, contextNotes)
	out, err := p.invoker.Invoke(ctx, agents.EvaluationAgent, prompt, rc)
	if err != nil {
		return "", "", fmt.Errorf("evaluation stage failed: %w", err)
	}

	evaluationText, evaluationJSON = textproc.SplitTextAndJSON(out, textproc.JSONFenceMarker)
	return evaluationText, evaluationJSON, nil
}
