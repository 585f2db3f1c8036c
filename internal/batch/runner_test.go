package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx_pricing_agents/internal/agents"
	"fx_pricing_agents/internal/core"
	"fx_pricing_agents/internal/observability"
	"fx_pricing_agents/internal/services"
	"fx_pricing_agents/internal/storage"
)

type stubInvoker struct {
	outputs map[string]string
}

func (s *stubInvoker) Invoke(ctx context.Context, agentName, prompt string, rc agents.RunContext) (string, error) {
	out := s.outputs[agentName]
	rc.Collector.ModelBefore("stub-model", []*schema.Message{schema.UserMessage(prompt)}, rc.IDs())
	rc.Collector.ModelAfter(schema.AssistantMessage(out, nil), rc.IDs())
	return out, nil
}

type stubFXFetcher struct{}

func (stubFXFetcher) FetchRates(ctx context.Context, base string, targets []string, amount float64) services.VendorFXSnapshot {
	return services.VendorFXSnapshot{Source: "synthetic"}
}

func healthyOutputs() map[string]string {
	longBrief := strings.Repeat("The recommended price protects margin under adverse FX moves. ", 10)
	fenced := func(payload string) string {
		return "Narrative.\n```json\n" + payload + "\n```"
	}
	return map[string]string{
		agents.MarketResearchAgent:        fenced(`{"product_name": "widget x"}`),
		agents.CompetitivePricingAgent:    fenced(`{"our_price": 20}`),
		agents.VendorFXAgent:              fenced(`{"rate": 0.15}`),
		agents.FXImpactAgent:              fenced(`{"scenarios": []}`),
		agents.MarginScenarioPlannerAgent: fenced(`{"unit_cost": 15}`),
		agents.DecisionBriefAgent: longBrief + "\n\n" + agents.StructuredSummaryMarker +
			"\n{\"recommended_price\": 20.5}",
		agents.EvaluationAgent: "Good brief.\n```json\n{\"overall_score\": 4.0}\n```",
	}
}

func testCase(product string) core.PricingConfig {
	return core.PricingConfig{
		ProductName:           product,
		Category:              "electronics",
		Region:                "US",
		ReportingCurrency:     "USD",
		PurchasePrice:         100,
		PurchaseCurrency:      "CNY",
		VolumeUnits:           500,
		CurrentOrPlannedPrice: 20,
		TargetMarginPct:       0.25,
	}
}

func newTestRunner(t *testing.T, outputs map[string]string) *Runner {
	t.Helper()
	pipeline, err := core.NewPipeline(&stubInvoker{outputs: outputs}, storage.NewMemoryService(10), stubFXFetcher{}, core.Options{})
	require.NoError(t, err)
	runner, err := NewRunner(pipeline)
	require.NoError(t, err)
	return runner
}

func TestRunBatchCollectsMetaAndResults(t *testing.T) {
	runner := newTestRunner(t, healthyOutputs())

	out, err := runner.RunBatch(context.Background(), []core.PricingConfig{
		testCase("widget x"), testCase("gadget"),
	}, "")
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	require.Len(t, out.Meta, 2)
	assert.Equal(t, 1, out.Meta[0].Index)
	assert.Equal(t, "widget x", out.Meta[0].ProductName)
	assert.Equal(t, 7, out.Meta[0].ModelInvocations)
	assert.Equal(t, 6, out.Meta[0].ToolInvocations)
	assert.GreaterOrEqual(t, out.Meta[0].DurationMS, 0.0)
	assert.GreaterOrEqual(t, out.TotalDurationMS, 0.0)

	summary := SummarizeBatch(out)
	assert.Equal(t, 2, summary.ItemCount)
	assert.InDelta(t, 7.0, summary.AvgModelInvocation, 1e-9)
	assert.InDelta(t, 6.0, summary.AvgToolInvocation, 1e-9)
	assert.InDelta(t, 7.0, summary.AvgAgentInvocation, 1e-9)
	assert.Greater(t, summary.AvgPromptChars, 0.0)
}

func TestRunBatchAbortsOnInvalidConfig(t *testing.T) {
	runner := newTestRunner(t, healthyOutputs())

	bad := testCase("widget x")
	bad.VolumeUnits = 0
	_, err := runner.RunBatch(context.Background(), []core.PricingConfig{bad}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch item 1")
}

func TestEvaluateResultHealthFlags(t *testing.T) {
	good := &core.Result{
		DecisionBriefText:     strings.Repeat("solid analysis ", 30),
		StructuredSummaryJSON: `{"recommended_price": 20}`,
		EvaluationJSON:        `{"overall_score": 4}`,
		ObservabilitySummary:  observability.Summary{ModelInvocations: 7},
	}
	health := EvaluateResult(good)
	assert.True(t, health.Passed)
	assert.Empty(t, health.Issues)

	// An empty brief trips both the emptiness and length checks.
	empty := &core.Result{
		DecisionBriefText:     "   ",
		StructuredSummaryJSON: "{}",
		EvaluationJSON:        "{}",
		ObservabilitySummary:  observability.Summary{ModelInvocations: 7},
	}
	health = EvaluateResult(empty)
	assert.False(t, health.Passed)
	assert.Contains(t, health.Issues, "empty_decision_brief")
	assert.Contains(t, health.Issues, "decision_brief_too_short")

	broken := &core.Result{
		DecisionBriefText:     strings.Repeat("x", 500),
		StructuredSummaryJSON: "not json",
		EvaluationJSON:        `[1, 2]`,
		ObservabilitySummary:  observability.Summary{},
	}
	health = EvaluateResult(broken)
	assert.False(t, health.Passed)
	assert.Equal(t, health.IssueCount, len(health.Issues))
	assert.Contains(t, health.Issues, "structured_summary_not_valid_json")
	assert.Contains(t, health.Issues, "evaluation_not_dict")
	assert.Contains(t, health.Issues, "no_model_invocations")
}

func TestRunRegressionAndSummary(t *testing.T) {
	runner := newTestRunner(t, healthyOutputs())

	bad := testCase("gadget")
	bad.PurchasePrice = -1 // validation failure becomes a pipeline_error case

	results := runner.RunRegression(context.Background(), []core.PricingConfig{
		testCase("widget x"), bad,
	}, "")
	require.Len(t, results, 2)

	assert.True(t, results[0].Health.Passed)
	assert.False(t, results[1].Health.Passed)
	assert.Equal(t, []string{"pipeline_error"}, results[1].Health.Issues)

	summary := SummarizeRegression(results)
	assert.Equal(t, 2, summary.CaseCount)
	assert.Equal(t, 1, summary.PassCount)
	assert.Equal(t, 1, summary.FailCount)
	assert.InDelta(t, 0.5, summary.PassRate, 1e-9)
	assert.Equal(t, map[string]int{"pipeline_error": 1}, summary.IssueFrequency)
}

func TestSummariesHandleEmptyInput(t *testing.T) {
	assert.Equal(t, Summary{}, SummarizeBatch(nil))
	assert.Equal(t, 0, SummarizeBatch(&Output{}).ItemCount)

	summary := SummarizeRegression(nil)
	assert.Equal(t, 0, summary.CaseCount)
	assert.Equal(t, 0.0, summary.PassRate)
	assert.Empty(t, summary.IssueFrequency)
}

func TestExportRegressionReport(t *testing.T) {
	runner := newTestRunner(t, healthyOutputs())
	results := runner.RunRegression(context.Background(), []core.PricingConfig{testCase("widget x")}, "")

	path := filepath.Join(t.TempDir(), "report.json")
	written, err := ExportRegressionReport(results, path)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pass_rate"`)
	assert.Contains(t, string(data), `"widget x"`)
}
