package observability

import (
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorModelLifecycle(t *testing.T) {
	c := NewCollector()
	ids := IDs{UserID: "fx_user", SessionID: "sess-1"}

	messages := []*schema.Message{
		schema.SystemMessage("You are a pricing analyst."),
		schema.UserMessage("Analyze widget x."),
	}
	c.ModelBefore("gpt-4o-mini", messages, ids)
	c.ModelAfter(schema.AssistantMessage("analysis text", nil), ids)

	s := c.Summary()
	assert.Equal(t, 1, s.ModelInvocations)
	assert.Equal(t, 0, s.ErrorCount)
	assert.Equal(t, 2, s.EventCount)

	d := c.DetailedSummary()
	assert.Equal(t, len(messages[0].Content)+len(messages[1].Content), d.TotalPromptChars)
	assert.Equal(t, len("analysis text"), d.TotalResponseChars)
	assert.GreaterOrEqual(t, d.TotalModelTimeMS, 0.0)
	assert.Nil(t, d.LastError)

	events := c.LastEvents(2)
	require.Len(t, events, 2)
	assert.Equal(t, EventModelBefore, events[0].Type)
	assert.Equal(t, EventModelAfter, events[1].Type)
	require.NotNil(t, events[1].DurationMS)
	assert.GreaterOrEqual(t, *events[1].DurationMS, 0.0)
	assert.Equal(t, "sess-1", events[0].SessionID)
}

func TestCollectorAfterWithoutBefore(t *testing.T) {
	c := NewCollector()

	// An after with no pending start must not panic and reports no duration.
	c.ModelAfter(schema.AssistantMessage("orphan", nil), IDs{})
	c.ToolAfter("margin_calc", IDs{})
	c.AgentAfter("market_analysis_agent", IDs{})

	events := c.LastEvents(3)
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Nil(t, ev.DurationMS)
	}
	s := c.Summary()
	assert.Equal(t, 0, s.ModelInvocations)
	assert.Equal(t, 0, s.ToolInvocations)
	assert.Equal(t, 0, s.AgentInvocations)
	assert.Equal(t, 3, s.EventCount)
}

func TestCollectorErrorsAndAverages(t *testing.T) {
	c := NewCollector()
	ids := IDs{UserID: "fx_user"}

	c.ModelBefore("gpt-4o-mini", nil, ids)
	c.ModelError(errors.New("rate limited"), ids)
	c.ModelError(nil, ids)

	c.ToolBefore("vendor_fx_fetch", ids)
	c.ToolAfter("vendor_fx_fetch", ids)
	c.AgentBefore("fx_impact_agent", ids)
	c.AgentAfter("fx_impact_agent", ids)

	d := c.DetailedSummary()
	assert.Equal(t, 2, d.ErrorCount)
	require.NotNil(t, d.LastError)
	assert.Equal(t, "unknown error", *d.LastError)
	assert.Equal(t, 1, d.ToolInvocations)
	assert.Equal(t, 1, d.AgentInvocations)
	assert.GreaterOrEqual(t, d.AvgToolTimeMS, 0.0)
	assert.GreaterOrEqual(t, d.AvgAgentTimeMS, 0.0)
}

func TestCollectorNestedAgentSpans(t *testing.T) {
	c := NewCollector()
	ids := IDs{}

	c.AgentBefore("root_agent", ids)
	c.AgentBefore("market_analysis_agent", ids)
	c.AgentAfter("market_analysis_agent", ids)
	c.AgentAfter("root_agent", ids)

	events := c.LastEvents(4)
	require.Len(t, events, 4)
	require.NotNil(t, events[2].DurationMS)
	require.NotNil(t, events[3].DurationMS)
	// Outer span covers the inner one.
	assert.GreaterOrEqual(t, *events[3].DurationMS, *events[2].DurationMS)
}

func TestCollectorLastEventsBounds(t *testing.T) {
	c := NewCollector()
	c.ToolBefore("a", IDs{})
	c.ToolBefore("b", IDs{})

	assert.Len(t, c.LastEvents(10), 2)
	assert.Nil(t, c.LastEvents(0))
	assert.Equal(t, "b", c.LastEvents(1)[0].Tool)
}

func TestCollectorNilReceiver(t *testing.T) {
	var c *Collector
	c.ModelBefore("m", nil, IDs{})
	c.ModelAfter(nil, IDs{})
	c.ModelError(errors.New("x"), IDs{})
	c.ToolBefore("t", IDs{})
	c.ToolAfter("t", IDs{})
	c.AgentBefore("a", IDs{})
	c.AgentAfter("a", IDs{})
	assert.Equal(t, Summary{}, c.Summary())
	assert.Equal(t, DetailedSummary{}, c.DetailedSummary())
	assert.Nil(t, c.LastEvents(5))
}
