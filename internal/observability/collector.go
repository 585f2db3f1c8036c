// Package observability accumulates per-run telemetry for model, tool and
// agent invocations: counts, timings, payload sizes and errors.
package observability

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// EventType identifies one lifecycle record kind.
type EventType string

const (
	EventModelBefore EventType = "model_before"
	EventModelAfter  EventType = "model_after"
	EventModelError  EventType = "model_error"
	EventToolBefore  EventType = "tool_before"
	EventToolAfter   EventType = "tool_after"
	EventAgentBefore EventType = "agent_before"
	EventAgentAfter  EventType = "agent_after"
)

// IDs carries the user/session identity attached to each event.
type IDs struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Event is one append-only lifecycle record. Never mutated after append.
type Event struct {
	TS            time.Time `json:"ts"`
	Type          EventType `json:"type"`
	Model         string    `json:"model,omitempty"`
	Tool          string    `json:"tool,omitempty"`
	Agent         string    `json:"agent,omitempty"`
	PromptChars   int       `json:"prompt_chars,omitempty"`
	ResponseChars int       `json:"response_chars,omitempty"`
	DurationMS    *float64  `json:"duration_ms,omitempty"`
	Error         string    `json:"error,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
}

// Summary is the compact per-run view: invocation, error and event counts.
type Summary struct {
	ModelInvocations int `json:"model_invocations"`
	ToolInvocations  int `json:"tool_invocations"`
	AgentInvocations int `json:"agent_invocations"`
	ErrorCount       int `json:"error_count"`
	EventCount       int `json:"event_count"`
}

// DetailedSummary extends Summary with timings, payload sizes and the last error.
type DetailedSummary struct {
	ModelInvocations   int     `json:"model_invocations"`
	ToolInvocations    int     `json:"tool_invocations"`
	AgentInvocations   int     `json:"agent_invocations"`
	TotalModelTimeMS   float64 `json:"total_model_time_ms"`
	TotalToolTimeMS    float64 `json:"total_tool_time_ms"`
	TotalAgentTimeMS   float64 `json:"total_agent_time_ms"`
	AvgModelTimeMS     float64 `json:"avg_model_time_ms"`
	AvgToolTimeMS      float64 `json:"avg_tool_time_ms"`
	AvgAgentTimeMS     float64 `json:"avg_agent_time_ms"`
	TotalPromptChars   int     `json:"total_prompt_chars"`
	TotalResponseChars int     `json:"total_response_chars"`
	ErrorCount         int     `json:"error_count"`
	LastError          *string `json:"last_error"`
	EventCount         int     `json:"event_count"`
}

// Collector observes one pipeline run. It is not safe for concurrent use and
// must not be shared across runs; give each run its own instance.
//
// Before/after pairing uses one pending-start stack per kind so nested calls
// of the same kind pair correctly. An "after" with an empty stack reports an
// unknown duration instead of failing: observability must never abort
// business logic, so every method tolerates a nil receiver and nil metadata.
type Collector struct {
	modelInvocations int
	toolInvocations  int
	agentInvocations int

	errors []string
	events []Event

	modelStarts []time.Time
	toolStarts  []time.Time
	agentStarts []time.Time

	totalModelTimeMS float64
	totalToolTimeMS  float64
	totalAgentTimeMS float64

	totalPromptChars   int
	totalResponseChars int
}

func NewCollector() *Collector {
	return &Collector{}
}

// ModelBefore records a model invocation start. Prompt size is the summed
// content length across messages.
func (c *Collector) ModelBefore(model string, messages []*schema.Message, ids IDs) {
	if c == nil {
		return
	}
	c.modelInvocations++

	promptChars := 0
	for _, m := range messages {
		if m != nil {
			promptChars += len(m.Content)
		}
	}
	c.totalPromptChars += promptChars

	now := time.Now()
	c.modelStarts = append(c.modelStarts, now)
	c.events = append(c.events, Event{
		TS:          now,
		Type:        EventModelBefore,
		Model:       model,
		PromptChars: promptChars,
		UserID:      ids.UserID,
		SessionID:   ids.SessionID,
	})
}

// ModelAfter records a model response: size, and elapsed time if a matching
// start is pending.
func (c *Collector) ModelAfter(response *schema.Message, ids IDs) {
	if c == nil {
		return
	}
	responseChars := 0
	if response != nil {
		responseChars = len(response.Content)
	}
	c.totalResponseChars += responseChars

	duration := c.popStart(&c.modelStarts, &c.totalModelTimeMS)
	c.events = append(c.events, Event{
		TS:            time.Now(),
		Type:          EventModelAfter,
		ResponseChars: responseChars,
		DurationMS:    duration,
		UserID:        ids.UserID,
		SessionID:     ids.SessionID,
	})
}

// ModelError captures a model failure. Invocation counters are unaffected.
func (c *Collector) ModelError(err error, ids IDs) {
	if c == nil {
		return
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.errors = append(c.errors, msg)
	c.events = append(c.events, Event{
		TS:        time.Now(),
		Type:      EventModelError,
		Error:     msg,
		UserID:    ids.UserID,
		SessionID: ids.SessionID,
	})
}

func (c *Collector) ToolBefore(tool string, ids IDs) {
	if c == nil {
		return
	}
	c.toolInvocations++
	now := time.Now()
	c.toolStarts = append(c.toolStarts, now)
	c.events = append(c.events, Event{
		TS:        now,
		Type:      EventToolBefore,
		Tool:      tool,
		UserID:    ids.UserID,
		SessionID: ids.SessionID,
	})
}

func (c *Collector) ToolAfter(tool string, ids IDs) {
	if c == nil {
		return
	}
	duration := c.popStart(&c.toolStarts, &c.totalToolTimeMS)
	c.events = append(c.events, Event{
		TS:         time.Now(),
		Type:       EventToolAfter,
		Tool:       tool,
		DurationMS: duration,
		UserID:     ids.UserID,
		SessionID:  ids.SessionID,
	})
}

func (c *Collector) AgentBefore(agent string, ids IDs) {
	if c == nil {
		return
	}
	c.agentInvocations++
	now := time.Now()
	c.agentStarts = append(c.agentStarts, now)
	c.events = append(c.events, Event{
		TS:        now,
		Type:      EventAgentBefore,
		Agent:     agent,
		UserID:    ids.UserID,
		SessionID: ids.SessionID,
	})
}

func (c *Collector) AgentAfter(agent string, ids IDs) {
	if c == nil {
		return
	}
	duration := c.popStart(&c.agentStarts, &c.totalAgentTimeMS)
	c.events = append(c.events, Event{
		TS:         time.Now(),
		Type:       EventAgentAfter,
		Agent:      agent,
		DurationMS: duration,
		UserID:     ids.UserID,
		SessionID:  ids.SessionID,
	})
}

// popStart pops the kind's pending-start stack and accumulates the elapsed
// time into the kind's running total. Returns nil if no start is pending.
func (c *Collector) popStart(stack *[]time.Time, total *float64) *float64 {
	if len(*stack) == 0 {
		return nil
	}
	start := (*stack)[len(*stack)-1]
	*stack = (*stack)[:len(*stack)-1]

	ms := float64(time.Since(start).Nanoseconds()) / 1e6
	*total += ms
	return &ms
}

func (c *Collector) Summary() Summary {
	if c == nil {
		return Summary{}
	}
	return Summary{
		ModelInvocations: c.modelInvocations,
		ToolInvocations:  c.toolInvocations,
		AgentInvocations: c.agentInvocations,
		ErrorCount:       len(c.errors),
		EventCount:       len(c.events),
	}
}

func (c *Collector) DetailedSummary() DetailedSummary {
	if c == nil {
		return DetailedSummary{}
	}
	d := DetailedSummary{
		ModelInvocations:   c.modelInvocations,
		ToolInvocations:    c.toolInvocations,
		AgentInvocations:   c.agentInvocations,
		TotalModelTimeMS:   c.totalModelTimeMS,
		TotalToolTimeMS:    c.totalToolTimeMS,
		TotalAgentTimeMS:   c.totalAgentTimeMS,
		TotalPromptChars:   c.totalPromptChars,
		TotalResponseChars: c.totalResponseChars,
		ErrorCount:         len(c.errors),
		EventCount:         len(c.events),
	}
	if c.modelInvocations > 0 {
		d.AvgModelTimeMS = c.totalModelTimeMS / float64(c.modelInvocations)
	}
	if c.toolInvocations > 0 {
		d.AvgToolTimeMS = c.totalToolTimeMS / float64(c.toolInvocations)
	}
	if c.agentInvocations > 0 {
		d.AvgAgentTimeMS = c.totalAgentTimeMS / float64(c.agentInvocations)
	}
	if len(c.errors) > 0 {
		last := c.errors[len(c.errors)-1]
		d.LastError = &last
	}
	return d
}

// LastEvents returns the last n events in chronological order.
func (c *Collector) LastEvents(n int) []Event {
	if c == nil || n <= 0 {
		return nil
	}
	if n > len(c.events) {
		n = len(c.events)
	}
	out := make([]Event, n)
	copy(out, c.events[len(c.events)-n:])
	return out
}
