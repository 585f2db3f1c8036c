package storage

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSession(s *MemoryService, product, region, notes, summaryJSON, evalJSON string) Entry {
	return s.AddSession(AddSessionParams{
		ProductName:           product,
		Region:                region,
		ReportingCurrency:     "USD",
		ManagerNotes:          notes,
		StructuredSummaryJSON: summaryJSON,
		EvaluationJSON:        evalJSON,
	})
}

func TestAddSessionNormalizesKeyAndOrdersNewestFirst(t *testing.T) {
	s := NewMemoryService(10)

	addSession(s, "Widget X", "US", "first", "{}", "{}")
	addSession(s, "  widget x ", "us", "second", "{}", "{}")

	assert.Equal(t, 2, s.GetSessionCount("WIDGET X", " US "))

	last, ok := s.LoadLastSession("widget x", "us")
	require.True(t, ok)
	assert.Equal(t, "second", last.ManagerNotes)

	entries := s.SearchMemory("widget x", "us", 10)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].ManagerNotes)
	assert.Equal(t, "first", entries[1].ManagerNotes)
}

func TestAddSessionRecoversScoreFromEvaluationJSON(t *testing.T) {
	s := NewMemoryService(10)

	e := addSession(s, "widget x", "us", "n", "{}", `{"overall_score": 4.5}`)
	require.NotNil(t, e.EvaluationOverallScore)
	assert.Equal(t, 4.5, *e.EvaluationOverallScore)

	// Malformed evaluation payload leaves the score unset.
	e = addSession(s, "widget x", "us", "n", "{}", "not json")
	assert.Nil(t, e.EvaluationOverallScore)

	// A non-numeric score is ignored too.
	e = addSession(s, "widget x", "us", "n", "{}", `{"overall_score": "high"}`)
	assert.Nil(t, e.EvaluationOverallScore)
}

func TestBucketCapDropsOldest(t *testing.T) {
	s := NewMemoryService(3)

	for i := 1; i <= 5; i++ {
		addSession(s, "widget x", "us", fmt.Sprintf("note %d", i), "{}", "{}")
	}

	assert.Equal(t, 3, s.GetSessionCount("widget x", "us"))
	entries := s.SearchMemory("widget x", "us", 10)
	require.Len(t, entries, 3)
	assert.Equal(t, "note 5", entries[0].ManagerNotes)
	assert.Equal(t, "note 3", entries[2].ManagerNotes)
}

func TestAggregateMetricsAverages(t *testing.T) {
	s := NewMemoryService(10)

	addSession(s, "widget x", "us", "n",
		`{"recommended_price": 10, "target_margin_pct": 30}`, `{"overall_score": 3.5}`)
	addSession(s, "widget x", "us", "n",
		`{"recommended_price": 20, "target_margin_pct": 40}`, `{"overall_score": 4.5}`)
	// Malformed summary contributes nothing to the price/margin averages.
	addSession(s, "widget x", "us", "n", "oops", "{}")

	m, ok := s.GetAggregateMetrics("widget x", "us")
	require.True(t, ok)
	assert.Equal(t, 3, m.SessionCount)
	require.NotNil(t, m.AvgEvaluationOverallScore)
	assert.InDelta(t, 4.0, *m.AvgEvaluationOverallScore, 1e-9)
	require.NotNil(t, m.AvgRecommendedPrice)
	assert.InDelta(t, 15.0, *m.AvgRecommendedPrice, 1e-9)
	require.NotNil(t, m.AvgTargetMarginPct)
	assert.InDelta(t, 35.0, *m.AvgTargetMarginPct, 1e-9)
	require.NotNil(t, m.FirstSessionAt)
	require.NotNil(t, m.LastSessionAt)
	assert.False(t, m.LastSessionAt.Before(*m.FirstSessionAt))

	_, ok = s.GetAggregateMetrics("unknown", "us")
	assert.False(t, ok)
}

func TestConsolidateRecentSessions(t *testing.T) {
	s := NewMemoryService(10)

	empty := s.ConsolidateRecentSessions("widget x", "us", 5, 160)
	assert.Equal(t, "No stored FX sessions yet for product='widget x' in region='us'.", empty)

	longNotes := strings.Repeat("aggressive competitor pricing ", 10)
	addSession(s, "widget x", "us", longNotes, "{}", "{}")
	addSession(s, "widget x", "us", "hold price", "{}", "{}")

	summary := s.ConsolidateRecentSessions("widget x", "us", 5, 40)
	lines := strings.Split(summary, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"FX memory summary for product='widget x' in region='us' (last 2 sessions, max 10 stored):",
		lines[0])
	assert.Contains(t, lines[1], "- #1 at ")
	assert.Contains(t, lines[1], "price decision context in USD")
	assert.Contains(t, lines[1], "manager_notes='hold price'")
	// The long note is truncated with an ellipsis.
	assert.Contains(t, lines[2], "...")

	cached, ok := s.GetConsolidatedMemory("widget x", "us")
	require.True(t, ok)
	assert.Equal(t, summary, cached)

	// The digest is stamped onto the newest entry.
	last, ok := s.LoadLastSession("widget x", "us")
	require.True(t, ok)
	assert.Equal(t, summary, last.CompactedSummary)
}

func TestKeysAndExportSnapshot(t *testing.T) {
	s := NewMemoryService(10)

	addSession(s, "Widget X", "US", "n", "{}", "{}")
	addSession(s, "gadget", "eu", "n", "{}", "{}")

	keys := s.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, Key{Product: "gadget", Region: "eu"}, keys[0])
	assert.Equal(t, Key{Product: "widget x", Region: "us"}, keys[1])

	full := s.ExportSnapshot("", "")
	require.Len(t, full, 2)
	assert.Len(t, full["widget x|us"], 1)
	assert.Len(t, full["gadget|eu"], 1)

	filtered := s.ExportSnapshot("Widget X", "US")
	require.Len(t, filtered, 1)
	assert.Len(t, filtered["widget x|us"], 1)

	// Filtering on an unknown key exports an empty bucket, not an error.
	missing := s.ExportSnapshot("nope", "us")
	require.Len(t, missing, 1)
	assert.Empty(t, missing["nope|us"])
}

func TestPruneSessionsOlderThan(t *testing.T) {
	s := NewMemoryService(10)

	addSession(s, "widget x", "us", "old", "{}", "{}")
	addSession(s, "gadget", "eu", "old", "{}", "{}")

	// Backdate everything beyond the cutoff.
	for _, bucket := range s.store {
		for _, e := range bucket {
			e.CreatedAt = e.CreatedAt.Add(-2 * time.Hour)
		}
	}
	addSession(s, "widget x", "us", "fresh", "{}", "{}")
	s.ConsolidateRecentSessions("gadget", "eu", 5, 160)

	removed := s.PruneSessionsOlderThan(time.Hour)
	assert.Equal(t, 2, removed)

	assert.Equal(t, 1, s.GetSessionCount("widget x", "us"))
	assert.Equal(t, 0, s.GetSessionCount("gadget", "eu"))

	// Emptied keys lose their cached digest and aggregates as well.
	_, ok := s.GetConsolidatedMemory("gadget", "eu")
	assert.False(t, ok)
	_, ok = s.GetAggregateMetrics("gadget", "eu")
	assert.False(t, ok)
	assert.Equal(t, []Key{{Product: "widget x", Region: "us"}}, s.Keys())

	// Pruning again removes nothing.
	assert.Equal(t, 0, s.PruneSessionsOlderThan(time.Hour))
}
