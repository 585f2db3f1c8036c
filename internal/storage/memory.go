// Package storage keeps completed pricing sessions in a bounded per-key store
// and exposes consolidation, aggregate metrics and snapshot export on top.
package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/tidwall/gjson"

	"fx_pricing_agents/internal/logger"
)

const (
	DefaultMaxSessionsPerKey   = 10
	defaultConsolidateSessions = 5
	defaultMaxCharsPerNote     = 160
)

// Key indexes all memory structures by normalized product and region.
type Key struct {
	Product string `json:"product"`
	Region  string `json:"region"`
}

func makeKey(productName, region string) Key {
	return Key{
		Product: strings.ToLower(strings.TrimSpace(productName)),
		Region:  strings.ToLower(strings.TrimSpace(region)),
	}
}

// Label renders the key in the "product|region" form used by snapshot exports.
func (k Key) Label() string {
	return k.Product + "|" + k.Region
}

// Entry is one completed pricing session. Agent payloads stay as raw JSON
// strings; they are parsed on demand and a malformed payload simply drops out
// of the aggregates.
type Entry struct {
	CreatedAt              time.Time `json:"created_at_ts"`
	ProductName            string    `json:"product_name"`
	Region                 string    `json:"region"`
	ReportingCurrency      string    `json:"reporting_currency"`
	ManagerNotes           string    `json:"manager_notes"`
	MarketResearchJSON     string    `json:"market_research_json"`
	CompetitivePricingJSON string    `json:"competitive_pricing_json"`
	FXImpactJSON           string    `json:"fx_impact_json"`
	MarginScenariosJSON    string    `json:"margin_scenarios_json"`
	DecisionBriefText      string    `json:"decision_brief_text"`
	StructuredSummaryJSON  string    `json:"structured_summary_json"`
	EvaluationJSON         string    `json:"evaluation_json"`
	CompactedSummary       string    `json:"compacted_summary,omitempty"`
	SessionID              string    `json:"session_id,omitempty"`
	UserID                 string    `json:"user_id,omitempty"`
	ScenarioLabel          string    `json:"scenario_label,omitempty"`
	EvaluationOverallScore *float64  `json:"evaluation_overall_score,omitempty"`
}

// AddSessionParams carries everything needed to record one session.
type AddSessionParams struct {
	ProductName            string
	Region                 string
	ReportingCurrency      string
	ManagerNotes           string
	MarketResearchJSON     string
	CompetitivePricingJSON string
	FXImpactJSON           string
	MarginScenariosJSON    string
	DecisionBriefText      string
	StructuredSummaryJSON  string
	EvaluationJSON         string
	SessionID              string
	UserID                 string
	ScenarioLabel          string

	// Optional explicit score. When nil the score is recovered from
	// EvaluationJSON's "overall_score" field if present.
	EvaluationOverallScore *float64
}

// AggregateMetrics summarizes all stored sessions under one key. Averages are
// nil when no entry contributed a usable value.
type AggregateMetrics struct {
	SessionCount              int        `json:"session_count"`
	AvgEvaluationOverallScore *float64   `json:"avg_evaluation_overall_score"`
	AvgRecommendedPrice       *float64   `json:"avg_recommended_price"`
	AvgTargetMarginPct        *float64   `json:"avg_target_margin_pct"`
	FirstSessionAt            *time.Time `json:"first_session_ts"`
	LastSessionAt             *time.Time `json:"last_session_ts"`
}

// MemoryService is a bounded in-memory store of pricing sessions keyed by
// normalized (product, region). Buckets are newest-first and capped at
// maxSessionsPerKey; inserting beyond the cap silently drops the oldest
// entries. Safe for concurrent use.
type MemoryService struct {
	mu                sync.Mutex
	maxSessionsPerKey int
	store             map[Key][]*Entry
	consolidated      map[Key]string
	aggregates        map[Key]AggregateMetrics
}

func NewMemoryService(maxSessionsPerKey int) *MemoryService {
	if maxSessionsPerKey <= 0 {
		maxSessionsPerKey = DefaultMaxSessionsPerKey
	}
	return &MemoryService{
		maxSessionsPerKey: maxSessionsPerKey,
		store:             make(map[Key][]*Entry),
		consolidated:      make(map[Key]string),
		aggregates:        make(map[Key]AggregateMetrics),
	}
}

// numberField reads a numeric field out of a JSON object string. The payload
// must be a valid JSON object and the field an actual number; anything else
// reports false.
func numberField(payload, field string) (float64, bool) {
	if strings.TrimSpace(payload) == "" || !gjson.Valid(payload) {
		return 0, false
	}
	root := gjson.Parse(payload)
	if !root.IsObject() {
		return 0, false
	}
	v := root.Get(field)
	if v.Type != gjson.Number {
		return 0, false
	}
	return v.Float(), true
}

// AddSession records a completed session as the newest entry for its key and
// refreshes the key's aggregates. Returns a copy of the stored entry.
func (s *MemoryService) AddSession(p AddSessionParams) Entry {
	key := makeKey(p.ProductName, p.Region)

	score := p.EvaluationOverallScore
	if score == nil {
		if v, ok := numberField(p.EvaluationJSON, "overall_score"); ok {
			score = &v
		}
	}

	entry := &Entry{
		CreatedAt:              time.Now(),
		ProductName:            p.ProductName,
		Region:                 p.Region,
		ReportingCurrency:      p.ReportingCurrency,
		ManagerNotes:           p.ManagerNotes,
		MarketResearchJSON:     p.MarketResearchJSON,
		CompetitivePricingJSON: p.CompetitivePricingJSON,
		FXImpactJSON:           p.FXImpactJSON,
		MarginScenariosJSON:    p.MarginScenariosJSON,
		DecisionBriefText:      p.DecisionBriefText,
		StructuredSummaryJSON:  p.StructuredSummaryJSON,
		EvaluationJSON:         p.EvaluationJSON,
		SessionID:              p.SessionID,
		UserID:                 p.UserID,
		ScenarioLabel:          p.ScenarioLabel,
		EvaluationOverallScore: score,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := append([]*Entry{entry}, s.store[key]...)
	if len(bucket) > s.maxSessionsPerKey {
		logger.Debug().
			Str("product", key.Product).
			Str("region", key.Region).
			Int("evicted", len(bucket)-s.maxSessionsPerKey).
			Msg("memory bucket full, dropping oldest sessions")
		bucket = bucket[:s.maxSessionsPerKey]
	}
	s.store[key] = bucket

	s.updateAggregatesLocked(key)
	return *entry
}

func (s *MemoryService) updateAggregatesLocked(key Key) {
	entries := s.store[key]
	if len(entries) == 0 {
		s.aggregates[key] = AggregateMetrics{}
		return
	}

	var scores, prices, margins []float64
	var first, last time.Time

	for i, e := range entries {
		if e.EvaluationOverallScore != nil {
			scores = append(scores, *e.EvaluationOverallScore)
		}
		if v, ok := numberField(e.StructuredSummaryJSON, "recommended_price"); ok {
			prices = append(prices, v)
		}
		if v, ok := numberField(e.StructuredSummaryJSON, "target_margin_pct"); ok {
			margins = append(margins, v)
		}
		if i == 0 || e.CreatedAt.Before(first) {
			first = e.CreatedAt
		}
		if i == 0 || e.CreatedAt.After(last) {
			last = e.CreatedAt
		}
	}

	s.aggregates[key] = AggregateMetrics{
		SessionCount:              len(entries),
		AvgEvaluationOverallScore: mean(scores),
		AvgRecommendedPrice:       mean(prices),
		AvgTargetMarginPct:        mean(margins),
		FirstSessionAt:            &first,
		LastSessionAt:             &last,
	}
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}

// LoadLastSession returns the most recent entry for the key, if any.
func (s *MemoryService) LoadLastSession(productName, region string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.store[makeKey(productName, region)]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return *entries[0], true
}

// SearchMemory returns up to limit entries for the key, newest first.
func (s *MemoryService) SearchMemory(productName, region string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultMaxSessionsPerKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.store[makeKey(productName, region)]
	if limit > len(entries) {
		limit = len(entries)
	}
	out := make([]Entry, 0, limit)
	for _, e := range entries[:limit] {
		out = append(out, *e)
	}
	return out
}

// ConsolidateRecentSessions builds a human-readable digest of the most recent
// sessions for the key, caches it, and stamps it onto the newest entry.
// Defaults: 5 sessions, 160 chars of notes per line.
func (s *MemoryService) ConsolidateRecentSessions(productName, region string, maxSessions, maxCharsPerNote int) string {
	if maxSessions <= 0 {
		maxSessions = defaultConsolidateSessions
	}
	if maxCharsPerNote <= 0 {
		maxCharsPerNote = defaultMaxCharsPerNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := makeKey(productName, region)
	entries := s.store[key]
	if len(entries) == 0 {
		summary := fmt.Sprintf("No stored FX sessions yet for product='%s' in region='%s'.", productName, region)
		s.consolidated[key] = summary
		return summary
	}
	if maxSessions > len(entries) {
		maxSessions = len(entries)
	}
	recent := entries[:maxSessions]

	lines := make([]string, 0, len(recent)+1)
	lines = append(lines, fmt.Sprintf(
		"FX memory summary for product='%s' in region='%s' (last %d sessions, max %d stored):",
		productName, region, len(recent), s.maxSessionsPerKey,
	))
	for i, e := range recent {
		notes := strings.ReplaceAll(strings.TrimSpace(e.ManagerNotes), "\n", " ")
		notes = truncateNotes(notes, maxCharsPerNote)
		lines = append(lines, fmt.Sprintf(
			"- #%d at %s, price decision context in %s, manager_notes='%s'",
			i+1, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.ReportingCurrency, notes,
		))
	}

	summary := strings.Join(lines, "\n")
	s.consolidated[key] = summary
	entries[0].CompactedSummary = summary
	return summary
}

func truncateNotes(notes string, maxChars int) string {
	runes := []rune(notes)
	if len(runes) <= maxChars {
		return notes
	}
	cut := strings.TrimRightFunc(string(runes[:maxChars]), unicode.IsSpace)
	return cut + "..."
}

// GetConsolidatedMemory returns the cached digest for the key, if consolidation
// has run.
func (s *MemoryService) GetConsolidatedMemory(productName, region string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, ok := s.consolidated[makeKey(productName, region)]
	return summary, ok
}

// GetSessionCount returns the number of stored sessions for the key.
func (s *MemoryService) GetSessionCount(productName, region string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.store[makeKey(productName, region)])
}

// GetAggregateMetrics returns the key's aggregates, if the key has ever stored
// a session.
func (s *MemoryService) GetAggregateMetrics(productName, region string) (AggregateMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.aggregates[makeKey(productName, region)]
	return m, ok
}

// Keys returns all stored keys in deterministic order.
func (s *MemoryService) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]Key, 0, len(s.store))
	for k := range s.store {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Product != keys[j].Product {
			return keys[i].Product < keys[j].Product
		}
		return keys[i].Region < keys[j].Region
	})
	return keys
}

// ExportSnapshot returns the store as a map of "product|region" labels to
// entry slices. With both productName and region set the snapshot is filtered
// to that single key; a key with no entries exports an empty slice.
func (s *MemoryService) ExportSnapshot(productName, region string) map[string][]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []Key
	if productName != "" && region != "" {
		keys = []Key{makeKey(productName, region)}
	} else {
		for k := range s.store {
			keys = append(keys, k)
		}
	}

	snapshot := make(map[string][]Entry, len(keys))
	for _, key := range keys {
		entries := s.store[key]
		copies := make([]Entry, 0, len(entries))
		for _, e := range entries {
			copies = append(copies, *e)
		}
		snapshot[key.Label()] = copies
	}
	return snapshot
}

// PruneSessionsOlderThan drops every session older than the given age and
// returns the number removed. Keys left empty are removed entirely along with
// their cached digest and aggregates.
func (s *MemoryService) PruneSessionsOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entries := range s.store {
		kept := entries[:0:0]
		for _, e := range entries {
			if !e.CreatedAt.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		removed += len(entries) - len(kept)
		if len(kept) > 0 {
			s.store[key] = kept
			s.updateAggregatesLocked(key)
		} else {
			delete(s.store, key)
			delete(s.consolidated, key)
			delete(s.aggregates, key)
		}
	}
	return removed
}
