// Package core orchestrates the multi-stage FX pricing pipeline: deterministic
// data tools, specialist agent invocations, output splitting and the final
// commit into session memory.
package core

import (
	"fmt"

	"fx_pricing_agents/internal/observability"
)

// PricingConfig is the input for one pipeline run.
type PricingConfig struct {
	ProductName           string  `json:"product_name" yaml:"product_name"`
	Category              string  `json:"category" yaml:"category"`
	Region                string  `json:"region" yaml:"region"`
	ReportingCurrency     string  `json:"reporting_currency" yaml:"reporting_currency"`
	PurchasePrice         float64 `json:"purchase_price" yaml:"purchase_price"`
	PurchaseCurrency      string  `json:"purchase_currency" yaml:"purchase_currency"`
	VolumeUnits           int     `json:"volume_units" yaml:"volume_units"`
	CurrentOrPlannedPrice float64 `json:"current_or_planned_price" yaml:"current_or_planned_price"`
	TargetMarginPct       float64 `json:"target_margin_pct" yaml:"target_margin_pct"`
	ManagerNotes          string  `json:"manager_notes" yaml:"manager_notes"`
}

// Validate rejects configs the pipeline cannot price.
func (c PricingConfig) Validate() error {
	if c.ProductName == "" {
		return fmt.Errorf("product_name is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.ReportingCurrency == "" {
		return fmt.Errorf("reporting_currency is required")
	}
	if c.PurchaseCurrency == "" {
		return fmt.Errorf("purchase_currency is required")
	}
	if c.PurchasePrice <= 0 {
		return fmt.Errorf("purchase_price must be positive, got %g", c.PurchasePrice)
	}
	if c.VolumeUnits <= 0 {
		return fmt.Errorf("volume_units must be positive, got %d", c.VolumeUnits)
	}
	if c.CurrentOrPlannedPrice <= 0 {
		return fmt.Errorf("current_or_planned_price must be positive, got %g", c.CurrentOrPlannedPrice)
	}
	if c.TargetMarginPct < 0 || c.TargetMarginPct >= 1 {
		return fmt.Errorf("target_margin_pct must be in [0, 1), got %g", c.TargetMarginPct)
	}
	return nil
}

// Result is the full output of one pipeline run. JSON fields hold raw agent
// payloads; consumers attempt-parse them and treat failure as a data-quality
// signal rather than an error.
type Result struct {
	ProductName            string `json:"product_name"`
	Region                 string `json:"region"`
	ReportingCurrency      string `json:"reporting_currency"`
	SessionID              string `json:"session_id"`
	DecisionBriefText      string `json:"decision_brief_text"`
	StructuredSummaryJSON  string `json:"structured_summary_json"`
	EvaluationJSON         string `json:"evaluation_json"`
	EvaluationText         string `json:"evaluation_text"`
	MarketResearchJSON     string `json:"market_research_json"`
	CompetitivePricingJSON string `json:"competitive_pricing_json"`
	FXImpactJSON           string `json:"fx_impact_json"`
	MarginScenariosJSON    string `json:"margin_scenarios_json"`
	VendorFXJSON           string `json:"vendor_fx_json"`

	ObservabilitySummary  observability.Summary         `json:"observability_summary"`
	ObservabilityDetailed observability.DetailedSummary `json:"observability_detailed"`
}
