package agents

import (
	"fmt"
	"strings"
)

// StructuredSummaryMarker separates the decision brief narrative from its
// structured JSON section. The decision brief instruction and the pipeline
// splitter both key on this exact string.
const StructuredSummaryMarker = "STRUCTURED_SUMMARY_JSON"

// BuildMarketResearchPrompt asks for a market scan grounded in the embedded
// product snapshot.
func BuildMarketResearchPrompt(productName, category, region, productSnapshotJSON string) string {
	return fmt.Sprintf(
		"Please perform a market scan for the following:\n"+
			"- Product name: %s\n"+
			"- Category: %s\n"+
			"- Region: %s\n\n"+
			"PRODUCT_SNAPSHOT_JSON:\n%s\n\n"+
			"Describe the key competitors, typical positioning (budget vs premium), "+
			"and an approximate price band in the target currency. "+
			"Return both a narrative and a JSON block in the schema described in your instructions.",
		productName, category, region, productSnapshotJSON,
	)
}

// BuildCompetitivePricingPrompt asks for a competitive analysis grounded in
// the embedded competitor snapshot. ourPrice is optional.
func BuildCompetitivePricingPrompt(productName, region, currency string, ourPrice *float64, competitorSnapshotJSON string) string {
	ourPriceLine := "- Our current/planned price: not provided\n"
	if ourPrice != nil {
		ourPriceLine = fmt.Sprintf("- Our current/planned price: %g %s\n", *ourPrice, currency)
	}

	return fmt.Sprintf(
		"Perform a competitive pricing analysis for the following product and context:\n"+
			"- Product name: %s\n"+
			"- Region: %s\n"+
			"- Currency: %s\n"+
			"%s\n"+
			"COMPETITOR_SNAPSHOT_JSON:\n%s\n\n"+
			"Use the embedded competitor snapshot as the primary data source and apply your instructions "+
			"to produce both a narrative explanation and a JSON block with the specified schema.",
		productName, region, currency, ourPriceLine, competitorSnapshotJSON,
	)
}

// BuildVendorFXPrompt asks the vendor agent to summarize the embedded vendor
// FX payload.
func BuildVendorFXPrompt(baseCurrency string, targetCurrencies []string, amount float64, vendorSnapshotJSON string) string {
	return fmt.Sprintf(
		"Summarize the FX snapshot below from your vendor data source.\n"+
			"- Base currency: %s\n"+
			"- Target currencies: [%s]\n"+
			"- Amount in base currency: %g\n\n"+
			"VENDOR_FX_JSON:\n%s\n\n"+
			"Provide a short explanation followed by the JSON payload from the vendor.",
		baseCurrency, strings.Join(targetCurrencies, ", "), amount, vendorSnapshotJSON,
	)
}

// BuildFXImpactPrompt asks for an FX risk analysis grounded in the embedded
// landed cost scenarios. sellingPrice is optional.
func BuildFXImpactPrompt(purchasePrice float64, purchaseCurrency, targetCurrency string, currentFXRate float64, volumeUnits int, sellingPrice *float64, fxShocks []float64, scenariosJSON string) string {
	sellingLine := fmt.Sprintf("- Current or planned selling price (in %s): not provided\n", targetCurrency)
	if sellingPrice != nil {
		sellingLine = fmt.Sprintf("- Current or planned selling price (in %s): %g\n", targetCurrency, *sellingPrice)
	}

	shockLine := "- FX shocks to evaluate: use your default set\n"
	if fxShocks != nil {
		parts := make([]string, 0, len(fxShocks))
		for _, s := range fxShocks {
			parts = append(parts, fmt.Sprintf("%g", s))
		}
		shockLine = fmt.Sprintf("- FX shocks to evaluate (as percentages): [%s]\n", strings.Join(parts, ", "))
	}

	return fmt.Sprintf(
		"Analyze FX impact for an imported product using the precomputed scenarios below.\n"+
			"- Purchase price per unit: %g %s\n"+
			"- Reporting currency: %s\n"+
			"- Current FX rate (target per unit of purchase currency): %g\n"+
			"- Volume units: %d\n"+
			"%s%s\n"+
			"FX_SCENARIOS_JSON:\n%s\n\n"+
			"If a selling price is provided, compute the margin for each scenario. "+
			"Then produce a narrative explanation and a JSON block following the schema in your instructions.",
		purchasePrice, purchaseCurrency, targetCurrency, currentFXRate, volumeUnits,
		sellingLine, shockLine, scenariosJSON,
	)
}

// BuildMarginScenarioPrompt asks for margin planning grounded in the embedded
// margin plan and optional baseline recommendation.
func BuildMarginScenarioPrompt(unitCost float64, currency string, candidatePrices []float64, targetMarginPct *float64, marginPlanJSON, recommendationJSON string) string {
	marginLine := "- Target margin: not explicitly specified\n"
	if targetMarginPct != nil {
		marginLine = fmt.Sprintf("- Target margin: %.1f%%\n", *targetMarginPct*100)
	}

	recommendationBlock := "- Competitor snapshot: not available; base recommendations on unit cost and margins only.\n"
	if recommendationJSON != "" {
		recommendationBlock = fmt.Sprintf("PRICING_RECOMMENDATION_JSON:\n%s\n", recommendationJSON)
	}

	prices := make([]string, 0, len(candidatePrices))
	for _, p := range candidatePrices {
		prices = append(prices, fmt.Sprintf("%.2f", p))
	}

	return fmt.Sprintf(
		"Plan pricing and margin scenarios for the following context:\n"+
			"- Unit cost: %.4f %s\n"+
			"- Candidate selling prices: [%s] %s\n"+
			"%s\n"+
			"MARGIN_SCENARIOS_JSON:\n%s\n\n"+
			"%s\n"+
			"Use the embedded data to explain margin outcomes and, if a recommendation is available, "+
			"where it sits relative to the market. Then produce a narrative summary "+
			"and a JSON block following the schema described in your instructions.",
		unitCost, currency, strings.Join(prices, ", "), currency,
		marginLine, marginPlanJSON, recommendationBlock,
	)
}

// BuildDecisionBriefPrompt stitches the upstream agent outputs into a single
// consolidated prompt for the decision brief agent.
func BuildDecisionBriefPrompt(productName, region, currency, marketResearchJSON, competitivePricingJSON, fxImpactJSON, marginScenariosJSON, additionalNotes string) string {
	if productName == "" {
		productName = "unknown product"
	}
	if region == "" {
		region = "unspecified region"
	}
	if currency == "" {
		currency = "unspecified currency"
	}

	notesBlock := ""
	if additionalNotes != "" {
		notesBlock = fmt.Sprintf("\nADDITIONAL_MANAGER_NOTES:\n%s\n", additionalNotes)
	}

	return fmt.Sprintf(
		"You are preparing a consolidated decision brief for %s in %s, "+
			"with pricing and costs expressed in %s.\n\n"+
			"Below you will find JSON payloads from upstream agents. Use them as your primary source of truth.\n\n"+
			"MARKET_RESEARCH_JSON:\n%s\n\n"+
			"COMPETITIVE_PRICING_JSON:\n%s\n\n"+
			"FX_IMPACT_JSON:\n%s\n\n"+
			"MARGIN_SCENARIOS_JSON:\n%s\n"+
			"%s\n"+
			"Read all of this carefully and then produce the two sections requested in your instructions:\n"+
			"1) DECISION BRIEF\n"+
			"2) %s",
		productName, region, currency,
		marketResearchJSON, competitivePricingJSON, fxImpactJSON, marginScenariosJSON,
		notesBlock, StructuredSummaryMarker,
	)
}

// BuildEvaluationPrompt asks the reviewer agent to score a decision brief
// against its structured summary.
func BuildEvaluationPrompt(decisionBriefText, structuredSummaryJSON, contextNotes string) string {
	notesBlock := ""
	if contextNotes != "" {
		notesBlock = fmt.Sprintf("\nADDITIONAL_CONTEXT_NOTES:\n%s\n", contextNotes)
	}

	return fmt.Sprintf(
		"You are asked to evaluate the following AI-generated decision brief and its structured summary.\n\n"+
			"DECISION_BRIEF_TEXT:\n%s\n\n"+
			"%s:\n%s\n"+
			"%s\n"+
			"Read both carefully and then provide:\n"+
			"1) A concise critique as described in your instructions.\n"+
			"2) A JSON object with the exact schema requested in your instructions.",
		decisionBriefText, StructuredSummaryMarker, structuredSummaryJSON, notesBlock,
	)
}
