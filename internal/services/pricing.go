// Package services provides the deterministic data tools the pricing agents
// ground themselves on: synthetic catalog and competitor snapshots, FX impact
// scenarios, margin planning and a baseline price recommendation.
package services

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"
)

// newRNG returns a generator seeded from the key so the same inputs always
// produce the same snapshot across runs.
func newRNG(key string) *rand.Rand {
	h := fnv.New32a()
	h.Write([]byte(key))
	return rand.New(rand.NewSource(int64(h.Sum32())))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

// ProductSnapshot emulates an internal ERP/catalog record.
type ProductSnapshot struct {
	ProductName         string  `json:"product_name"`
	Category            string  `json:"category"`
	Region              string  `json:"region"`
	Currency            string  `json:"currency"`
	UnitCost            float64 `json:"unit_cost"`
	DefaultListPrice    float64 `json:"default_list_price"`
	ReorderLeadTimeDays int     `json:"reorder_lead_time_days"`
	MOQUnits            int     `json:"moq_units"`
	LastUpdatedISO      string  `json:"last_updated_iso"`
}

// GetProductSnapshot generates a synthetic catalog record. Outputs are stable
// for the same (product, category, region).
func GetProductSnapshot(productName, category, region, baseCurrency string) ProductSnapshot {
	if category == "" {
		category = "general"
	}
	if region == "" {
		region = "US"
	}
	if baseCurrency == "" {
		baseCurrency = "USD"
	}

	rng := newRNG(fmt.Sprintf("%s:%s:%s", productName, category, region))

	unitCost := round2(5.0 + 1.0 + rng.Float64()*49.0)
	listPriceMultiplier := 1.2 + 0.1 + rng.Float64()*0.7
	defaultListPrice := round2(unitCost * listPriceMultiplier)

	return ProductSnapshot{
		ProductName:         productName,
		Category:            category,
		Region:              region,
		Currency:            baseCurrency,
		UnitCost:            unitCost,
		DefaultListPrice:    defaultListPrice,
		ReorderLeadTimeDays: 14 + rng.Intn(29),
		MOQUnits:            50 + rng.Intn(451),
		LastUpdatedISO:      time.Now().UTC().Format(time.RFC3339),
	}
}

// CompetitorOffer is one competitor price observation.
type CompetitorOffer struct {
	CompetitorID   string  `json:"competitor_id"`
	CompetitorName string  `json:"competitor_name"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	IsPromo        bool    `json:"is_promo"`
	PromoLabel     string  `json:"promo_label,omitempty"`
	URL            string  `json:"url"`
	LastSeenISO    string  `json:"last_seen_iso"`
}

// CompetitorPriceSnapshot emulates the output of a price-intelligence system.
type CompetitorPriceSnapshot struct {
	ProductName        string            `json:"product_name"`
	Region             string            `json:"region"`
	Currency           string            `json:"currency"`
	BaseReferencePrice float64           `json:"base_reference_price"`
	Offers             []CompetitorOffer `json:"offers"`
}

var defaultCompetitors = []string{
	"AlphaMart",
	"GlobalRetail",
	"BudgetBox",
	"PrimeDeal",
	"SmartWholesale",
}

var promoLabels = []string{"Weekend Sale", "Clearance", "Seasonal Promo", "Limited Offer"}

// GetCompetitorPriceSnapshot generates a synthetic competitor offer list,
// stable for the same (product, region, currency).
func GetCompetitorPriceSnapshot(productName, region, currency string, competitorNames []string) CompetitorPriceSnapshot {
	if region == "" {
		region = "US"
	}
	if currency == "" {
		currency = "USD"
	}
	if competitorNames == nil {
		competitorNames = defaultCompetitors
	}

	rng := newRNG(fmt.Sprintf("%s:%s:%s", productName, region, currency))
	basePrice := round2(10.0 + 1.0 + rng.Float64()*89.0)
	now := time.Now().UTC()

	offers := make([]CompetitorOffer, 0, len(competitorNames))
	for i, name := range competitorNames {
		deltaPct := -0.15 + rng.Float64()*0.35
		price := round2(basePrice * (1.0 + deltaPct))

		isPromo := rng.Float64() < 0.35
		promoLabel := ""
		if isPromo {
			promoLabel = promoLabels[rng.Intn(len(promoLabels))]
		}

		lastSeen := now.Add(-time.Duration(rng.Intn(73)) * time.Hour)

		offers = append(offers, CompetitorOffer{
			CompetitorID:   fmt.Sprintf("comp_%d", i+1),
			CompetitorName: name,
			Price:          price,
			Currency:       currency,
			IsPromo:        isPromo,
			PromoLabel:     promoLabel,
			URL: fmt.Sprintf("https://example.com/%s/%s",
				strings.ToLower(name), strings.ReplaceAll(productName, " ", "-")),
			LastSeenISO: lastSeen.Format(time.RFC3339),
		})
	}

	return CompetitorPriceSnapshot{
		ProductName:        productName,
		Region:             region,
		Currency:           currency,
		BaseReferencePrice: basePrice,
		Offers:             offers,
	}
}

// FXScenario is one shocked-rate landed cost projection.
type FXScenario struct {
	FXShiftPct               float64 `json:"fx_shift_pct"`
	EffectiveRate            float64 `json:"effective_rate"`
	LandedCostPerUnit        float64 `json:"landed_cost_per_unit"`
	LandedCostTotal          float64 `json:"landed_cost_total"`
	RelativeCostVsCurrentPct float64 `json:"relative_cost_vs_current_pct"`
}

// FXImpactResult holds landed cost projections across a set of FX shocks.
type FXImpactResult struct {
	PurchasePrice    float64      `json:"purchase_price"`
	PurchaseCurrency string       `json:"purchase_currency"`
	TargetCurrency   string       `json:"target_currency"`
	CurrentFXRate    float64      `json:"current_fx_rate"`
	VolumeUnits      int          `json:"volume_units"`
	Scenarios        []FXScenario `json:"scenarios"`
}

// DefaultFXShocks is the shock set applied when the caller provides none.
var DefaultFXShocks = []float64{-0.10, -0.05, 0.0, 0.05, 0.10}

// CalculateFXImpactScenarios projects landed unit and total cost in the target
// currency across the given FX shocks. The rate is target currency per unit of
// purchase currency.
func CalculateFXImpactScenarios(purchasePrice float64, purchaseCurrency, targetCurrency string, currentFXRate float64, fxShocks []float64, volumeUnits int) FXImpactResult {
	if fxShocks == nil {
		fxShocks = DefaultFXShocks
	}
	if volumeUnits <= 0 {
		volumeUnits = 1
	}

	currentLandedPerUnit := purchasePrice * currentFXRate
	scenarios := make([]FXScenario, 0, len(fxShocks))

	for _, shift := range fxShocks {
		effectiveRate := currentFXRate * (1.0 + shift)
		landedPerUnit := purchasePrice * effectiveRate
		landedTotal := landedPerUnit * float64(volumeUnits)

		relative := 0.0
		if currentLandedPerUnit > 0 {
			relative = landedPerUnit/currentLandedPerUnit - 1.0
		}

		scenarios = append(scenarios, FXScenario{
			FXShiftPct:               shift,
			EffectiveRate:            round6(effectiveRate),
			LandedCostPerUnit:        round4(landedPerUnit),
			LandedCostTotal:          round2(landedTotal),
			RelativeCostVsCurrentPct: round4(relative),
		})
	}

	return FXImpactResult{
		PurchasePrice:    purchasePrice,
		PurchaseCurrency: purchaseCurrency,
		TargetCurrency:   targetCurrency,
		CurrentFXRate:    currentFXRate,
		VolumeUnits:      volumeUnits,
		Scenarios:        scenarios,
	}
}

// MarginScenario is the margin outcome for one candidate price. MarginPct and
// MarginAbsolute are nil for non-positive prices.
type MarginScenario struct {
	Price          float64  `json:"price"`
	MarginPct      *float64 `json:"margin_pct"`
	MarginAbsolute *float64 `json:"margin_absolute"`
	MeetsTarget    bool     `json:"meets_target"`
}

// MarginPlan holds margin outcomes for a list of candidate prices.
type MarginPlan struct {
	UnitCost        float64          `json:"unit_cost"`
	TargetMarginPct *float64         `json:"target_margin_pct"`
	Scenarios       []MarginScenario `json:"scenarios"`
}

// PlanMarginScenarios computes margin percentage and absolute margin for each
// candidate selling price. targetMarginPct is a fraction, e.g. 0.25 for 25%.
func PlanMarginScenarios(unitCost float64, candidatePrices []float64, targetMarginPct *float64) MarginPlan {
	scenarios := make([]MarginScenario, 0, len(candidatePrices))

	for _, price := range candidatePrices {
		s := MarginScenario{Price: round2(price)}
		if price > 0 {
			marginAbs := round4(price - unitCost)
			marginPct := round4((price - unitCost) / price)
			s.MarginAbsolute = &marginAbs
			s.MarginPct = &marginPct
			if targetMarginPct != nil {
				s.MeetsTarget = marginPct >= *targetMarginPct
			}
		}
		scenarios = append(scenarios, s)
	}

	plan := MarginPlan{UnitCost: round4(unitCost), Scenarios: scenarios}
	if targetMarginPct != nil {
		t := round4(*targetMarginPct)
		plan.TargetMarginPct = &t
	}
	return plan
}

// SummaryStats captures the inputs behind a pricing recommendation.
type SummaryStats struct {
	UnitCost        float64  `json:"unit_cost"`
	CompetitorMin   *float64 `json:"competitor_min"`
	CompetitorMean  *float64 `json:"competitor_mean"`
	CompetitorMax   *float64 `json:"competitor_max"`
	TargetMarginPct float64  `json:"target_margin_pct"`
}

// PricingRecommendation is a deterministic baseline price suggestion.
type PricingRecommendation struct {
	RecommendedPrice float64      `json:"recommended_price"`
	Rationale        string       `json:"rationale"`
	SummaryStats     SummaryStats `json:"summary_stats"`
}

// BuildPricingRecommendation anchors a candidate price near the average
// competitor price, clamps it into a band that protects the target margin, and
// lifts it if the worst FX scenario would erode margin below target.
func BuildPricingRecommendation(unitCost float64, competitors CompetitorPriceSnapshot, fxScenarios *FXImpactResult, targetMarginPct float64) PricingRecommendation {
	var prices []float64
	for _, offer := range competitors.Offers {
		prices = append(prices, offer.Price)
	}

	if len(prices) == 0 {
		return PricingRecommendation{
			RecommendedPrice: round2(unitCost * (1.0 + targetMarginPct)),
			Rationale:        "No competitor prices available; using cost plus target margin.",
			SummaryStats: SummaryStats{
				UnitCost:        round4(unitCost),
				TargetMarginPct: round4(targetMarginPct),
			},
		}
	}

	competitorMin := prices[0]
	competitorMax := prices[0]
	sum := 0.0
	for _, p := range prices {
		if p < competitorMin {
			competitorMin = p
		}
		if p > competitorMax {
			competitorMax = p
		}
		sum += p
	}
	competitorMean := sum / float64(len(prices))

	minAllowed := math.Max(unitCost*(1.0+targetMarginPct), competitorMin*0.97)
	maxAllowed := competitorMax * 1.03

	candidate := competitorMean
	if candidate < minAllowed {
		candidate = minAllowed
	}
	if candidate > maxAllowed {
		candidate = maxAllowed
	}

	fxNote := ""
	if fxScenarios != nil && len(fxScenarios.Scenarios) > 0 {
		worstCost := fxScenarios.Scenarios[0].LandedCostPerUnit
		for _, s := range fxScenarios.Scenarios[1:] {
			if s.LandedCostPerUnit > worstCost {
				worstCost = s.LandedCostPerUnit
			}
		}
		minSafePrice := worstCost * (1.0 + targetMarginPct)
		if candidate < minSafePrice {
			candidate = minSafePrice
			fxNote = "Adjusted upward to remain profitable under adverse FX scenario."
		}
	}

	rationale := "Anchored near the average competitor price. Respects a minimum margin over unit cost."
	if fxNote != "" {
		rationale += " " + fxNote
	}

	roundedMin := round2(competitorMin)
	roundedMean := round2(competitorMean)
	roundedMax := round2(competitorMax)

	return PricingRecommendation{
		RecommendedPrice: round2(candidate),
		Rationale:        rationale,
		SummaryStats: SummaryStats{
			UnitCost:        round4(unitCost),
			CompetitorMin:   &roundedMin,
			CompetitorMean:  &roundedMean,
			CompetitorMax:   &roundedMax,
			TargetMarginPct: round4(targetMarginPct),
		},
	}
}
