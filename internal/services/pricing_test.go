package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductSnapshotIsDeterministic(t *testing.T) {
	a := GetProductSnapshot("widget x", "electronics", "US", "USD")
	b := GetProductSnapshot("widget x", "electronics", "US", "USD")

	assert.Equal(t, a.UnitCost, b.UnitCost)
	assert.Equal(t, a.DefaultListPrice, b.DefaultListPrice)
	assert.Equal(t, a.ReorderLeadTimeDays, b.ReorderLeadTimeDays)
	assert.Equal(t, a.MOQUnits, b.MOQUnits)

	assert.GreaterOrEqual(t, a.UnitCost, 6.0)
	assert.Greater(t, a.DefaultListPrice, a.UnitCost)
	assert.GreaterOrEqual(t, a.ReorderLeadTimeDays, 14)
	assert.GreaterOrEqual(t, a.MOQUnits, 50)

	// A different key produces a different record.
	c := GetProductSnapshot("widget y", "electronics", "US", "USD")
	assert.NotEqual(t, a.UnitCost, c.UnitCost)
}

func TestCompetitorPriceSnapshotDefaults(t *testing.T) {
	snap := GetCompetitorPriceSnapshot("widget x", "", "", nil)

	assert.Equal(t, "US", snap.Region)
	assert.Equal(t, "USD", snap.Currency)
	require.Len(t, snap.Offers, 5)
	for i, offer := range snap.Offers {
		assert.Equal(t, "USD", offer.Currency)
		assert.Greater(t, offer.Price, 0.0)
		assert.NotEmpty(t, offer.CompetitorName)
		assert.Contains(t, offer.URL, "widget-x")
		if i == 0 {
			assert.Equal(t, "comp_1", offer.CompetitorID)
		}
	}

	again := GetCompetitorPriceSnapshot("widget x", "", "", nil)
	assert.Equal(t, snap.BaseReferencePrice, again.BaseReferencePrice)
	assert.Equal(t, snap.Offers[0].Price, again.Offers[0].Price)
}

func TestCalculateFXImpactScenarios(t *testing.T) {
	res := CalculateFXImpactScenarios(100, "CNY", "USD", 0.14, []float64{-0.10, 0.0, 0.10}, 500)

	require.Len(t, res.Scenarios, 3)

	base := res.Scenarios[1]
	assert.Equal(t, 0.0, base.FXShiftPct)
	assert.InDelta(t, 0.14, base.EffectiveRate, 1e-9)
	assert.InDelta(t, 14.0, base.LandedCostPerUnit, 1e-9)
	assert.InDelta(t, 7000.0, base.LandedCostTotal, 1e-9)
	assert.InDelta(t, 0.0, base.RelativeCostVsCurrentPct, 1e-9)

	adverse := res.Scenarios[2]
	assert.InDelta(t, 0.154, adverse.EffectiveRate, 1e-9)
	assert.InDelta(t, 15.4, adverse.LandedCostPerUnit, 1e-9)
	assert.InDelta(t, 0.1, adverse.RelativeCostVsCurrentPct, 1e-9)

	// Nil shocks fall back to the default set of five.
	def := CalculateFXImpactScenarios(100, "CNY", "USD", 0.14, nil, 1)
	assert.Len(t, def.Scenarios, 5)
	assert.Equal(t, 1, def.VolumeUnits)
}

func TestPlanMarginScenarios(t *testing.T) {
	target := 0.25
	plan := PlanMarginScenarios(10, []float64{0, 12, 20}, &target)

	require.Len(t, plan.Scenarios, 3)

	zero := plan.Scenarios[0]
	assert.Nil(t, zero.MarginPct)
	assert.Nil(t, zero.MarginAbsolute)
	assert.False(t, zero.MeetsTarget)

	low := plan.Scenarios[1]
	require.NotNil(t, low.MarginPct)
	assert.InDelta(t, 0.1667, *low.MarginPct, 1e-9)
	assert.False(t, low.MeetsTarget)

	high := plan.Scenarios[2]
	require.NotNil(t, high.MarginPct)
	assert.InDelta(t, 0.5, *high.MarginPct, 1e-9)
	require.NotNil(t, high.MarginAbsolute)
	assert.InDelta(t, 10.0, *high.MarginAbsolute, 1e-9)
	assert.True(t, high.MeetsTarget)

	// No target: nothing meets it.
	plan = PlanMarginScenarios(10, []float64{20}, nil)
	assert.Nil(t, plan.TargetMarginPct)
	assert.False(t, plan.Scenarios[0].MeetsTarget)
}

func TestBuildPricingRecommendationNoCompetitors(t *testing.T) {
	rec := BuildPricingRecommendation(10, CompetitorPriceSnapshot{}, nil, 0.25)

	assert.InDelta(t, 12.5, rec.RecommendedPrice, 1e-9)
	assert.Contains(t, rec.Rationale, "No competitor prices available")
	assert.Nil(t, rec.SummaryStats.CompetitorMean)
}

func TestBuildPricingRecommendationClampsToBand(t *testing.T) {
	snap := CompetitorPriceSnapshot{
		Offers: []CompetitorOffer{
			{Price: 20}, {Price: 22}, {Price: 24},
		},
	}

	// Mean 22 sits inside the allowed band.
	rec := BuildPricingRecommendation(10, snap, nil, 0.25)
	assert.InDelta(t, 22.0, rec.RecommendedPrice, 1e-9)
	require.NotNil(t, rec.SummaryStats.CompetitorMin)
	assert.InDelta(t, 20.0, *rec.SummaryStats.CompetitorMin, 1e-9)
	require.NotNil(t, rec.SummaryStats.CompetitorMax)
	assert.InDelta(t, 24.0, *rec.SummaryStats.CompetitorMax, 1e-9)

	// A high unit cost pushes the floor above the mean, then the ceiling
	// (3% over the top competitor) caps the result.
	rec = BuildPricingRecommendation(20, snap, nil, 0.25)
	assert.InDelta(t, 24.72, rec.RecommendedPrice, 1e-9)
}

func TestBuildPricingRecommendationLiftsForAdverseFX(t *testing.T) {
	snap := CompetitorPriceSnapshot{
		Offers: []CompetitorOffer{{Price: 20}, {Price: 22}},
	}
	fx := CalculateFXImpactScenarios(200, "CNY", "USD", 0.14, []float64{-0.10, 0.0, 0.10}, 1)

	// Worst landed cost is 30.8; min safe price 38.5 exceeds the band anchor.
	rec := BuildPricingRecommendation(28, snap, &fx, 0.25)
	assert.InDelta(t, 38.5, rec.RecommendedPrice, 1e-9)
	assert.Contains(t, rec.Rationale, "adverse FX scenario")
}
