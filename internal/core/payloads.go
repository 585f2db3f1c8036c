package core

import (
	"github.com/tidwall/gjson"

	"fx_pricing_agents/internal/logger"
)

// VendorRateOrDefault recovers the current FX rate from a vendor agent
// payload. It accepts either a top-level numeric "rate" field or the first
// element of a "quotes" array carrying one. Anything else, including malformed
// JSON, yields the fallback so a degraded vendor response never stops the run.
func VendorRateOrDefault(vendorFXJSON string, fallback float64) (float64, bool) {
	if gjson.Valid(vendorFXJSON) {
		root := gjson.Parse(vendorFXJSON)
		if root.IsObject() {
			if rate := root.Get("rate"); rate.Type == gjson.Number {
				return rate.Float(), false
			}
			if rate := root.Get("quotes.0.rate"); rate.Type == gjson.Number {
				return rate.Float(), false
			}
		}
	}

	logger.Warn().
		Float64("fallback_rate", fallback).
		Msg("vendor FX payload carried no usable rate, using fallback")
	return fallback, true
}
