package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"fx_pricing_agents/internal/logger"
)

const (
	vendorName       = "fawazahmed0/currency-api"
	vendorURLPattern = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies/%s.json"
	vendorTimeout    = 8 * time.Second
)

// VendorRate is one converted quote in a vendor FX snapshot.
type VendorRate struct {
	TargetCurrency  string  `json:"target_currency"`
	Rate            float64 `json:"rate"`
	ConvertedAmount float64 `json:"converted_amount"`
}

// VendorFXSnapshot is a vendor-style FX response. Source is "live" when the
// public API answered, "synthetic" when the deterministic fallback was used.
type VendorFXSnapshot struct {
	Vendor       string         `json:"vendor"`
	BaseCurrency string         `json:"base_currency"`
	Amount       float64        `json:"amount"`
	AsOfDate     string         `json:"as_of_date"`
	Source       string         `json:"source"`
	Rates        []VendorRate   `json:"rates"`
	Raw          map[string]any `json:"raw"`
}

// VendorFXClient fetches FX rates from a public JSON API with a synthetic
// deterministic fallback, so downstream stages keep working offline.
type VendorFXClient struct {
	httpClient *http.Client
}

func NewVendorFXClient() *VendorFXClient {
	return &VendorFXClient{
		httpClient: &http.Client{Timeout: vendorTimeout},
	}
}

// FetchRates returns FX rates for the base currency against the target
// currencies, plus converted amounts for the given base amount. Network or
// payload failures never surface as errors; the snapshot degrades to the
// synthetic source instead.
func (c *VendorFXClient) FetchRates(ctx context.Context, baseCurrency string, targetCurrencies []string, amount float64) VendorFXSnapshot {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	targets := make([]string, 0, len(targetCurrencies))
	for _, t := range targetCurrencies {
		targets = append(targets, strings.ToUpper(strings.TrimSpace(t)))
	}
	if amount <= 0 {
		amount = 1.0
	}

	asOfDate := time.Now().UTC().Format("2006-01-02")
	rates, raw, err := c.fetchLive(ctx, base, targets)
	source := "live"
	if err != nil || len(rates) == 0 {
		if err != nil {
			logger.Warn().Err(err).Str("base", base).Msg("vendor FX fetch failed, using synthetic rates")
		}
		rates = syntheticRates(base, targets)
		source = "synthetic"
		raw = map[string]any{
			"date":      asOfDate,
			"base":      base,
			"synthetic": true,
		}
	} else if d, ok := raw["date"].(string); ok {
		asOfDate = d
	}

	rateList := make([]VendorRate, 0, len(targets))
	for _, t := range targets {
		r, ok := rates[t]
		if !ok {
			continue
		}
		rateList = append(rateList, VendorRate{
			TargetCurrency:  t,
			Rate:            round6(r),
			ConvertedAmount: round4(amount * r),
		})
	}

	return VendorFXSnapshot{
		Vendor:       vendorName,
		BaseCurrency: base,
		Amount:       amount,
		AsOfDate:     asOfDate,
		Source:       source,
		Rates:        rateList,
		Raw:          raw,
	}
}

func (c *VendorFXClient) fetchLive(ctx context.Context, base string, targets []string) (map[string]float64, map[string]any, error) {
	url := fmt.Sprintf(vendorURLPattern, strings.ToLower(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build vendor request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("vendor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("vendor returned status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("failed to decode vendor payload: %w", err)
	}

	baseObj, _ := payload[strings.ToLower(base)].(map[string]any)
	rates := make(map[string]float64)
	for k, v := range baseObj {
		code := strings.ToUpper(k)
		for _, t := range targets {
			if code != t {
				continue
			}
			if f, ok := toFloat(v); ok {
				rates[code] = f
			}
		}
	}
	return rates, payload, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// syntheticRates produces plausible deterministic rates keyed on the currency
// pair set, so the offline path is stable across runs.
func syntheticRates(base string, targets []string) map[string]float64 {
	sorted := append([]string(nil), targets...)
	sort.Strings(sorted)
	rng := newRNG(base + ":" + strings.Join(sorted, ","))

	rates := make(map[string]float64, len(targets))
	for _, t := range targets {
		raw := 0.3 + (-0.1 + rng.Float64()*0.4)
		if base == "USD" {
			raw = 0.6 + (-0.2 + rng.Float64()*0.6)
		}
		rates[t] = round6(math.Abs(raw))
	}
	return rates
}
