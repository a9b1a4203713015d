package report

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const currencySymbol = "€"

// Amount is a lenient numeric field: JSON numbers and numeric strings decode
// to their value, anything else (including absence) to zero.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*a = Amount(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && finite(v) {
			*a = Amount(v)
			return nil
		}
	}
	*a = 0
	return nil
}

type Financials struct {
	EstimatedROIPercentage   Amount `json:"estimated_roi_percentage"`
	TotalProjectedRevenueUSD Amount `json:"total_projected_revenue_usd"`
	TotalProjectedCostUSD    Amount `json:"total_projected_cost_usd"`
	NetProfit                Amount `json:"net_profit"`
}

// FormatCurrency renders an amount with thousands separators and at most three
// fractional digits, prefixed by the euro sign.
func FormatCurrency(v float64) string {
	rounded := math.Round(v*1000) / 1000
	if !finite(rounded) {
		rounded = v
	}
	return currencySymbol + humanize.Commaf(rounded)
}
