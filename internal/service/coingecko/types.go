package coingecko

import "github.com/shopspring/decimal"

// marketChartRangeResponse is the body of /coins/{id}/market_chart/range.
//
//	{
//	  "prices": [[1704067200000, 3456.78], [1704070800000, 3460.12]],
//	  "market_caps": [...],
//	  "total_volumes": [...]
//	}
type marketChartRangeResponse struct {
	Prices [][]decimal.Decimal `json:"prices"`
}

// simplePriceResponse is the body of /simple/price, keyed by asset id then quote currency.
//
//	{"ethereum": {"usd": 3456.78}}
type simplePriceResponse map[string]map[string]decimal.Decimal
