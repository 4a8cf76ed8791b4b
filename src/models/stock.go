package models

import "time"

// FetchState is the market-data lifecycle of one position.
type FetchState string

const (
	StateIdle     FetchState = "idle"     // no code entered yet
	StateFetching FetchState = "fetching" // a network fetch is in flight
	StateFresh    FetchState = "fresh"    // values came from cache or a completed fetch
	StateErrored  FetchState = "errored"  // retries exhausted, values reset to defaults
)

// Defaults for a new position row.
const (
	DefaultPledgeRate = 2.5
	DefaultFrequency  = 1
)

// StockPosition is one row of the pledged-stock cash-flow table. Price,
// LastDividend and Frequency are overwritten by the market data store; the
// rest is user-owned.
type StockPosition struct {
	ID            string     `json:"id"`
	StockCode     string     `json:"stockCode"`
	Shares        float64    `json:"shares"`
	PledgedShares float64    `json:"pledgedShares"`
	PledgeRate    float64    `json:"pledgeRate"` // annual percent
	Price         float64    `json:"price"`
	LastDividend  float64    `json:"lastDividend"` // most recent per-share dividend
	Frequency     float64    `json:"frequency"`    // dividend events per year
	State         FetchState `json:"state"`
	PriceLoading  bool       `json:"priceLoading"`
	Loading       bool       `json:"loading"`
	PriceError    string     `json:"priceError"`
	Error         string     `json:"error"`
	UpdatedAt     time.Time  `json:"updatedAt,omitempty"`
}

// CacheEntry is the persisted market snapshot for one code.
type CacheEntry struct {
	Price        float64 `json:"price"`
	LastDividend float64 `json:"lastDividend"`
	Timestamp    int64   `json:"timestamp"` // epoch milliseconds
}

// PositionCashflow holds the derived figures for one row.
type PositionCashflow struct {
	ID             string  `json:"id"`
	StockCode      string  `json:"stockCode"`
	MarketValue    float64 `json:"marketValue"`
	AnnualDividend float64 `json:"annualDividend"`
	YieldRate      float64 `json:"yieldRate"` // percent
	PledgeLoan     float64 `json:"pledgeLoan"`
	PledgeInterest float64 `json:"pledgeInterest"`
	NetCashflow    float64 `json:"netCashflow"`
}

// CashflowSummary is the column-wise sum over all rows. Yield is not summed.
type CashflowSummary struct {
	MarketValue    float64 `json:"marketValue"`
	AnnualDividend float64 `json:"annualDividend"`
	PledgeLoan     float64 `json:"pledgeLoan"`
	PledgeInterest float64 `json:"pledgeInterest"`
	NetCashflow    float64 `json:"netCashflow"`
}
