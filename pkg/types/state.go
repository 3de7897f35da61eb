package types

// OpportunityRecord is the dashboard-facing view of a detected opportunity.
// JSON keys are consumed by the HTML page and the SSE/websocket feeds and
// must stay stable.
type OpportunityRecord struct {
	Timestamp   string  `json:"timestamp"`
	ArbType     string  `json:"arb_type"`
	Market      string  `json:"market"`
	Strategy    string  `json:"strategy"`
	ProfitCents float64 `json:"profit_cents"`
	PolyPrice   float64 `json:"poly_price"`
	KalshiPrice float64 `json:"kalshi_price"`
	URL         string  `json:"url"`
}

// MatcherStats summarizes the persistent match cache for the dashboard.
type MatcherStats struct {
	MatchedPairs    int    `json:"matched_pairs"`
	UnmatchedPoly   int    `json:"unmatched_poly"`
	UnmatchedKalshi int    `json:"unmatched_kalshi"`
	LastFullScan    string `json:"last_full_scan"`
}

// StateSnapshot is the immutable per-tick state published by the scan loop
// and read lock-free by the dashboard handlers.
type StateSnapshot struct {
	Status        string              `json:"status"`
	LastScan      string              `json:"last_scan"` // HH:MM:SS of the last tick
	ScanCount     int64               `json:"scan_count"`
	SpotPrices    map[string]float64  `json:"spot_prices"`
	PolyCount     int                 `json:"poly_count"`
	KalshiCount   int                 `json:"kalshi_count"`
	CryptoPoly    int                 `json:"crypto_poly"`
	CryptoKalshi  int                 `json:"crypto_kalshi"`
	MatchedPairs  int                 `json:"matched_pairs"`
	Matcher       MatcherStats        `json:"matcher"`
	Opportunities []OpportunityRecord `json:"opportunities"`
	Errors        []string            `json:"errors"`
	Uptime        string              `json:"uptime"` // RFC3339 process start
}

// PeriodStats aggregates logged opportunities over a trailing window.
type PeriodStats struct {
	Count       int     `json:"count"`
	ProfitCents float64 `json:"profit_cents"`
}
