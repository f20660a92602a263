package coinmarketcap

// Status is the envelope header present on every CoinMarketCap Pro API response.
type Status struct {
	Timestamp    string `json:"timestamp"`     // Server time (ISO 8601)
	ErrorCode    int    `json:"error_code"`    // 0 means success
	ErrorMessage string `json:"error_message"` // Human-readable error description
	Elapsed      int    `json:"elapsed"`       // Server processing time in ms
	CreditCount  int    `json:"credit_count"`  // API credits consumed by the call
}

// ListingsResponse is the body of /cryptocurrency/listings/latest.
type ListingsResponse struct {
	Status Status    `json:"status"`
	Data   []Listing `json:"data"`
}

// Listing is one asset entry. Fields are decoded loosely (numbers as json.Number) so that
// malformed values reach the cleaner instead of failing the whole response.
type Listing struct {
	ID     any              `json:"id"`
	Name   any              `json:"name"`
	Symbol any              `json:"symbol"`
	Quote  map[string]Quote `json:"quote"` // keyed by convert currency, e.g. "USD"
}

// Quote holds market figures in one currency.
type Quote struct {
	Price            any `json:"price"`
	MarketCap        any `json:"market_cap"`
	PercentChange24h any `json:"percent_change_24h"`
	Volume24h        any `json:"volume_24h"`
}
