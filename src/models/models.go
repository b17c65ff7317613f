package models

type OpenSessionRequest struct {
	Symbol       string `json:"symbol"`
	TickSize     int64  `json:"tick_size"`     // cents
	OpeningPrice int64  `json:"opening_price"` // cents
	Currency     string `json:"currency"`
}

type OpenSessionResponse struct {
	Symbol string `json:"symbol"`
	Status string `json:"status"`
}

type LogonResponse struct {
	ClientID int64  `json:"client_id"`
	Symbol   string `json:"symbol"`
	Price    int64  `json:"price"` // current reference price, cents
}

type SubmitOrderRequest struct {
	ClientID int64  `json:"client_id"`
	Side     string `json:"side"` // BUY or SELL
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type ModifyOrderRequest struct {
	ClientID int64  `json:"client_id"`
	Price    int64  `json:"price"`
	Quantity *int64 `json:"quantity,omitempty"` // omitted = keep working quantity
}

type OrderActionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type OrderBookResponse struct {
	Symbol    string           `json:"symbol"`
	Timestamp int64            `json:"timestamp"` // unix timestamp in milliseconds
	Bids      []PriceLevelInfo `json:"bids"`      // sorted descending (highest first)
	Asks      []PriceLevelInfo `json:"asks"`      // sorted ascending (lowest first)
}

type PriceLevelInfo struct {
	Price    int64 `json:"price"`    // price in cents
	Quantity int64 `json:"quantity"` // aggregated quantity at this price
}

// FeedResponse carries recent outbound wire messages (tag-keyed maps) for
// polling clients.
type FeedResponse struct {
	Messages []map[string]any `json:"messages"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SessionOpen   bool   `json:"session_open"`
}

type MetricsResponse struct {
	OrdersReceived  int64   `json:"orders_received"`
	OrdersModified  int64   `json:"orders_modified"`
	OrdersCancelled int64   `json:"orders_cancelled"`
	OrdersInBook    int64   `json:"orders_in_book"`
	TradesExecuted  int64   `json:"trades_executed"`
	Logons          int64   `json:"logons"`
	LatencyP50Ms    float64 `json:"latency_p50_ms"`
	LatencyP99Ms    float64 `json:"latency_p99_ms"`
	LatencyP999Ms   float64 `json:"latency_p999_ms"`
}
