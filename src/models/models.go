package models

type InitOrderbookRequest struct {
	BaseAsset     string `json:"base_asset"`
	QuoteAsset    string `json:"quote_asset"`
	BaseDecimals  uint8  `json:"base_decimals"`
	QuoteDecimals uint8  `json:"quote_decimals"`
	Authority     string `json:"authority"`
}

type InitOrderbookResponse struct {
	Pair          string `json:"pair"`
	BaseAsset     string `json:"base_asset"`
	QuoteAsset    string `json:"quote_asset"`
	BaseDecimals  uint8  `json:"base_decimals"`
	QuoteDecimals uint8  `json:"quote_decimals"`
	Authority     string `json:"authority"`
	IsRelocated   bool   `json:"is_relocated"`
}

type DepositRequest struct {
	BaseAmount  uint64 `json:"base_amount"`
	QuoteAmount uint64 `json:"quote_amount"`
}

type WithdrawRequest struct {
	BaseAmount  uint64 `json:"base_amount"`
	QuoteAmount uint64 `json:"quote_amount"`
}

type BalanceResponse struct {
	Pair        string `json:"pair"`
	Owner       string `json:"owner"`
	BaseAmount  uint64 `json:"base_amount"`
	QuoteAmount uint64 `json:"quote_amount"`
}

type CreateOrderRequest struct {
	Side   string `json:"side"`
	Price  uint64 `json:"price"`
	Amount uint64 `json:"amount"`
}

type CreateOrderResponse struct {
	OrderID         uint64 `json:"order_id"`
	Pair            string `json:"pair"`
	Side            string `json:"side"`
	Price           uint64 `json:"price"`
	OriginalAmount  uint64 `json:"original_amount"`
	RemainingAmount uint64 `json:"remaining_amount"`
	CreatedAt       int64  `json:"created_at"` // unix timestamp in milliseconds
}

type TradeInfo struct {
	TradeID      string `json:"trade_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	Price        uint64 `json:"price"`
	Amount       uint64 `json:"amount"`
	QuoteAmount  uint64 `json:"quote_amount"`
	Timestamp    int64  `json:"timestamp"` // unix timestamp in milliseconds
}

type MatchOrderResponse struct {
	OrderID         uint64      `json:"order_id"`
	FilledAmount    uint64      `json:"filled_amount"`
	RemainingAmount uint64      `json:"remaining_amount"`
	Trades          []TradeInfo `json:"trades,omitempty"`
}

type OrderStatusResponse struct {
	OrderID         uint64 `json:"order_id"`
	Pair            string `json:"pair"`
	Owner           string `json:"owner"`
	Side            string `json:"side"`
	Price           uint64 `json:"price"`
	OriginalAmount  uint64 `json:"original_amount"`
	RemainingAmount uint64 `json:"remaining_amount"`
	CreatedAt       int64  `json:"created_at"` // unix timestamp in milliseconds
}

type PriceLevelInfo struct {
	Price  uint64 `json:"price"`
	Amount uint64 `json:"amount"` // aggregated remaining amount at this price
}

type DepthResponse struct {
	Pair      string           `json:"pair"`
	Timestamp int64            `json:"timestamp"` // unix timestamp in milliseconds
	Bids      []PriceLevelInfo `json:"bids"`      // sorted descending (highest first)
	Asks      []PriceLevelInfo `json:"asks"`      // sorted ascending (lowest first)
}

type SetDelegationRequest struct {
	IsRelocated bool `json:"is_relocated"`
}

type SetDelegationResponse struct {
	Pair        string `json:"pair"`
	IsRelocated bool   `json:"is_relocated"`
}

type ErrorResponse struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	OpenOrders    int64  `json:"open_orders"`
}

type MetricsResponse struct {
	OrdersReceived         int64   `json:"orders_received"`
	OrdersMatched          int64   `json:"orders_matched"`
	TradesExecuted         int64   `json:"trades_executed"`
	Deposits               int64   `json:"deposits"`
	Withdrawals            int64   `json:"withdrawals"`
	OpenOrders             int64   `json:"open_orders"`
	LatencyP50Ms           float64 `json:"latency_p50_ms"`
	LatencyP99Ms           float64 `json:"latency_p99_ms"`
	LatencyP999Ms          float64 `json:"latency_p999_ms"`
	ThroughputOrdersPerSec float64 `json:"throughput_orders_per_sec"`
}
