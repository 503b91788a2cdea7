package handlers

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"clob-venue/src/config"
	"clob-venue/src/custody"
	"clob-venue/src/engine"
	"clob-venue/src/models"
	"clob-venue/src/store"
)

const principalHeader = "X-Principal"

type VenueHandler struct {
	Matcher *engine.Matcher
	Store   *store.Store
	Cfg     *config.Config

	StartTime      time.Time
	OrdersReceived int64
	OrdersMatched  int64
	TradesExecuted int64
	Deposits       int64
	Withdrawals    int64

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewVenueHandler(matcher *engine.Matcher, st *store.Store, cfg *config.Config) *VenueHandler {
	return &VenueHandler{
		Matcher:      matcher,
		Store:        st,
		Cfg:          cfg,
		StartTime:    time.Now(),
		latencies:    make([]time.Duration, 0, 10000),
		maxLatencies: 10000,
	}
}

// principal extracts the already-authenticated caller id. Authentication is
// an upstream concern; an empty header is the only rejection here.
func principal(c *fiber.Ctx) (engine.Principal, error) {
	p := c.Get(principalHeader)
	if p == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing "+principalHeader+" header")
	}
	return engine.Principal(p), nil
}

func statusForError(err error) int {
	var venueErr *engine.VenueError
	if errors.As(err, &venueErr) {
		switch venueErr.Code {
		case engine.CodeOrderNotFound, engine.CodeOrderbookNotFound, engine.CodeUserNotFound:
			return fiber.StatusNotFound
		case engine.CodeNotOrderOwner, engine.CodeUnauthorized:
			return fiber.StatusForbidden
		case engine.CodeOrderbookFull, engine.CodeTooManyUsers:
			return fiber.StatusConflict
		case engine.CodeCalculationFailure:
			return fiber.StatusInternalServerError
		default:
			return fiber.StatusBadRequest
		}
	}
	if errors.Is(err, custody.ErrInsufficientFunds) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func errorBody(err error) models.ErrorResponse {
	var venueErr *engine.VenueError
	if errors.As(err, &venueErr) {
		return models.ErrorResponse{Code: string(venueErr.Code), Error: venueErr.Message}
	}
	if errors.Is(err, custody.ErrInsufficientFunds) {
		return models.ErrorResponse{Code: "INSUFFICIENT_FUNDS", Error: err.Error()}
	}
	return models.ErrorResponse{Error: "Internal server error"}
}

func replyError(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(errorBody(err))
}

func (h *VenueHandler) InitOrderbook(c *fiber.Ctx) error {
	var req models.InitOrderbookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}
	if req.BaseAsset == "" || req.QuoteAsset == "" || req.Authority == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: base_asset, quote_asset and authority are required",
		})
	}

	ob := h.Matcher.InitOrderBook(
		req.BaseAsset, req.QuoteAsset,
		req.BaseDecimals, req.QuoteDecimals,
		engine.Principal(req.Authority),
		h.Cfg.Matching.PreserveTimePriority,
	)
	pair := engine.PairKey(ob.BaseAsset, ob.QuoteAsset)

	log.Info().
		Str("pair", pair).
		Str("authority", string(ob.Authority)).
		Msg("Orderbook initialized")

	return c.Status(fiber.StatusCreated).JSON(models.InitOrderbookResponse{
		Pair:          pair,
		BaseAsset:     ob.BaseAsset,
		QuoteAsset:    ob.QuoteAsset,
		BaseDecimals:  ob.BaseDecimals,
		QuoteDecimals: ob.QuoteDecimals,
		Authority:     string(ob.Authority),
		IsRelocated:   ob.IsRelocated,
	})
}

func (h *VenueHandler) Deposit(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	pair := c.Params("pair")

	var req models.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if err := h.Matcher.Deposit(pair, caller, req.BaseAmount, req.QuoteAmount); err != nil {
		log.Warn().
			Err(err).
			Str("pair", pair).
			Str("principal", string(caller)).
			Uint64("base_amount", req.BaseAmount).
			Uint64("quote_amount", req.QuoteAmount).
			Msg("Deposit failed")
		return replyError(c, err)
	}

	atomic.AddInt64(&h.Deposits, 1)

	base, quote, err := h.Matcher.Balance(pair, caller)
	if err != nil {
		return replyError(c, err)
	}

	log.Info().
		Str("pair", pair).
		Str("principal", string(caller)).
		Uint64("base_amount", req.BaseAmount).
		Uint64("quote_amount", req.QuoteAmount).
		Msg("Deposit settled")

	return c.Status(fiber.StatusOK).JSON(models.BalanceResponse{
		Pair:        pair,
		Owner:       string(caller),
		BaseAmount:  base,
		QuoteAmount: quote,
	})
}

func (h *VenueHandler) Withdraw(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	pair := c.Params("pair")

	var req models.WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if err := h.Matcher.Withdraw(pair, caller, req.BaseAmount, req.QuoteAmount); err != nil {
		log.Warn().
			Err(err).
			Str("pair", pair).
			Str("principal", string(caller)).
			Uint64("base_amount", req.BaseAmount).
			Uint64("quote_amount", req.QuoteAmount).
			Msg("Withdrawal failed")
		return replyError(c, err)
	}

	atomic.AddInt64(&h.Withdrawals, 1)

	base, quote, err := h.Matcher.Balance(pair, caller)
	if err != nil {
		return replyError(c, err)
	}

	log.Info().
		Str("pair", pair).
		Str("principal", string(caller)).
		Uint64("base_amount", req.BaseAmount).
		Uint64("quote_amount", req.QuoteAmount).
		Msg("Withdrawal settled")

	return c.Status(fiber.StatusOK).JSON(models.BalanceResponse{
		Pair:        pair,
		Owner:       string(caller),
		BaseAmount:  base,
		QuoteAmount: quote,
	})
}

func (h *VenueHandler) CreateOrder(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	pair := c.Params("pair")

	var req models.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	side, err := engine.ParseSide(req.Side)
	if err != nil {
		return replyError(c, err)
	}

	atomic.AddInt64(&h.OrdersReceived, 1)

	order, err := h.Matcher.CreateOrder(pair, caller, side, req.Price, req.Amount)
	if err != nil {
		log.Warn().
			Err(err).
			Str("pair", pair).
			Str("principal", string(caller)).
			Str("side", req.Side).
			Uint64("price", req.Price).
			Uint64("amount", req.Amount).
			Msg("Order rejected")
		return replyError(c, err)
	}

	log.Info().
		Str("pair", pair).
		Uint64("order_id", order.ID).
		Str("principal", string(caller)).
		Str("side", order.Side.String()).
		Uint64("price", order.Price).
		Uint64("amount", order.OriginalAmount).
		Msg("Order admitted")

	return c.Status(fiber.StatusCreated).JSON(models.CreateOrderResponse{
		OrderID:         order.ID,
		Pair:            pair,
		Side:            order.Side.String(),
		Price:           order.Price,
		OriginalAmount:  order.OriginalAmount,
		RemainingAmount: order.RemainingAmount,
		CreatedAt:       order.CreatedAt,
	})
}

func (h *VenueHandler) MatchOrder(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	pair := c.Params("pair")

	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid order id",
		})
	}

	startTime := time.Now()
	result, err := h.Matcher.MatchOrder(pair, caller, orderID)
	h.recordLatency(time.Since(startTime))

	if err != nil {
		log.Warn().
			Err(err).
			Str("pair", pair).
			Uint64("order_id", orderID).
			Str("principal", string(caller)).
			Msg("Match failed")
		return replyError(c, err)
	}

	if result.FilledAmount > 0 {
		atomic.AddInt64(&h.OrdersMatched, 1)
	}
	atomic.AddInt64(&h.TradesExecuted, int64(len(result.Trades)))

	trades := make([]models.TradeInfo, 0, len(result.Trades))
	for _, trade := range result.Trades {
		trades = append(trades, models.TradeInfo{
			TradeID:      trade.TradeID,
			TakerOrderID: trade.TakerOrderID,
			MakerOrderID: trade.MakerOrderID,
			Price:        trade.Price,
			Amount:       trade.Amount,
			QuoteAmount:  trade.QuoteAmount,
			Timestamp:    trade.Timestamp,
		})
	}

	log.Info().
		Str("pair", pair).
		Uint64("order_id", orderID).
		Uint64("filled_amount", result.FilledAmount).
		Uint64("remaining_amount", result.RemainingAmount).
		Int("trades_count", len(result.Trades)).
		Msg("Order matched")

	return c.Status(fiber.StatusOK).JSON(models.MatchOrderResponse{
		OrderID:         result.OrderID,
		FilledAmount:    result.FilledAmount,
		RemainingAmount: result.RemainingAmount,
		Trades:          trades,
	})
}

func (h *VenueHandler) GetOrder(c *fiber.Ctx) error {
	pair := c.Params("pair")

	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid order id",
		})
	}

	order, err := h.Matcher.GetOrder(pair, orderID)
	if err != nil {
		return replyError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderStatusResponse{
		OrderID:         order.ID,
		Pair:            pair,
		Owner:           string(order.Owner),
		Side:            order.Side.String(),
		Price:           order.Price,
		OriginalAmount:  order.OriginalAmount,
		RemainingAmount: order.RemainingAmount,
		CreatedAt:       order.CreatedAt,
	})
}

func (h *VenueHandler) GetBalance(c *fiber.Ctx) error {
	pair := c.Params("pair")
	owner := engine.Principal(c.Params("owner"))

	base, quote, err := h.Matcher.Balance(pair, owner)
	if err != nil {
		return replyError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.BalanceResponse{
		Pair:        pair,
		Owner:       string(owner),
		BaseAmount:  base,
		QuoteAmount: quote,
	})
}

func (h *VenueHandler) GetDepth(c *fiber.Ctx) error {
	pair := c.Params("pair")

	levels := h.Cfg.Depth.DefaultLevels
	if raw := c.Query("levels"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			levels = parsed
		}
	}
	if levels > h.Cfg.Depth.MaxLevels {
		levels = h.Cfg.Depth.MaxLevels
	}

	bids, asks, err := h.Matcher.Depth(pair, levels)
	if err != nil {
		return replyError(c, err)
	}

	bidInfos := make([]models.PriceLevelInfo, 0, len(bids))
	for _, level := range bids {
		bidInfos = append(bidInfos, models.PriceLevelInfo{Price: level.Price, Amount: level.Amount})
	}
	askInfos := make([]models.PriceLevelInfo, 0, len(asks))
	for _, level := range asks {
		askInfos = append(askInfos, models.PriceLevelInfo{Price: level.Price, Amount: level.Amount})
	}

	return c.Status(fiber.StatusOK).JSON(models.DepthResponse{
		Pair:      pair,
		Timestamp: time.Now().UnixMilli(),
		Bids:      bidInfos,
		Asks:      askInfos,
	})
}

// SetDelegation flips the relocation marker and checkpoints the aggregate so
// the external delegate mechanism picks up a committed snapshot.
func (h *VenueHandler) SetDelegation(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	pair := c.Params("pair")

	var req models.SetDelegationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	ob, err := h.Matcher.SetRelocated(pair, caller, req.IsRelocated)
	if err != nil {
		log.Warn().
			Err(err).
			Str("pair", pair).
			Str("principal", string(caller)).
			Msg("Delegation update rejected")
		return replyError(c, err)
	}

	if h.Store != nil {
		if err := h.Store.SaveBook(pair, ob); err != nil {
			log.Error().
				Err(err).
				Str("pair", pair).
				Msg("Failed to checkpoint orderbook")
		}
	}

	log.Info().
		Str("pair", pair).
		Bool("is_relocated", req.IsRelocated).
		Msg("Delegation status updated")

	return c.Status(fiber.StatusOK).JSON(models.SetDelegationResponse{
		Pair:        pair,
		IsRelocated: req.IsRelocated,
	})
}

func (h *VenueHandler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		OpenOrders:    h.Matcher.OpenOrders(),
	})
}

func (h *VenueHandler) Metrics(c *fiber.Ctx) error {
	p50, p99, p999 := h.calculateLatencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:         atomic.LoadInt64(&h.OrdersReceived),
		OrdersMatched:          atomic.LoadInt64(&h.OrdersMatched),
		TradesExecuted:         atomic.LoadInt64(&h.TradesExecuted),
		Deposits:               atomic.LoadInt64(&h.Deposits),
		Withdrawals:            atomic.LoadInt64(&h.Withdrawals),
		OpenOrders:             h.Matcher.OpenOrders(),
		LatencyP50Ms:           p50,
		LatencyP99Ms:           p99,
		LatencyP999Ms:          p999,
		ThroughputOrdersPerSec: h.calculateThroughput(),
	})
}

func (h *VenueHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *VenueHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0, 0
	}

	latenciesCopy := make([]time.Duration, len(h.latencies))
	copy(latenciesCopy, h.latencies)

	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	percentile := func(q float64) float64 {
		idx := int(float64(len(latenciesCopy)) * q)
		if idx >= len(latenciesCopy) {
			idx = len(latenciesCopy) - 1
		}
		return float64(latenciesCopy[idx].Nanoseconds()) / 1e6
	}
	return percentile(0.50), percentile(0.99), percentile(0.999)
}

func (h *VenueHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&h.OrdersReceived)) / uptime
}
