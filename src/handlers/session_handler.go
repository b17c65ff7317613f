package handlers

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"market-sim/src/fix"
	"market-sim/src/models"
	"market-sim/src/session"
)

// SessionHandler adapts the in-process session to HTTP for an external
// operator. It subscribes to the session's outbound traffic and keeps a
// bounded feed of recent wire messages for polling clients.
type SessionHandler struct {
	Session   *session.MarketSession
	StartTime time.Time

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int

	feed    []map[string]any
	feedMu  sync.Mutex
	maxFeed int
}

func NewSessionHandler(s *session.MarketSession) *SessionHandler {
	h := &SessionHandler{
		Session:      s,
		StartTime:    time.Now(),
		latencies:    make([]time.Duration, 0, 10000),
		maxLatencies: 10000,
		maxFeed:      256,
	}
	s.Subscribe("gateway-feed", h.appendFeed)
	return h
}

func (h *SessionHandler) appendFeed(msg fix.Message) {
	encoded := fix.Encode(msg)
	if encoded == nil {
		return
	}

	h.feedMu.Lock()
	defer h.feedMu.Unlock()

	h.feed = append(h.feed, encoded)
	// edge case: bound the feed by dropping the oldest messages
	if len(h.feed) > h.maxFeed {
		h.feed = h.feed[len(h.feed)-h.maxFeed:]
	}
}

func (h *SessionHandler) OpenSession(c *fiber.Ctx) error {
	var req models.OpenSessionRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if req.Symbol == "" || req.TickSize <= 0 || req.OpeningPrice <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "symbol, positive tick_size and opening_price are required",
		})
	}

	if h.Session.Book() != nil {
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
			Error: "Session already open",
		})
	}

	h.Session.Handle(fix.SecurityDefinition{
		Symbol:    req.Symbol,
		TickSize:  req.TickSize,
		OpeningPx: req.OpeningPrice,
		Currency:  req.Currency,
	})

	log.Info().
		Str("symbol", req.Symbol).
		Str("ip", c.IP()).
		Msg("Session opened via gateway")

	return c.Status(fiber.StatusCreated).JSON(models.OpenSessionResponse{
		Symbol: req.Symbol,
		Status: "OPEN",
	})
}

// Logon admits the caller as a manual client. The session's logon ack is
// published synchronously during Handle, so a temporary subscriber captures
// the assigned client id.
func (h *SessionHandler) Logon(c *fiber.Ctx) error {
	if h.Session.Book() == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Session not open",
		})
	}

	var (
		mu  sync.Mutex
		ack *fix.LogonAck
	)
	subID := "gateway-logon-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	h.Session.Subscribe(subID, func(msg fix.Message) {
		if la, ok := msg.(fix.LogonAck); ok {
			mu.Lock()
			ack = &la
			mu.Unlock()
		}
	})
	defer h.Session.Unsubscribe(subID)

	h.Session.Handle(fix.Logon{ClientID: fix.SentinelClientID})

	mu.Lock()
	defer mu.Unlock()
	if ack == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Logon not acknowledged",
		})
	}

	log.Info().
		Int64("client_id", ack.ClientID).
		Str("ip", c.IP()).
		Msg("Client logged on")

	return c.Status(fiber.StatusCreated).JSON(models.LogonResponse{
		ClientID: ack.ClientID,
		Symbol:   ack.Symbol,
		Price:    ack.Px,
	})
}

func (h *SessionHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if req.Side != "BUY" && req.Side != "SELL" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "side must be BUY or SELL",
		})
	}
	if req.Price <= 0 || req.Quantity <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "price and quantity must be positive",
		})
	}
	if !h.Session.HasClient(req.ClientID) {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Unknown client",
		})
	}

	qty := req.Quantity
	if req.Side == "SELL" {
		qty = -qty
	}

	start := time.Now()
	h.Session.Handle(fix.NewOrderSingle{
		ClientID: req.ClientID,
		Px:       req.Price,
		OrderQty: qty,
	})
	h.recordLatency(time.Since(start))

	log.Info().
		Int64("client_id", req.ClientID).
		Str("side", req.Side).
		Int64("price", req.Price).
		Int64("quantity", req.Quantity).
		Str("ip", c.IP()).
		Msg("Order submitted")

	return c.Status(fiber.StatusAccepted).JSON(models.OrderActionResponse{
		Status:  "ACCEPTED",
		Message: "Order routed; execution reports arrive on the feed",
	})
}

func (h *SessionHandler) ModifyOrder(c *fiber.Ctx) error {
	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid order id",
		})
	}

	var req models.ModifyOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}
	if req.Price <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "price must be positive",
		})
	}
	if !h.Session.HasClient(req.ClientID) {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Unknown client",
		})
	}

	h.Session.Handle(fix.OrderModifyRequest{
		ClientID: req.ClientID,
		OrderID:  orderID,
		Px:       req.Price,
		Qty:      req.Quantity,
	})

	return c.Status(fiber.StatusAccepted).JSON(models.OrderActionResponse{
		Status: "ACCEPTED",
	})
}

func (h *SessionHandler) CancelOrder(c *fiber.Ctx) error {
	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid order id",
		})
	}

	clientID, err := strconv.ParseInt(c.Query("client_id", ""), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "client_id query parameter is required",
		})
	}
	if !h.Session.HasClient(clientID) {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Unknown client",
		})
	}

	h.Session.Handle(fix.OrderCancelRequest{
		ClientID: clientID,
		OrderID:  orderID,
	})

	log.Info().
		Int64("order_id", orderID).
		Int64("client_id", clientID).
		Str("ip", c.IP()).
		Msg("Cancel routed")

	return c.Status(fiber.StatusAccepted).JSON(models.OrderActionResponse{
		Status: "ACCEPTED",
	})
}

func (h *SessionHandler) GetOrderBook(c *fiber.Ctx) error {
	ob := h.Session.Book()
	if ob == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Session not open",
		})
	}

	snapshot := ob.Snapshot()

	bids := make([]models.PriceLevelInfo, 0)
	asks := make([]models.PriceLevelInfo, 0)
	for _, entry := range snapshot.Entries {
		level := models.PriceLevelInfo{Price: entry.Px, Quantity: entry.Qty}
		if entry.Side == 0 {
			bids = append(bids, level)
		} else {
			asks = append(asks, level)
		}
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderBookResponse{
		Symbol:    snapshot.Symbol,
		Timestamp: snapshot.Timestamp.UnixMilli(),
		Bids:      bids,
		Asks:      asks,
	})
}

func (h *SessionHandler) GetFeed(c *fiber.Ctx) error {
	h.feedMu.Lock()
	messages := make([]map[string]any, len(h.feed))
	copy(messages, h.feed)
	h.feedMu.Unlock()

	return c.Status(fiber.StatusOK).JSON(models.FeedResponse{Messages: messages})
}

func (h *SessionHandler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		SessionOpen:   h.Session.Book() != nil,
	})
}

func (h *SessionHandler) Metrics(c *fiber.Ctx) error {
	var ordersInBook int64
	if ob := h.Session.Book(); ob != nil {
		ordersInBook = int64(ob.OpenOrders())
	}

	stats := h.Session.Stats()
	p50, p99, p999 := h.calculateLatencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:  stats.OrdersReceived.Load(),
		OrdersModified:  stats.OrdersModified.Load(),
		OrdersCancelled: stats.OrdersCancelled.Load(),
		OrdersInBook:    ordersInBook,
		TradesExecuted:  stats.TradesExecuted.Load(),
		Logons:          stats.Logons.Load(),
		LatencyP50Ms:    p50,
		LatencyP99Ms:    p99,
		LatencyP999Ms:   p999,
	})
}

func (h *SessionHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *SessionHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
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

	idx := func(q float64) int {
		i := int(float64(len(latenciesCopy)) * q)
		// edge case: ensure indices are within bounds
		if i >= len(latenciesCopy) {
			i = len(latenciesCopy) - 1
		}
		return i
	}

	p50 = float64(latenciesCopy[idx(0.50)].Nanoseconds()) / 1e6
	p99 = float64(latenciesCopy[idx(0.99)].Nanoseconds()) / 1e6
	p999 = float64(latenciesCopy[idx(0.999)].Nanoseconds()) / 1e6

	return p50, p99, p999
}
