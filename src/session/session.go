package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"market-sim/src/engine"
	"market-sim/src/event"
	"market-sim/src/fix"
	"market-sim/src/maker"
)

// Options tune the venue a session builds on its security definition.
type Options struct {
	NumAutoMakers int
	MakerQty      int64 // base size; maker i quotes MakerQty+i+1
	MakerWidth    int64 // ticks
	QuoteInterval time.Duration
	Clock         maker.Clock       // nil = real time
	OnTrade       func(engine.Fill) // fill dissemination, may be nil
}

// DefaultOptions returns the venue defaults.
func DefaultOptions() Options {
	return Options{
		NumAutoMakers: 1,
		MakerQty:      10,
		MakerWidth:    4,
		QuoteInterval: time.Second,
	}
}

// Stats are the session's running counters, read by the gateway metrics
// endpoint.
type Stats struct {
	OrdersReceived  atomic.Int64
	OrdersModified  atomic.Int64
	OrdersCancelled atomic.Int64
	TradesExecuted  atomic.Int64
	Logons          atomic.Int64
}

// MarketSession is the single entry/exit point for one trading session:
// it owns the book and the maker registry, routes inbound messages by
// MsgType, and forwards outbound traffic to the send callback plus any
// subscribers. Its lifetime is owned by the caller; construct one per
// session, there is no process-wide instance.
type MarketSession struct {
	opts   Options
	send   func(fix.Message)
	onData func(fix.Message)

	mu           sync.Mutex
	symbol       string
	tickSz       int64
	openingPx    int64
	currency     string
	nextClientID int64
	mms          map[int64]*maker.MarketMaker
	ob           *engine.OrderBook
	subs         map[string]func(fix.Message)
	lastFilled   map[int64]int64 // manual order id -> cumulative filled at last report

	ids   engine.IDSource
	acks  *event.Signal[engine.OrderAck]
	stats Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a session and starts its shared ack drain. send receives all
// outbound messages; onData receives anything the router does not handle.
func New(opts Options, send func(fix.Message), onData func(fix.Message)) *MarketSession {
	if opts.Clock == nil {
		opts.Clock = maker.RealClock{}
	}
	s := &MarketSession{
		opts:       opts,
		send:       send,
		onData:     onData,
		mms:        make(map[int64]*maker.MarketMaker),
		subs:       make(map[string]func(fix.Message)),
		lastFilled: make(map[int64]int64),
		acks:       event.NewSignal[engine.OrderAck](),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for s.acks.AwaitAndRun(s.ctx, s.handleAck) == nil {
		}
	}()

	return s
}

// Handle dispatches one inbound message. Order actions for unknown client
// ids are dropped without error: the sender is already gone and late
// actions against terminal orders are expected under concurrent races.
func (s *MarketSession) Handle(msg fix.Message) {
	switch m := msg.(type) {
	case fix.SecurityDefinition:
		s.defineSecurity(m)
	case fix.Logon:
		if m.ClientID == fix.SentinelClientID {
			s.logon()
		}
	case fix.NewOrderSingle:
		s.stats.OrdersReceived.Add(1)
		mm := s.makerFor(m.ClientID)
		if mm == nil {
			return
		}
		side := engine.SideBuy
		qty := m.OrderQty
		if qty < 0 {
			side = engine.SideSell
			qty = -qty
		}
		mm.PlaceNewOrder(side, m.Px, qty)
	case fix.OrderCancelRequest:
		s.stats.OrdersCancelled.Add(1)
		if mm := s.makerFor(m.ClientID); mm != nil {
			mm.CancelOrder(m.OrderID)
		}
	case fix.OrderModifyRequest:
		s.stats.OrdersModified.Add(1)
		if mm := s.makerFor(m.ClientID); mm != nil {
			mm.ModifyOrder(m.OrderID, m.Px, m.Qty)
		}
	default:
		if s.onData != nil {
			s.onData(msg)
		}
	}
}

// defineSecurity opens the venue: captures the instrument, starts the book
// and the automated makers, and echoes the definition.
func (s *MarketSession) defineSecurity(def fix.SecurityDefinition) {
	s.mu.Lock()
	if s.ob != nil {
		s.mu.Unlock()
		log.Warn().Str("symbol", def.Symbol).Msg("Security definition ignored, session already open")
		return
	}

	s.symbol = def.Symbol
	s.tickSz = def.TickSize
	s.openingPx = def.OpeningPx
	s.currency = def.Currency

	s.ob = engine.NewOrderBook(def.Symbol, s.publish, s.onTrade)
	s.ob.Start(s.ctx)

	for i := 0; i < s.opts.NumAutoMakers; i++ {
		clientID := s.nextClientID
		s.nextClientID++
		mm := maker.New(s.ob, s.symbol, clientID, &s.ids, nil, maker.Params{
			Px:       s.openingPx,
			Qty:      s.opts.MakerQty + int64(i) + 1,
			Width:    s.opts.MakerWidth,
			TickSize: s.tickSz,
			Interval: s.opts.QuoteInterval,
		}, s.opts.Clock)
		s.mms[clientID] = mm
		mm.Start(s.ctx)
	}
	s.mu.Unlock()

	log.Info().
		Str("symbol", def.Symbol).
		Int64("tick_size", def.TickSize).
		Int64("opening_px", def.OpeningPx).
		Str("currency", def.Currency).
		Int("auto_makers", s.opts.NumAutoMakers).
		Msg("Session opened")

	s.publish(def)
}

// logon admits a remote operator: a fresh client id and a manual maker
// bound to the session's shared ack signal. Errors leave the logon
// unacknowledged.
func (s *MarketSession) logon() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Logon failed")
		}
	}()

	s.mu.Lock()
	if s.ob == nil {
		s.mu.Unlock()
		log.Warn().Msg("Logon before security definition ignored")
		return
	}
	clientID := s.nextClientID
	s.nextClientID++
	mm := maker.New(s.ob, s.symbol, clientID, &s.ids, s.acks, maker.Params{
		Px:       s.openingPx,
		Qty:      s.opts.MakerQty,
		Width:    s.opts.MakerWidth,
		TickSize: s.tickSz,
		Interval: s.opts.QuoteInterval,
	}, s.opts.Clock)
	s.mms[clientID] = mm
	symbol := s.symbol
	s.mu.Unlock()

	mm.Start(s.ctx)
	s.stats.Logons.Add(1)

	log.Info().Int64("client_id", clientID).Msg("Manual client logged on")

	s.publish(fix.LogonAck{Symbol: symbol, ClientID: clientID, Px: mm.Px()})
}

func (s *MarketSession) makerFor(clientID int64) *maker.MarketMaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	mm, ok := s.mms[clientID]
	if !ok {
		// edge case: actions from unknown or disconnected clients are dropped
		log.Debug().Int64("client_id", clientID).Msg("Action for unknown client ignored")
		return nil
	}
	return mm
}

// handleAck drains the shared ack signal fed by every manual maker and
// synthesizes an execution report for each manually placed (negative id)
// order.
func (s *MarketSession) handleAck(ack engine.OrderAck) {
	if ack.Order.ID >= 0 {
		return
	}

	report := fix.ExecutionReport{
		TargetClientID: ack.Order.ClientID,
		OrderID:        ack.Order.ID,
		Side:           fix.SideBuy,
		Px:             ack.Order.Px,
		Timestamp:      time.Now(),
	}
	if ack.Order.Side == engine.SideSell {
		report.Side = fix.SideSell
	}

	switch ack.Status {
	case engine.StatusNew:
		report.ExecType = fix.ExecTypeNew
		report.Qty = ack.Order.Qty
	case engine.StatusCancelled:
		report.ExecType = fix.ExecTypeCancelled
		report.Qty = ack.Order.Qty
	case engine.StatusModified:
		report.ExecType = fix.ExecTypeModified
		report.Qty = ack.Order.Qty
	case engine.StatusFullyFilled:
		report.ExecType = fix.ExecTypeFill
		report.Qty = ack.Order.FilledQty // total filled size
	case engine.StatusPartiallyFilled:
		report.ExecType = fix.ExecTypePartialFill
		report.Qty = s.incrementalFill(ack.Order.ID, ack.Order.FilledQty)
	default:
		return
	}

	if ack.Status.Terminal() {
		s.mu.Lock()
		delete(s.lastFilled, ack.Order.ID)
		s.mu.Unlock()
	}

	s.publish(report)
}

// incrementalFill converts the cumulative filled quantity on the ack into
// the size of just this fill.
func (s *MarketSession) incrementalFill(orderID, cumFilled int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc := cumFilled - s.lastFilled[orderID]
	s.lastFilled[orderID] = cumFilled
	return inc
}

func (s *MarketSession) onTrade(f engine.Fill) {
	s.stats.TradesExecuted.Add(1)
	if s.opts.OnTrade != nil {
		s.opts.OnTrade(f)
	}
}

// publish delivers an outbound message to the send callback and every
// subscriber. Subscriber panics are contained; one bad listener never
// blocks the others.
func (s *MarketSession) publish(msg fix.Message) {
	if s.send != nil {
		s.send(msg)
	}

	s.mu.Lock()
	listeners := make([]func(fix.Message), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Subscriber panicked")
				}
			}()
			fn(msg)
		}()
	}
}

// Subscribe registers a listener for all outbound messages under id,
// replacing any previous listener with the same id.
func (s *MarketSession) Subscribe(id string, fn func(fix.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = fn
}

func (s *MarketSession) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// Book exposes the order book for read-only gateway queries; nil until a
// security definition has been handled.
func (s *MarketSession) Book() *engine.OrderBook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ob
}

// HasClient reports whether a maker is registered under clientID.
func (s *MarketSession) HasClient(clientID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.mms[clientID]
	return ok
}

func (s *MarketSession) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

func (s *MarketSession) Stats() *Stats {
	return &s.stats
}

// Close stops the book, every maker, and the ack drain. Cooperative:
// running handlers finish before their loops exit.
func (s *MarketSession) Close() {
	s.cancel()

	s.mu.Lock()
	ob := s.ob
	makers := make([]*maker.MarketMaker, 0, len(s.mms))
	for _, mm := range s.mms {
		makers = append(makers, mm)
	}
	s.mu.Unlock()

	if ob != nil {
		ob.Stop()
	}
	for _, mm := range makers {
		mm.Stop()
	}
	s.wg.Wait()

	log.Info().Msg("Session closed")
}
