package maker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"market-sim/src/engine"
	"market-sim/src/event"
)

// Params are the quoting parameters for one maker.
type Params struct {
	Px       int64 // initial fair-value estimate, cents
	Qty      int64 // default order size
	Width    int64 // quote width in ticks
	TickSize int64 // cents
	Interval time.Duration
}

// MarketMaker owns at most one working bid and one working ask. With no
// external ack sink it quotes autonomously around its fair-value estimate;
// with one it becomes a passthrough for a remote operator's order actions,
// forwarding every ack to the sink.
type MarketMaker struct {
	Symbol   string
	ClientID int64

	ids       *engine.IDSource
	newOrders *event.Signal[*engine.Order]
	modifies  *event.Signal[engine.ModifyRequest]
	cancels   *event.Signal[int64]

	acks   *event.Signal[engine.OrderAck]
	msAcks *event.Signal[engine.OrderAck] // nil in automated mode
	auto   bool

	mu  sync.Mutex
	bid *engine.Order // working snapshots, nil when no order on that side
	ask *engine.Order
	px  int64

	params Params
	clock  Clock

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New binds a maker to a book's request signals. A nil msAcks selects
// automated quoting; a non-nil one selects manual passthrough mode.
func New(ob *engine.OrderBook, symbol string, clientID int64, ids *engine.IDSource, msAcks *event.Signal[engine.OrderAck], params Params, clock Clock) *MarketMaker {
	if clock == nil {
		clock = RealClock{}
	}
	return &MarketMaker{
		Symbol:    symbol,
		ClientID:  clientID,
		ids:       ids,
		newOrders: ob.NewOrders,
		modifies:  ob.Modifies,
		cancels:   ob.Cancels,
		acks:      event.NewSignal[engine.OrderAck](),
		msAcks:    msAcks,
		auto:      msAcks == nil,
		px:        params.Px,
		params:    params,
		clock:     clock,
	}
}

// Start launches the ack drain and, in automated mode, the quote loop.
func (mm *MarketMaker) Start(ctx context.Context) {
	ctx, mm.cancel = context.WithCancel(ctx)

	mm.wg.Add(1)
	go func() {
		defer mm.wg.Done()
		for mm.acks.AwaitAndRun(ctx, mm.handleAck) == nil {
		}
	}()

	if mm.auto {
		mm.wg.Add(1)
		go func() {
			defer mm.wg.Done()
			mm.quoteLoop(ctx)
		}()
	}
}

// Stop shuts the loops down cooperatively: in-flight handlers finish, the
// loops exit before their next iteration.
func (mm *MarketMaker) Stop() {
	if mm.cancel != nil {
		mm.cancel()
	}
	mm.wg.Wait()
}

// Px reports the maker's current fair-value estimate.
func (mm *MarketMaker) Px() int64 {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.px
}

// PlaceNewOrder posts a new order to the book. The working reference for the
// side is installed immediately as PENDING and replaced by ack snapshots.
func (mm *MarketMaker) PlaceNewOrder(side engine.OrderSide, px, qty int64) {
	order := engine.NewOrder(mm.ids.Next(!mm.auto), mm.ClientID, side, px, qty, !mm.auto, mm.acks)

	pending := order.Snapshot()
	mm.mu.Lock()
	if side == engine.SideBuy {
		mm.bid = &pending
	} else {
		mm.ask = &pending
	}
	mm.mu.Unlock()

	mm.newOrders.Set(order)
}

// ModifyOrder re-prices a working order; a nil qty keeps its size.
func (mm *MarketMaker) ModifyOrder(orderID, px int64, qty *int64) {
	mm.modifies.Set(engine.ModifyRequest{OrderID: orderID, Px: px, Qty: qty})
}

func (mm *MarketMaker) CancelOrder(orderID int64) {
	mm.cancels.Set(orderID)
}

// handleAck keeps the working references current: a live status installs
// the ack's snapshot for its side, a terminal one clears it. Manual makers
// additionally forward every ack to the session's sink.
func (mm *MarketMaker) handleAck(ack engine.OrderAck) {
	snap := ack.Order

	mm.mu.Lock()
	switch ack.Status {
	case engine.StatusNew, engine.StatusModified, engine.StatusPartiallyFilled:
		if snap.Side == engine.SideBuy {
			mm.bid = &snap
		} else {
			mm.ask = &snap
		}
	case engine.StatusCancelled, engine.StatusFullyFilled:
		if snap.Side == engine.SideBuy {
			mm.bid = nil
		} else {
			mm.ask = nil
		}
	}
	mm.mu.Unlock()

	if mm.msAcks != nil {
		mm.msAcks.Set(ack)
	}
}

func (mm *MarketMaker) quoteLoop(ctx context.Context) {
	for {
		mm.quoteOnce()
		select {
		case <-ctx.Done():
			return
		case <-mm.clock.After(mm.params.Interval):
		}
	}
}

// quoteOnce runs one quoting iteration: pick a randomized half-spread,
// derive bid/ask, recenter the fair value to the new mid, then place or
// re-price each side. A side still PENDING is left alone until its first ack.
func (mm *MarketMaker) quoteOnce() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Int64("client_id", mm.ClientID).
				Msg("Quote iteration panicked, loop continues")
		}
	}()

	mm.mu.Lock()
	lo := mm.params.Width/2 - 1
	hi := mm.params.Width/2 + 1
	jitter := lo + rand.Int63n(hi-lo+1)
	bidPx := mm.px - jitter*mm.params.TickSize
	askPx := bidPx + mm.params.Width*mm.params.TickSize
	mm.px = (bidPx + askPx) / 2
	bid, ask := mm.bid, mm.ask
	mm.mu.Unlock()

	if bid == nil {
		mm.PlaceNewOrder(engine.SideBuy, bidPx, mm.params.Qty)
	} else if bid.Status != engine.StatusPending {
		qty := bid.Qty
		mm.ModifyOrder(bid.ID, bidPx, &qty)
	}

	if ask == nil {
		mm.PlaceNewOrder(engine.SideSell, askPx, mm.params.Qty)
	} else if ask.Status != engine.StatusPending {
		qty := ask.Qty
		mm.ModifyOrder(ask.ID, askPx, &qty)
	}
}

// Bid returns the working bid snapshot, nil when none.
func (mm *MarketMaker) Bid() *engine.Order {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.bid
}

// Ask returns the working ask snapshot, nil when none.
func (mm *MarketMaker) Ask() *engine.Order {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.ask
}
