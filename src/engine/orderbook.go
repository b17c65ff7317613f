package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"market-sim/src/event"
	"market-sim/src/fix"
)

type bidLevelItem struct {
	Level *PriceLevel
}

func (p *bidLevelItem) Less(than btree.Item) bool {
	other := than.(*bidLevelItem)
	return p.Level.Px > other.Level.Px
}

type askLevelItem struct {
	Level *PriceLevel
}

func (p *askLevelItem) Less(than btree.Item) bool {
	other := than.(*askLevelItem)
	return p.Level.Px < other.Level.Px
}

// ModifyRequest re-prices and optionally re-sizes a working order. A nil Qty
// keeps the current remaining quantity.
type ModifyRequest struct {
	OrderID int64
	Px      int64
	Qty     *int64
}

// OrderBook owns the bid/ask ladders and id index for one instrument. All
// mutation happens inside its request loops; other components talk to it
// only through the three request signals. The ladders are btrees keyed so
// that in-order iteration walks prices best-first, which keeps matching in
// strict price priority without any ad-hoc sort.
type OrderBook struct {
	Symbol string

	// Request signals: one per order action, drained by Start's loops.
	NewOrders *event.Signal[*Order]
	Modifies  *event.Signal[ModifyRequest]
	Cancels   *event.Signal[int64]

	bids       *btree.BTree // bidLevelItem, best (highest) first
	asks       *btree.BTree // askLevelItem, best (lowest) first
	ordersByID map[int64]*Order
	mu         sync.Mutex

	bookChanged *event.Signal[struct{}]
	trades      *event.Signal[Fill]

	send    func(fix.Message) // outbound W snapshots
	onTrade func(Fill)        // trade dissemination, may be nil

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrderBook wires an idle book; nothing runs until Start. send receives
// aggregated book snapshots, onTrade individual fill legs (subject to the
// signal's most-recent-wins policy).
func NewOrderBook(symbol string, send func(fix.Message), onTrade func(Fill)) *OrderBook {
	return &OrderBook{
		Symbol:      symbol,
		NewOrders:   event.NewSignal[*Order](),
		Modifies:    event.NewSignal[ModifyRequest](),
		Cancels:     event.NewSignal[int64](),
		bids:        btree.New(32),
		asks:        btree.New(32),
		ordersByID:  make(map[int64]*Order),
		bookChanged: event.NewSignal[struct{}](),
		trades:      event.NewSignal[Fill](),
		send:        send,
		onTrade:     onTrade,
	}
}

// Start launches the request and dissemination loops. Each loop runs until
// Stop; a failing handler is logged by its signal and never halts the loop.
func (ob *OrderBook) Start(ctx context.Context) {
	ctx, ob.cancel = context.WithCancel(ctx)

	ob.wg.Add(5)
	go func() {
		defer ob.wg.Done()
		for ob.NewOrders.AwaitAndRun(ctx, ob.newOrder) == nil {
		}
	}()
	go func() {
		defer ob.wg.Done()
		for ob.Modifies.AwaitAndRun(ctx, ob.modifyOrder) == nil {
		}
	}()
	go func() {
		defer ob.wg.Done()
		for ob.Cancels.AwaitAndRun(ctx, ob.cancelOrder) == nil {
		}
	}()
	go func() {
		defer ob.wg.Done()
		for ob.bookChanged.AwaitAndRun(ctx, ob.sendBook) == nil {
		}
	}()
	go func() {
		defer ob.wg.Done()
		for ob.trades.AwaitAndRun(ctx, ob.sendTrade) == nil {
		}
	}()
}

// Stop cancels the loops and waits for in-flight handlers to finish.
func (ob *OrderBook) Stop() {
	if ob.cancel != nil {
		ob.cancel()
	}
	ob.wg.Wait()
}

func (ob *OrderBook) newOrder(order *Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order.Status = StatusNew
	ob.ordersByID[order.ID] = order
	ob.insertLocked(order)
	ob.ack(order, StatusNew)

	log.Debug().
		Int64("order_id", order.ID).
		Str("side", string(order.Side)).
		Int64("px", order.Px).
		Int64("qty", order.Qty).
		Msg("Order accepted")

	ob.matchLocked(order)
	ob.bookChanged.Set(struct{}{})
}

func (ob *OrderBook) modifyOrder(req ModifyRequest) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	// edge case: late modify of an already-terminal order is silently ignored
	order, exists := ob.ordersByID[req.OrderID]
	if !exists {
		log.Debug().Int64("order_id", req.OrderID).Msg("Modify for unknown order ignored")
		return
	}

	qty := order.Qty
	if req.Qty != nil {
		qty = *req.Qty
	}

	// A price change or a size increase forfeits time priority; a size-only
	// decrease at the same price keeps the order's queue position.
	requeue := req.Px != order.Px || qty > order.Qty

	if requeue {
		ob.removeFromLevelLocked(order)
	}

	order.Px = req.Px
	order.Qty = qty
	order.Status = StatusModified

	if requeue {
		ob.insertLocked(order)
	}

	ob.ack(order, StatusModified)
	ob.matchLocked(order)
	ob.bookChanged.Set(struct{}{})
}

func (ob *OrderBook) cancelOrder(orderID int64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	// edge case: cancel racing a fill loses quietly once the order is gone
	order, exists := ob.ordersByID[orderID]
	if !exists {
		log.Debug().Int64("order_id", orderID).Msg("Cancel for unknown order ignored")
		return
	}

	order.Status = StatusCancelled
	delete(ob.ordersByID, orderID)
	ob.removeFromLevelLocked(order)
	ob.ack(order, StatusCancelled)

	log.Debug().
		Int64("order_id", orderID).
		Str("side", string(order.Side)).
		Msg("Order cancelled")

	ob.bookChanged.Set(struct{}{})
}

// matchLocked walks the opposite ladder best price first, FIFO within each
// level, until the incoming order is exhausted or nothing crosses. Both legs
// of every cross trade at the resting order's price.
func (ob *OrderBook) matchLocked(order *Order) {
	var tree *btree.BTree
	if order.Side == SideBuy {
		tree = ob.asks
	} else {
		tree = ob.bids
	}

	for order.Qty > 0 {
		best := tree.Min()
		if best == nil {
			break
		}

		level := levelOf(best)
		if order.Side == SideBuy && order.Px < level.Px {
			break
		}
		if order.Side == SideSell && order.Px > level.Px {
			break
		}

		for order.Qty > 0 && len(level.Orders) > 0 {
			resting := level.Orders[0]
			sz := order.Qty
			if resting.Qty < sz {
				sz = resting.Qty
			}
			// Resting leg first so its removal is visible before the next pass.
			ob.fillLocked(resting, sz, level.Px, order.ID)
			ob.fillLocked(order, sz, level.Px, resting.ID)
		}
	}
}

// fillLocked applies one fill leg: adjusts quantities, transitions status,
// acks, and emits the Fill. An order reaching zero is struck from the book.
func (ob *OrderBook) fillLocked(order *Order, sz, px, counterID int64) {
	order.Qty -= sz
	order.FilledQty += sz

	full := order.Qty == 0
	if full {
		order.Status = StatusFullyFilled
		delete(ob.ordersByID, order.ID)
		ob.removeFromLevelLocked(order)
	} else {
		order.Status = StatusPartiallyFilled
	}
	ob.ack(order, order.Status)

	ob.trades.Set(Fill{
		ExecID:         uuid.New().String(),
		ExecTime:       time.Now(),
		OrderID:        order.ID,
		CounterOrderID: counterID,
		ClientID:       order.ClientID,
		Side:           order.Side,
		Qty:            sz,
		Px:             px,
		Full:           full,
	})
	ob.bookChanged.Set(struct{}{})
}

func (ob *OrderBook) ack(order *Order, status OrderStatus) {
	if order.Acks == nil {
		return
	}
	order.Acks.Set(OrderAck{Order: order.Snapshot(), Status: status})
}

func (ob *OrderBook) insertLocked(order *Order) {
	var tree *btree.BTree
	var probe btree.Item
	if order.Side == SideBuy {
		tree = ob.bids
		probe = &bidLevelItem{Level: &PriceLevel{Px: order.Px}}
	} else {
		tree = ob.asks
		probe = &askLevelItem{Level: &PriceLevel{Px: order.Px}}
	}

	if existing := tree.Get(probe); existing != nil {
		level := levelOf(existing)
		level.Orders = append(level.Orders, order)
		return
	}

	level := &PriceLevel{Px: order.Px, Orders: []*Order{order}}
	if order.Side == SideBuy {
		tree.ReplaceOrInsert(&bidLevelItem{Level: level})
	} else {
		tree.ReplaceOrInsert(&askLevelItem{Level: level})
	}
}

func (ob *OrderBook) removeFromLevelLocked(order *Order) {
	var tree *btree.BTree
	var probe btree.Item
	if order.Side == SideBuy {
		tree = ob.bids
		probe = &bidLevelItem{Level: &PriceLevel{Px: order.Px}}
	} else {
		tree = ob.asks
		probe = &askLevelItem{Level: &PriceLevel{Px: order.Px}}
	}

	existing := tree.Get(probe)
	if existing == nil {
		return
	}

	level := levelOf(existing)
	for i, o := range level.Orders {
		if o.ID == order.ID {
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}

	// edge case: remove empty price level so a price key exists iff orders rest there
	if len(level.Orders) == 0 {
		tree.Delete(probe)
	}
}

func levelOf(item btree.Item) *PriceLevel {
	switch it := item.(type) {
	case *bidLevelItem:
		return it.Level
	case *askLevelItem:
		return it.Level
	default:
		return nil
	}
}

func (ob *OrderBook) sendBook(_ struct{}) {
	msg := ob.Snapshot()
	if ob.send != nil {
		ob.send(msg)
	}
}

func (ob *OrderBook) sendTrade(f Fill) {
	if ob.onTrade != nil {
		ob.onTrade(f)
	}
}

// Snapshot aggregates the resting depth: bids descending then asks
// ascending, quantity summed per price.
func (ob *OrderBook) Snapshot() fix.BookSnapshot {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	msg := fix.BookSnapshot{
		Symbol:    ob.Symbol,
		Timestamp: time.Now(),
	}

	ob.bids.Ascend(func(item btree.Item) bool {
		level := levelOf(item)
		var qty int64
		for _, o := range level.Orders {
			qty += o.Qty
		}
		msg.Entries = append(msg.Entries, fix.MDEntry{Side: 0, Px: level.Px, Qty: qty})
		return true
	})
	ob.asks.Ascend(func(item btree.Item) bool {
		level := levelOf(item)
		var qty int64
		for _, o := range level.Orders {
			qty += o.Qty
		}
		msg.Entries = append(msg.Entries, fix.MDEntry{Side: 1, Px: level.Px, Qty: qty})
		return true
	})

	return msg
}

// GetOrder returns a snapshot of a working order, or false once it has left
// the book.
func (ob *OrderBook) GetOrder(orderID int64) (Order, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, exists := ob.ordersByID[orderID]
	if !exists {
		return Order{}, false
	}
	return order.Snapshot(), true
}

// OpenOrders reports how many orders are resting across both sides.
func (ob *OrderBook) OpenOrders() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return len(ob.ordersByID)
}
