package maker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-sim/src/engine"
	"market-sim/src/event"
	"market-sim/src/fix"
)

type fakeClock struct {
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{ch: make(chan time.Time, 1)}
}

func (f *fakeClock) After(time.Duration) <-chan time.Time { return f.ch }
func (f *fakeClock) Now() time.Time                       { return time.Now() }

// tick releases one quote-loop iteration if the loop is waiting.
func (f *fakeClock) tick() {
	select {
	case f.ch <- time.Time{}:
	default:
	}
}

func testParams() Params {
	return Params{Px: 10000, Qty: 10, Width: 4, TickSize: 1, Interval: time.Second}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAutoMakerQuotesBothSides(t *testing.T) {
	ob := engine.NewOrderBook("SIM", nil, nil)
	ob.Start(context.Background())
	defer ob.Stop()

	var ids engine.IDSource
	fc := newFakeClock()
	mm := New(ob, "SIM", 0, &ids, nil, testParams(), fc)
	mm.Start(context.Background())
	defer mm.Stop()

	// A quote iteration can lose one side to the signal's drop policy;
	// later iterations re-place or re-price whatever is missing or stale,
	// so tick until a settled two-sided quote shows up.
	var bid, ask fix.MDEntry
	waitFor(t, 2*time.Second, func() bool {
		var haveBid, haveAsk bool
		for _, e := range ob.Snapshot().Entries {
			if e.Side == 0 {
				bid, haveBid = e, true
			} else {
				ask, haveAsk = e, true
			}
		}
		if haveBid && haveAsk && ask.Px-bid.Px == 4 {
			return true
		}
		fc.tick()
		return false
	}, "maker never settled on a two-sided quote")

	assert.Equal(t, int64(10), bid.Qty)
	assert.Equal(t, int64(10), ask.Qty)
}

func TestAutoMakerRecentersFairValue(t *testing.T) {
	ob := engine.NewOrderBook("SIM", nil, nil)

	var ids engine.IDSource
	mm := New(ob, "SIM", 0, &ids, nil, testParams(), newFakeClock())

	before := mm.Px()
	mm.quoteOnce()
	after := mm.Px()

	// New mid = bid + width/2 ticks; with jitter in [1,3] ticks the
	// recentre stays within one tick of the previous fair value.
	assert.InDelta(t, before, after, 1)
}

func TestQuoteLeavesPendingOrdersAlone(t *testing.T) {
	// Book not started: the placed orders stay PENDING, so a second
	// iteration must not emit modifies for them.
	ob := engine.NewOrderBook("SIM", nil, nil)

	var ids engine.IDSource
	mm := New(ob, "SIM", 0, &ids, nil, testParams(), newFakeClock())

	mm.quoteOnce()
	require.NotNil(t, mm.Bid())
	require.NotNil(t, mm.Ask())
	assert.Equal(t, engine.StatusPending, mm.Bid().Status)

	mm.quoteOnce()

	// No modify request may be pending on the book.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ob.Modifies.AwaitAndRun(ctx, func(engine.ModifyRequest) {
		t.Fatal("pending order must not be modified")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandleAckInstallsAndClearsWorkingRefs(t *testing.T) {
	ob := engine.NewOrderBook("SIM", nil, nil)
	var ids engine.IDSource
	mm := New(ob, "SIM", 3, &ids, nil, testParams(), newFakeClock())

	order := engine.NewOrder(5, 3, engine.SideBuy, 9998, 10, false, nil)

	mm.handleAck(engine.OrderAck{Order: order.Snapshot(), Status: engine.StatusNew})
	require.NotNil(t, mm.Bid())
	assert.Equal(t, int64(5), mm.Bid().ID)
	assert.Nil(t, mm.Ask())

	order.Qty, order.FilledQty = 6, 4
	mm.handleAck(engine.OrderAck{Order: order.Snapshot(), Status: engine.StatusPartiallyFilled})
	assert.Equal(t, int64(6), mm.Bid().Qty)

	mm.handleAck(engine.OrderAck{Order: order.Snapshot(), Status: engine.StatusFullyFilled})
	assert.Nil(t, mm.Bid())
}

func TestManualMakerForwardsAcks(t *testing.T) {
	ob := engine.NewOrderBook("SIM", nil, nil)
	ob.Start(context.Background())
	defer ob.Stop()

	msAcks := event.NewSignal[engine.OrderAck]()
	var ids engine.IDSource
	mm := New(ob, "SIM", 1, &ids, msAcks, testParams(), newFakeClock())
	mm.Start(context.Background())
	defer mm.Stop()

	mm.PlaceNewOrder(engine.SideBuy, 10000, 5)

	var ack engine.OrderAck
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, msAcks.AwaitAndRun(ctx, func(a engine.OrderAck) { ack = a }))

	assert.Equal(t, engine.StatusNew, ack.Status)
	assert.True(t, ack.Order.Manual)
	assert.Negative(t, ack.Order.ID, "manual orders carry negative ids")
	assert.Equal(t, int64(1), ack.Order.ClientID)

	mm.CancelOrder(ack.Order.ID)

	require.NoError(t, msAcks.AwaitAndRun(ctx, func(a engine.OrderAck) { ack = a }))
	assert.Equal(t, engine.StatusCancelled, ack.Status)

	waitFor(t, time.Second, func() bool { return mm.Bid() == nil }, "working bid not cleared after cancel")
}

func TestManualMakerDoesNotQuote(t *testing.T) {
	ob := engine.NewOrderBook("SIM", nil, nil)
	ob.Start(context.Background())
	defer ob.Stop()

	msAcks := event.NewSignal[engine.OrderAck]()
	var ids engine.IDSource
	mm := New(ob, "SIM", 1, &ids, msAcks, testParams(), newFakeClock())
	mm.Start(context.Background())
	defer mm.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, ob.OpenOrders(), "manual maker must not place orders on its own")
}
