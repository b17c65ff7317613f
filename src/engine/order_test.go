package engine

import (
	"testing"

	"market-sim/src/event"
)

func TestIDSourceMonotonic(t *testing.T) {
	var ids IDSource

	a := ids.Next(false)
	b := ids.Next(false)
	if b <= a {
		t.Errorf("Expected monotonic ids, got %d then %d", a, b)
	}

	m := ids.Next(true)
	if m >= 0 {
		t.Errorf("Expected negative id for manual order, got %d", m)
	}
	if -m <= b {
		t.Errorf("Expected manual id magnitude to continue the sequence, got %d after %d", m, b)
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []OrderStatus{StatusFullyFilled, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	live := []OrderStatus{StatusPending, StatusNew, StatusModified, StatusPartiallyFilled}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	order := NewOrder(1, 7, SideBuy, 10000, 25, false, event.NewSignal[OrderAck]())

	snap := order.Snapshot()

	order.Qty = 5
	order.FilledQty = 20
	order.Status = StatusPartiallyFilled

	if snap.Qty != 25 {
		t.Errorf("Expected snapshot qty 25, got %d", snap.Qty)
	}
	if snap.Status != StatusPending {
		t.Errorf("Expected snapshot status PENDING, got %s", snap.Status)
	}
	if snap.ID != 1 || snap.ClientID != 7 {
		t.Errorf("Expected snapshot identity preserved, got id=%d client=%d", snap.ID, snap.ClientID)
	}
}
