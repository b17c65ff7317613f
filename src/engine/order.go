package engine

import (
	"sync/atomic"
	"time"

	"market-sim/src/event"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	StatusPending         OrderStatus = "PENDING"
	StatusNew             OrderStatus = "NEW"
	StatusModified        OrderStatus = "MODIFIED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFullyFilled     OrderStatus = "FULLY_FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible. Terminal
// orders are struck from the book and its id index.
func (s OrderStatus) Terminal() bool {
	return s == StatusFullyFilled || s == StatusCancelled
}

// edge case: price stored as int64 in cents to avoid floating-point precision errors
//
// Order is the mutable working record. Once posted to the book it is owned
// exclusively by the book's request loops; everyone else sees value
// snapshots via acks. Qty is the remaining working quantity, so
// Qty + FilledQty stays equal to the originally placed size.
type Order struct {
	ID        int64
	ClientID  int64
	Side      OrderSide
	Px        int64 // cents
	Qty       int64
	FilledQty int64
	Status    OrderStatus
	Manual    bool // placed by a remote operator; acks become wire traffic
	Timestamp int64

	// Acks receives one OrderAck per status transition; nil when the owner
	// does not listen.
	Acks *event.Signal[OrderAck]
}

func NewOrder(id, clientID int64, side OrderSide, px, qty int64, manual bool, acks *event.Signal[OrderAck]) *Order {
	return &Order{
		ID:        id,
		ClientID:  clientID,
		Side:      side,
		Px:        px,
		Qty:       qty,
		Status:    StatusPending,
		Manual:    manual,
		Timestamp: time.Now().UnixMilli(),
		Acks:      acks,
	}
}

// Snapshot copies the order's current values. The copy shares nothing
// mutable with the book-owned record, so ack consumers can read it freely.
func (o *Order) Snapshot() Order {
	cp := *o
	return cp
}

// OrderAck notifies the order's owner of one status transition.
type OrderAck struct {
	Order  Order // value snapshot taken at transition time
	Status OrderStatus
}

// Fill is one leg of a match; every crossing event produces two, one per
// side, both priced at the resting order's limit.
type Fill struct {
	ExecID         string
	ExecTime       time.Time
	OrderID        int64
	CounterOrderID int64
	ClientID       int64
	Side           OrderSide
	Qty            int64
	Px             int64
	Full           bool
}

// PriceLevel holds the resting orders at one price, FIFO for time priority.
type PriceLevel struct {
	Px     int64
	Orders []*Order // fifo ordering for time priority
}

// IDSource issues session-monotonic order ids. Manual orders get negative
// ids so downstream consumers can tell operator flow from automated flow;
// the magnitude stays monotonic either way.
type IDSource struct {
	next atomic.Int64
}

func (s *IDSource) Next(manual bool) int64 {
	id := s.next.Add(1)
	if manual {
		return -id
	}
	return id
}
