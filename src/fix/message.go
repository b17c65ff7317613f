package fix

import "time"

// Message is one strongly-typed variant per MsgType. Transport code converts
// to and from tag maps with Encode/Decode; core code only ever sees these
// structs.
type Message interface {
	MsgType() string
}

// SecurityDefinition (35=d) announces the traded instrument and opens the
// session. Echoed back to the sender once the venue is up.
type SecurityDefinition struct {
	Symbol    string
	TickSize  int64 // cents
	OpeningPx int64 // cents
	Currency  string
}

func (SecurityDefinition) MsgType() string { return MsgTypeSecurityDefinition }

// Logon (35=A, inbound) requests a manual trading session. ClientID is the
// sentinel until the venue assigns one.
type Logon struct {
	ClientID int64
}

func (Logon) MsgType() string { return MsgTypeLogon }

// LogonAck (35=A, outbound) carries the assigned client id and the current
// reference price.
type LogonAck struct {
	Symbol   string
	ClientID int64
	Px       int64
}

func (LogonAck) MsgType() string { return MsgTypeLogon }

// NewOrderSingle (35=D). OrderQty is signed: positive buys, negative sells.
type NewOrderSingle struct {
	ClientID int64
	Px       int64
	OrderQty int64
}

func (NewOrderSingle) MsgType() string { return MsgTypeNewOrderSingle }

// OrderCancelRequest (35=F).
type OrderCancelRequest struct {
	ClientID int64
	OrderID  int64
}

func (OrderCancelRequest) MsgType() string { return MsgTypeCancelRequest }

// OrderModifyRequest (35=G). A nil Qty keeps the order's working quantity.
type OrderModifyRequest struct {
	ClientID int64
	OrderID  int64
	Px       int64
	Qty      *int64
}

func (OrderModifyRequest) MsgType() string { return MsgTypeModifyRequest }

// ExecutionReport (35=8), synthesized for manually placed orders. For
// partial fills Qty is the incremental fill size, for full fills the total
// filled size, otherwise the working quantity.
type ExecutionReport struct {
	TargetClientID int64
	OrderID        int64
	Side           int
	ExecType       int
	Px             int64
	Qty            int64
	Timestamp      time.Time
}

func (ExecutionReport) MsgType() string { return MsgTypeExecutionReport }

// MDEntry is one aggregated price level inside a BookSnapshot.
type MDEntry struct {
	Side int // 0 bid, 1 ask (tag 269)
	Px   int64
	Qty  int64
}

// BookSnapshot (35=W): bids descending then asks ascending, quantity
// aggregated per price.
type BookSnapshot struct {
	Symbol    string
	Timestamp time.Time
	Entries   []MDEntry
}

func (BookSnapshot) MsgType() string { return MsgTypeBookSnapshot }

// Raw wraps any tag map whose MsgType the core does not route; it is handed
// to the session's data callback unmodified.
type Raw struct {
	Fields map[string]any
}

func (r Raw) MsgType() string {
	if t, ok := r.Fields[key(TagMsgType)].(string); ok {
		return t
	}
	return ""
}
