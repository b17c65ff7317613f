package fix

// Tag numbers used on the wire. Messages are flat maps keyed by the decimal
// string form of these tags, mirroring FIX 4.2 field numbering.
const (
	TagOrderID        = 11
	TagCurrency       = 15
	TagMsgType        = 35
	TagOrderQty       = 38
	TagExecType       = 39
	TagPrice          = 44
	TagClientID       = 49
	TagTimestamp      = 52
	TagSide           = 54
	TagSymbol         = 55
	TagTargetClientID = 56
	TagNoMDEntries    = 268
	TagMDEntrySide    = 269
	TagMDEntryPx      = 270
	TagMDEntrySize    = 271
	TagTickSize       = 969
)

// MsgType values.
const (
	MsgTypeSecurityDefinition = "d"
	MsgTypeLogon              = "A"
	MsgTypeNewOrderSingle     = "D"
	MsgTypeCancelRequest      = "F"
	MsgTypeModifyRequest      = "G"
	MsgTypeExecutionReport    = "8"
	MsgTypeBookSnapshot       = "W"
)

// Side values (tag 54).
const (
	SideBuy  = 1
	SideSell = 2
)

// ExecType values (tag 39).
const (
	ExecTypeNew         = 0
	ExecTypePartialFill = 1
	ExecTypeFill        = 2
	ExecTypeCancelled   = 4
	ExecTypeModified    = 5
)

// SentinelClientID marks an inbound logon from a not-yet-identified remote
// client; the session assigns the real id in its reply.
const SentinelClientID int64 = -1
