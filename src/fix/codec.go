package fix

import (
	"fmt"
	"strconv"
	"time"
)

func key(tag int) string {
	return strconv.Itoa(tag)
}

// Encode flattens a typed message into a tag-keyed map suitable for JSON
// transport.
func Encode(msg Message) map[string]any {
	switch m := msg.(type) {
	case SecurityDefinition:
		return map[string]any{
			key(TagMsgType):  MsgTypeSecurityDefinition,
			key(TagSymbol):   m.Symbol,
			key(TagTickSize): m.TickSize,
			key(TagPrice):    m.OpeningPx,
			key(TagCurrency): m.Currency,
		}
	case Logon:
		return map[string]any{
			key(TagMsgType):  MsgTypeLogon,
			key(TagClientID): m.ClientID,
		}
	case LogonAck:
		return map[string]any{
			key(TagMsgType):        MsgTypeLogon,
			key(TagSymbol):         m.Symbol,
			key(TagTargetClientID): m.ClientID,
			key(TagPrice):          m.Px,
		}
	case NewOrderSingle:
		return map[string]any{
			key(TagMsgType):  MsgTypeNewOrderSingle,
			key(TagClientID): m.ClientID,
			key(TagPrice):    m.Px,
			key(TagOrderQty): m.OrderQty,
		}
	case OrderCancelRequest:
		return map[string]any{
			key(TagMsgType):  MsgTypeCancelRequest,
			key(TagClientID): m.ClientID,
			key(TagOrderID):  m.OrderID,
		}
	case OrderModifyRequest:
		out := map[string]any{
			key(TagMsgType):  MsgTypeModifyRequest,
			key(TagClientID): m.ClientID,
			key(TagOrderID):  m.OrderID,
			key(TagPrice):    m.Px,
		}
		if m.Qty != nil {
			out[key(TagOrderQty)] = *m.Qty
		}
		return out
	case ExecutionReport:
		return map[string]any{
			key(TagMsgType):        MsgTypeExecutionReport,
			key(TagTargetClientID): m.TargetClientID,
			key(TagOrderID):        m.OrderID,
			key(TagSide):           m.Side,
			key(TagExecType):       m.ExecType,
			key(TagPrice):          m.Px,
			key(TagOrderQty):       m.Qty,
			key(TagTimestamp):      m.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	case BookSnapshot:
		entries := make([]map[string]any, 0, len(m.Entries))
		for _, e := range m.Entries {
			entries = append(entries, map[string]any{
				key(TagMDEntrySide): e.Side,
				key(TagMDEntryPx):   e.Px,
				key(TagMDEntrySize): e.Qty,
			})
		}
		return map[string]any{
			key(TagMsgType):     MsgTypeBookSnapshot,
			key(TagSymbol):      m.Symbol,
			key(TagTimestamp):   m.Timestamp.UTC().Format(time.RFC3339Nano),
			key(TagNoMDEntries): entries,
		}
	case Raw:
		return m.Fields
	}
	return nil
}

// Decode parses a tag map into its typed variant. Unrecognized MsgTypes
// come back as Raw; the router forwards those to its data handler.
func Decode(fields map[string]any) (Message, error) {
	msgType, _ := fields[key(TagMsgType)].(string)

	switch msgType {
	case MsgTypeSecurityDefinition:
		return SecurityDefinition{
			Symbol:    asString(fields[key(TagSymbol)]),
			TickSize:  asInt64(fields[key(TagTickSize)]),
			OpeningPx: asInt64(fields[key(TagPrice)]),
			Currency:  asString(fields[key(TagCurrency)]),
		}, nil
	case MsgTypeLogon:
		return Logon{ClientID: asInt64(fields[key(TagClientID)])}, nil
	case MsgTypeNewOrderSingle:
		qty := asInt64(fields[key(TagOrderQty)])
		if qty == 0 {
			return nil, fmt.Errorf("fix: new order with zero quantity")
		}
		return NewOrderSingle{
			ClientID: asInt64(fields[key(TagClientID)]),
			Px:       asInt64(fields[key(TagPrice)]),
			OrderQty: qty,
		}, nil
	case MsgTypeCancelRequest:
		return OrderCancelRequest{
			ClientID: asInt64(fields[key(TagClientID)]),
			OrderID:  asInt64(fields[key(TagOrderID)]),
		}, nil
	case MsgTypeModifyRequest:
		m := OrderModifyRequest{
			ClientID: asInt64(fields[key(TagClientID)]),
			OrderID:  asInt64(fields[key(TagOrderID)]),
			Px:       asInt64(fields[key(TagPrice)]),
		}
		if raw, ok := fields[key(TagOrderQty)]; ok && raw != nil {
			qty := asInt64(raw)
			m.Qty = &qty
		}
		return m, nil
	default:
		return Raw{Fields: fields}, nil
	}
}

// asInt64 tolerates the numeric types JSON decoding produces.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
