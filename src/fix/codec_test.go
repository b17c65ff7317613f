package fix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderSingleRoundTrip(t *testing.T) {
	msg := NewOrderSingle{ClientID: 3, Px: 10050, OrderQty: -7}

	fields := Encode(msg)
	assert.Equal(t, MsgTypeNewOrderSingle, fields[key(TagMsgType)])
	assert.Equal(t, int64(-7), fields[key(TagOrderQty)], "sell quantity keeps its sign on the wire")

	decoded, err := Decode(fields)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestDecodeToleratesJSONNumbers(t *testing.T) {
	// JSON unmarshalling into map[string]any yields float64 for numbers.
	decoded, err := Decode(map[string]any{
		"35": MsgTypeNewOrderSingle,
		"49": float64(2),
		"44": float64(9900),
		"38": float64(5),
	})
	require.NoError(t, err)
	assert.Equal(t, NewOrderSingle{ClientID: 2, Px: 9900, OrderQty: 5}, decoded)
}

func TestDecodeRejectsZeroQuantityOrder(t *testing.T) {
	_, err := Decode(map[string]any{
		"35": MsgTypeNewOrderSingle,
		"49": int64(2),
		"44": int64(9900),
	})
	assert.Error(t, err)
}

func TestModifyRequestQtyOptional(t *testing.T) {
	withQty := OrderModifyRequest{ClientID: 1, OrderID: -4, Px: 9800}
	qty := int64(12)
	withQty.Qty = &qty

	decoded, err := Decode(Encode(withQty))
	require.NoError(t, err)
	require.NotNil(t, decoded.(OrderModifyRequest).Qty)
	assert.Equal(t, int64(12), *decoded.(OrderModifyRequest).Qty)

	withoutQty := OrderModifyRequest{ClientID: 1, OrderID: -4, Px: 9800}
	fields := Encode(withoutQty)
	_, present := fields[key(TagOrderQty)]
	assert.False(t, present, "omitted quantity stays off the wire")

	decoded, err = Decode(fields)
	require.NoError(t, err)
	assert.Nil(t, decoded.(OrderModifyRequest).Qty)
}

func TestSecurityDefinitionRoundTrip(t *testing.T) {
	msg := SecurityDefinition{Symbol: "SIM", TickSize: 1, OpeningPx: 10000, Currency: "USD"}

	decoded, err := Decode(Encode(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestExecutionReportEncoding(t *testing.T) {
	ts := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
	fields := Encode(ExecutionReport{
		TargetClientID: 2,
		OrderID:        -6,
		Side:           SideSell,
		ExecType:       ExecTypePartialFill,
		Px:             10025,
		Qty:            3,
		Timestamp:      ts,
	})

	assert.Equal(t, MsgTypeExecutionReport, fields[key(TagMsgType)])
	assert.Equal(t, int64(-6), fields[key(TagOrderID)])
	assert.Equal(t, SideSell, fields[key(TagSide)])
	assert.Equal(t, ExecTypePartialFill, fields[key(TagExecType)])
	assert.Equal(t, int64(3), fields[key(TagOrderQty)])
	assert.Equal(t, "2026-03-09T14:30:00Z", fields[key(TagTimestamp)])
}

func TestBookSnapshotEncoding(t *testing.T) {
	fields := Encode(BookSnapshot{
		Symbol:    "SIM",
		Timestamp: time.Now(),
		Entries: []MDEntry{
			{Side: 0, Px: 9999, Qty: 10},
			{Side: 1, Px: 10003, Qty: 11},
		},
	})

	assert.Equal(t, MsgTypeBookSnapshot, fields[key(TagMsgType)])
	entries, ok := fields[key(TagNoMDEntries)].([]map[string]any)
	require.True(t, ok)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(9999), entries[0][key(TagMDEntryPx)])
	assert.Equal(t, 1, entries[1][key(TagMDEntrySide)])
	assert.Equal(t, int64(11), entries[1][key(TagMDEntrySize)])
}

func TestDecodeUnknownMsgTypeIsRaw(t *testing.T) {
	fields := map[string]any{"35": "V", "262": "req-1"}

	decoded, err := Decode(fields)
	require.NoError(t, err)
	raw, ok := decoded.(Raw)
	require.True(t, ok)
	assert.Equal(t, "V", raw.MsgType())
	assert.Equal(t, fields, raw.Fields)
}

func TestLogonAckUsesTargetClientID(t *testing.T) {
	fields := Encode(LogonAck{Symbol: "SIM", ClientID: 4, Px: 10000})

	assert.Equal(t, MsgTypeLogon, fields[key(TagMsgType)])
	assert.Equal(t, int64(4), fields[key(TagTargetClientID)])
	_, present := fields[key(TagClientID)]
	assert.False(t, present)
}
