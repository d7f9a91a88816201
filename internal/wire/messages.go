// Package wire implements the bespoke binary TCP protocol fronting the
// matching core, generalized from fenrir's internal/net wire format to
// carry the full order field set (stop price, slippage, trailing
// distance/step, iceberg visibility) the matching core understands.
package wire

import (
	"encoding/binary"
	"errors"

	"fenrir/internal/matching"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for its type")
)

// MessageType identifies the wire frame's payload shape.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	ReduceOrder
	MitigateOrder
	ModifyOrder
	ReplaceOrder
)

const (
	typeHeaderLen = 2

	newOrderPayloadLen = 8 + 4 + 1 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 8 // 79
	cancelPayloadLen   = 8
	reducePayloadLen   = 8 + 8
	mitigatePayloadLen = 8 + 8
	modifyPayloadLen   = 8 + 8 + 8
	replacePayloadLen  = 8 + newOrderPayloadLen
)

// Message is implemented by every parsed frame.
type Message interface {
	Type() MessageType
}

// NewOrderMessage carries an admission request exactly as
// matching.Order; its ID is client-assigned and the gateway trusts it
// (it does not mint ids itself, the caller owns the id space).
type NewOrderMessage struct {
	Order matching.Order
}

func (NewOrderMessage) Type() MessageType { return NewOrder }

type CancelOrderMessage struct {
	OrderID uint64
}

func (CancelOrderMessage) Type() MessageType { return CancelOrder }

type ReduceOrderMessage struct {
	OrderID uint64
	By      matching.Quantity
}

func (ReduceOrderMessage) Type() MessageType { return ReduceOrder }

type MitigateOrderMessage struct {
	OrderID     uint64
	NewQuantity matching.Quantity
}

func (MitigateOrderMessage) Type() MessageType { return MitigateOrder }

type ModifyOrderMessage struct {
	OrderID     uint64
	NewPrice    matching.Price
	NewQuantity matching.Quantity
}

func (ModifyOrderMessage) Type() MessageType { return ModifyOrder }

type ReplaceOrderMessage struct {
	OldOrderID  uint64
	Replacement matching.Order
}

func (ReplaceOrderMessage) Type() MessageType { return ReplaceOrder }

// ParseMessage decodes one frame, dispatching on its 2-byte type header.
func ParseMessage(buf []byte) (Message, error) {
	if len(buf) < typeHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(buf[0:2]))
	body := buf[typeHeaderLen:]
	switch typeOf {
	case NewOrder:
		o, err := decodeOrder(body, newOrderPayloadLen)
		if err != nil {
			return nil, err
		}
		return NewOrderMessage{Order: o}, nil
	case CancelOrder:
		if len(body) < cancelPayloadLen {
			return nil, ErrMessageTooShort
		}
		return CancelOrderMessage{OrderID: binary.BigEndian.Uint64(body[0:8])}, nil
	case ReduceOrder:
		if len(body) < reducePayloadLen {
			return nil, ErrMessageTooShort
		}
		return ReduceOrderMessage{
			OrderID: binary.BigEndian.Uint64(body[0:8]),
			By:      matching.Quantity(binary.BigEndian.Uint64(body[8:16])),
		}, nil
	case MitigateOrder:
		if len(body) < mitigatePayloadLen {
			return nil, ErrMessageTooShort
		}
		return MitigateOrderMessage{
			OrderID:     binary.BigEndian.Uint64(body[0:8]),
			NewQuantity: matching.Quantity(binary.BigEndian.Uint64(body[8:16])),
		}, nil
	case ModifyOrder:
		if len(body) < modifyPayloadLen {
			return nil, ErrMessageTooShort
		}
		return ModifyOrderMessage{
			OrderID:     binary.BigEndian.Uint64(body[0:8]),
			NewPrice:    matching.Price(binary.BigEndian.Uint64(body[8:16])),
			NewQuantity: matching.Quantity(binary.BigEndian.Uint64(body[16:24])),
		}, nil
	case ReplaceOrder:
		if len(body) < replacePayloadLen {
			return nil, ErrMessageTooShort
		}
		oldID := binary.BigEndian.Uint64(body[0:8])
		o, err := decodeOrder(body[8:], newOrderPayloadLen)
		if err != nil {
			return nil, err
		}
		return ReplaceOrderMessage{OldOrderID: oldID, Replacement: o}, nil
	case Heartbeat:
		return heartbeatMessage{}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

type heartbeatMessage struct{}

func (heartbeatMessage) Type() MessageType { return Heartbeat }

func decodeOrder(body []byte, want int) (matching.Order, error) {
	if len(body) < want {
		return matching.Order{}, ErrMessageTooShort
	}
	return matching.Order{
		ID:                 binary.BigEndian.Uint64(body[0:8]),
		SymbolID:           binary.BigEndian.Uint32(body[8:12]),
		Side:               matching.Side(body[12]),
		Type:               matching.OrderType(body[13]),
		TimeInForce:        matching.TimeInForce(body[14]),
		Price:              matching.Price(binary.BigEndian.Uint64(body[15:23])),
		StopPrice:          matching.Price(binary.BigEndian.Uint64(body[23:31])),
		Quantity:           matching.Quantity(binary.BigEndian.Uint64(body[31:39])),
		MaxVisibleQuantity: matching.Quantity(binary.BigEndian.Uint64(body[39:47])),
		Slippage:           binary.BigEndian.Uint64(body[47:55]),
		TrailingDistance:   binary.BigEndian.Uint64(body[55:63]),
		TrailingStep:       binary.BigEndian.Uint64(body[63:71]),
		AccountID:          binary.BigEndian.Uint64(body[71:79]),
	}, nil
}

func encodeOrder(o matching.Order) []byte {
	buf := make([]byte, newOrderPayloadLen)
	binary.BigEndian.PutUint64(buf[0:8], o.ID)
	binary.BigEndian.PutUint32(buf[8:12], o.SymbolID)
	buf[12] = byte(o.Side)
	buf[13] = byte(o.Type)
	buf[14] = byte(o.TimeInForce)
	binary.BigEndian.PutUint64(buf[15:23], uint64(o.Price))
	binary.BigEndian.PutUint64(buf[23:31], uint64(o.StopPrice))
	binary.BigEndian.PutUint64(buf[31:39], uint64(o.Quantity))
	binary.BigEndian.PutUint64(buf[39:47], uint64(o.MaxVisibleQuantity))
	binary.BigEndian.PutUint64(buf[47:55], o.Slippage)
	binary.BigEndian.PutUint64(buf[55:63], o.TrailingDistance)
	binary.BigEndian.PutUint64(buf[63:71], o.TrailingStep)
	binary.BigEndian.PutUint64(buf[71:79], o.AccountID)
	return buf
}

// EncodeNewOrder serializes a NewOrderMessage for a test client or the
// cmd/client CLI.
func EncodeNewOrder(o matching.Order) []byte {
	header := make([]byte, typeHeaderLen)
	binary.BigEndian.PutUint16(header, uint16(NewOrder))
	return append(header, encodeOrder(o)...)
}

// EncodeCancelOrder serializes a CancelOrderMessage.
func EncodeCancelOrder(orderID uint64) []byte {
	buf := make([]byte, typeHeaderLen+cancelPayloadLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], orderID)
	return buf
}

// Report is the execution/error acknowledgement sent back to a client,
// generalizing fenrir's net.Report to the wider error taxonomy (§7).
type Report struct {
	Code      matching.ErrorCode
	OrderID   uint64
	Price     matching.Price
	Quantity  matching.Quantity
	ErrStrLen uint32
	Err       string
}

const reportFixedLen = 1 + 8 + 8 + 8 + 4

// Serialize encodes a Report for transmission.
func (r *Report) Serialize() []byte {
	buf := make([]byte, reportFixedLen+len(r.Err))
	buf[0] = byte(r.Code)
	binary.BigEndian.PutUint64(buf[1:9], r.OrderID)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Price))
	binary.BigEndian.PutUint64(buf[17:25], uint64(r.Quantity))
	binary.BigEndian.PutUint32(buf[25:29], uint32(len(r.Err)))
	copy(buf[29:], r.Err)
	return buf
}
