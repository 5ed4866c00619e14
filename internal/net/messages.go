package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gungnir/internal/engine"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidOrderID     = errors.New("invalid order id")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	BookStatus
)

type ReportMessageType int

const (
	ExecutionReport ReportMessageType = iota
	OrderEventReport
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants. All integers are big-endian; asset tags are
// fixed-width and zero padded; prices travel as length-prefixed decimal
// strings because binary floats cannot carry exact decimals.
const (
	assetTagLen                 = 8
	BaseMessageHeaderLen        = 2
	NewOrderMessageHeaderLen    = 1 + 1 + assetTagLen + assetTagLen + 8 + 1
	CancelOrderMessageHeaderLen = assetTagLen + assetTagLen + 16
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, fmt.Errorf("%w: no header", ErrMessageTooShort)
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat, BookStatus:
		return BaseMessage{TypeOf: typeOf}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type NewOrderMessage struct {
	BaseMessage
	OrderType  engine.OrderType // 1 byte
	Side       engine.Side      // 1 byte
	OrderAsset engine.Asset     // 8 bytes, padded
	PriceAsset engine.Asset     // 8 bytes, padded
	Quantity   uint64           // 8 bytes
	PriceLen   uint8            // 1 byte
	Price      string           // n bytes, decimal rendering
}

// PlaceRequest converts the wire message into the engine's request form.
func (m NewOrderMessage) PlaceRequest() (engine.PlaceOrder, error) {
	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return engine.PlaceOrder{}, fmt.Errorf("%w: %q", ErrInvalidPrice, m.Price)
	}
	return engine.PlaceOrder{
		Price:     price,
		Quantity:  m.Quantity,
		Side:      m.Side,
		OrderType: m.OrderType,
		Pair:      engine.NewTradingPair(m.OrderAsset, m.PriceAsset),
	}, nil
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.OrderType = engine.OrderType(msg[0])
	m.Side = engine.Side(msg[1])
	m.OrderAsset = unpackAssetTag(msg[2 : 2+assetTagLen])
	m.PriceAsset = unpackAssetTag(msg[10 : 10+assetTagLen])
	m.Quantity = binary.BigEndian.Uint64(msg[18:26])
	m.PriceLen = msg[26]

	if len(msg) < NewOrderMessageHeaderLen+int(m.PriceLen) {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Price = string(msg[27 : 27+m.PriceLen])

	return m, nil
}

// Serialize renders the message for the wire, header included.
func (m NewOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageHeaderLen+len(m.Price))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	buf[2] = byte(m.OrderType)
	buf[3] = byte(m.Side)
	packAssetTag(buf[4:12], m.OrderAsset)
	packAssetTag(buf[12:20], m.PriceAsset)
	binary.BigEndian.PutUint64(buf[20:28], m.Quantity)
	buf[28] = uint8(len(m.Price))
	copy(buf[29:], m.Price)
	return buf
}

type CancelOrderMessage struct {
	BaseMessage
	OrderAsset engine.Asset // 8 bytes, padded
	PriceAsset engine.Asset // 8 bytes, padded
	OrderID    uuid.UUID    // 16 bytes
}

// CancelRequest converts the wire message into the engine's request form.
func (m CancelOrderMessage) CancelRequest() engine.CancelOrder {
	return engine.CancelOrder{
		OrderID: m.OrderID,
		Pair:    engine.NewTradingPair(m.OrderAsset, m.PriceAsset),
	}
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}

	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	m.OrderAsset = unpackAssetTag(msg[0:assetTagLen])
	m.PriceAsset = unpackAssetTag(msg[8 : 8+assetTagLen])

	id, err := uuid.FromBytes(msg[16:32])
	if err != nil {
		return CancelOrderMessage{}, fmt.Errorf("%w: %v", ErrInvalidOrderID, err)
	}
	m.OrderID = id

	return m, nil
}

// Serialize renders the message for the wire, header included.
func (m CancelOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+CancelOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	packAssetTag(buf[2:10], m.OrderAsset)
	packAssetTag(buf[10:18], m.PriceAsset)
	copy(buf[18:34], m.OrderID[:])
	return buf
}

// BookStatusMessage builds the header-only frame asking the server to log
// book depth.
func BookStatusMessage() []byte {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf, uint16(BookStatus))
	return buf
}

// Report is the server-to-client record for executions, order lifecycle
// events and errors.
type Report struct {
	MessageType ReportMessageType  // 1 byte
	Side        engine.Side        // 1 byte
	Status      engine.OrderStatus // 1 byte
	Timestamp   uint64             // 8 bytes
	Quantity    uint64             // 8 bytes
	OrderID     uuid.UUID          // 16 bytes
	PriceLen    uint8              // 1 byte
	ErrLen      uint16             // 2 bytes
	Price       string             // n bytes
	Err         string             // n bytes
}

const reportFixedHeaderLen = 1 + 1 + 1 + 8 + 8 + 16 + 1 + 2

// Serialize converts the report to be sent on the wire.
func (r Report) Serialize() []byte {
	buf := make([]byte, reportFixedHeaderLen+len(r.Price)+len(r.Err))
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	buf[2] = byte(r.Status)
	binary.BigEndian.PutUint64(buf[3:11], r.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], r.Quantity)
	copy(buf[19:35], r.OrderID[:])
	buf[35] = uint8(len(r.Price))
	binary.BigEndian.PutUint16(buf[36:38], uint16(len(r.Err)))

	offset := reportFixedHeaderLen
	copy(buf[offset:], r.Price)
	offset += len(r.Price)
	copy(buf[offset:], r.Err)
	return buf
}

// ParseReport decodes a report frame. Used by clients and tests.
func ParseReport(msg []byte) (Report, error) {
	if len(msg) < reportFixedHeaderLen {
		return Report{}, ErrMessageTooShort
	}

	r := Report{
		MessageType: ReportMessageType(msg[0]),
		Side:        engine.Side(msg[1]),
		Status:      engine.OrderStatus(msg[2]),
		Timestamp:   binary.BigEndian.Uint64(msg[3:11]),
		Quantity:    binary.BigEndian.Uint64(msg[11:19]),
		PriceLen:    msg[35],
		ErrLen:      binary.BigEndian.Uint16(msg[36:38]),
	}
	copy(r.OrderID[:], msg[19:35])

	if len(msg) < reportFixedHeaderLen+int(r.PriceLen)+int(r.ErrLen) {
		return Report{}, ErrMessageTooShort
	}
	offset := reportFixedHeaderLen
	r.Price = string(msg[offset : offset+int(r.PriceLen)])
	offset += int(r.PriceLen)
	r.Err = string(msg[offset : offset+int(r.ErrLen)])

	return r, nil
}

func tradeReport(trade engine.Trade) Report {
	return Report{
		MessageType: ExecutionReport,
		Side:        trade.Side,
		Status:      trade.Status,
		Timestamp:   trade.Timestamp,
		Quantity:    trade.Quantity,
		OrderID:     trade.OrderID,
		Price:       trade.Price.String(),
	}
}

func eventReport(event engine.Event, timestamp uint64) Report {
	return Report{
		MessageType: OrderEventReport,
		Status:      event.Status,
		Timestamp:   timestamp,
		OrderID:     event.OrderID,
		Price:       event.Price,
	}
}

func errorReport(err error, timestamp uint64) Report {
	return Report{
		MessageType: ErrorReport,
		Timestamp:   timestamp,
		Err:         err.Error(),
	}
}

func packAssetTag(dst []byte, asset engine.Asset) {
	copy(dst, asset)
}

func unpackAssetTag(src []byte) engine.Asset {
	end := len(src)
	for end > 0 && src[end-1] == 0 {
		end--
	}
	return engine.Asset(src[:end])
}
