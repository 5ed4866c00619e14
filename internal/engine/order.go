package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	OrderID   uuid.UUID       // Engine assigned identifier
	Pair      TradingPair     // Market the order targets
	OrderType OrderType       //
	Side      Side            // Order side
	Price     decimal.Decimal // Limit price; advisory for market orders
	Quantity  uint64          // Remaining quantity in order-asset units
	Timestamp uint64          // Creation time, milliseconds since epoch
}

// Key projects the order onto its priority-queue key. Quantity is
// deliberately absent so partial fills never disturb queue order.
func (o Order) Key() OrderKey {
	return OrderKey{
		OrderID:   o.OrderID,
		Price:     o.Price,
		Side:      o.Side,
		Timestamp: o.Timestamp,
	}
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %s %d@%s [%s]",
		o.Pair, o.OrderType, o.Side, o.Quantity, o.Price, o.OrderID)
}

// OrderKey is the ordering projection of an Order held by the priority
// queue. Two keys are equal only when all four fields agree, so keys stay
// stable while the book mutates the order's quantity in place.
type OrderKey struct {
	OrderID   uuid.UUID
	Price     decimal.Decimal
	Side      Side
	Timestamp uint64
}

// Trade is an immutable execution record for one party of a crossing.
// Every crossing emits two of these, one per counterparty, both at the
// resting order's price.
type Trade struct {
	OrderID   uuid.UUID
	Side      Side
	Price     decimal.Decimal
	Status    OrderStatus
	Quantity  uint64
	Timestamp uint64
}

func (t Trade) String() string {
	return fmt.Sprintf("%s %s %d@%s [%s]", t.Side, t.Status, t.Quantity, t.Price, t.OrderID)
}

// Event is a lifecycle notification for a single order.
type Event struct {
	OrderID uuid.UUID
	Status  OrderStatus
	Price   string
}

func (e Event) String() string {
	return fmt.Sprintf("%s @%s [%s]", e.Status, e.Price, e.OrderID)
}
