package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request is a routed instruction: place an order or cancel one.
type Request interface {
	validate() error
}

// PlaceOrder asks the engine to create and match a new order.
type PlaceOrder struct {
	Price     decimal.Decimal
	Quantity  uint64
	Side      Side
	OrderType OrderType
	Pair      TradingPair
}

func (p PlaceOrder) validate() error {
	if p.Quantity == 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrOrderRejected)
	}
	if p.OrderType == StopOrder {
		return fmt.Errorf("%w: %s orders", ErrUnsupportedOperation, p.OrderType)
	}
	if p.OrderType == LimitOrder && !p.Price.IsPositive() {
		return fmt.Errorf("%w: limit price must be greater than zero", ErrOrderRejected)
	}
	return p.Pair.Validate()
}

// CancelOrder asks the engine to remove a resting order.
type CancelOrder struct {
	OrderID uuid.UUID
	Pair    TradingPair
}

func (c CancelOrder) validate() error {
	return c.Pair.Validate()
}

// HandleResult reports what a request did: the order id it concerned (the
// freshly minted id for a place, the caller's id for a cancel), the match
// outcome and any lifecycle events.
type HandleResult struct {
	OrderID uuid.UUID
	Match   MatchResult
	Events  []Event
}

// Router is the front door for requests. It owns the map from trading
// pair to book and serialises all book access: while a match is in
// progress no other request can mutate any book.
//
// The exclusion is acquired without blocking; contention surfaces as
// ErrEngineOverCapacity rather than queueing the caller. There are no
// suspension points inside a match, so every Handle call that acquires
// the lock runs to completion.
type Router struct {
	mu      sync.Mutex
	books   map[TradingPair]Book
	matcher *Matcher
	ids     IDSource
	clock   Clock
}

func NewRouter(books map[TradingPair]Book, matcher *Matcher, ids IDSource, clock Clock) *Router {
	return &Router{
		books:   books,
		matcher: matcher,
		ids:     ids,
		clock:   clock,
	}
}

// Handle validates a request, resolves the target book and either matches
// a new order or cancels a resting one. Validation failures abort before
// any mutation; book failures, including OrderNotFound on cancel, are
// propagated to the caller.
func (r *Router) Handle(request Request) (HandleResult, error) {
	if err := request.validate(); err != nil {
		return HandleResult{}, err
	}

	if !r.mu.TryLock() {
		return HandleResult{}, ErrEngineOverCapacity
	}
	defer r.mu.Unlock()

	switch request := request.(type) {
	case PlaceOrder:
		book, ok := r.books[request.Pair]
		if !ok {
			return HandleResult{}, fmt.Errorf("%w: %s", ErrBookNotFound, request.Pair)
		}
		order := Order{
			OrderID:   r.ids.NewID(),
			Pair:      request.Pair,
			OrderType: request.OrderType,
			Side:      request.Side,
			Price:     request.Price,
			Quantity:  request.Quantity,
			Timestamp: r.clock.NowMillis(),
		}
		match, err := r.matcher.Match(order, book)
		if err != nil {
			return HandleResult{}, err
		}
		return HandleResult{OrderID: order.OrderID, Match: match, Events: match.Events}, nil

	case CancelOrder:
		book, ok := r.books[request.Pair]
		if !ok {
			return HandleResult{}, fmt.Errorf("%w: %s", ErrBookNotFound, request.Pair)
		}
		event, err := book.Cancel(request.OrderID)
		if err != nil {
			return HandleResult{}, err
		}
		return HandleResult{OrderID: request.OrderID, Events: []Event{event}}, nil

	default:
		return HandleResult{}, fmt.Errorf("%w: unknown request type %T", ErrUnsupportedOperation, request)
	}
}
