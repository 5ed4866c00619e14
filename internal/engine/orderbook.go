package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book is the order book surface the matcher and router depend on. Kept
// narrow so alternative book layouts (price-level buckets, FIFO-only) can
// slot in behind it.
type Book interface {
	Place(order Order) (Event, error)
	Cancel(orderID uuid.UUID) (Event, error)
	PeekTopBid() (Order, bool)
	PeekTopAsk() (Order, bool)
	PopTopBid() (Order, bool)
	PopTopAsk() (Order, bool)
	ModifyQuantity(orderID uuid.UUID, quantity uint64)
	Spread() (decimal.Decimal, bool)
	Pair() TradingPair
}

// LimitOrderBook is the authoritative store of resting orders for a single
// trading pair: one price-time queue per side plus an id index holding the
// live orders. Every id in a queue is in the index with identical price,
// side and timestamp; market orders never rest.
type LimitOrderBook struct {
	pair TradingPair

	bids   *OrderQueue
	asks   *OrderQueue
	orders map[uuid.UUID]*Order

	// Book keeping
	nBidOrders  uint64 // Number of resting bids.
	nAskOrders  uint64 // Number of resting asks.
	bidQuantity uint64 // Bid-side liquidity of the book.
	askQuantity uint64 // Ask-side liquidity of the book.
}

func NewLimitOrderBook(pair TradingPair) *LimitOrderBook {
	return &LimitOrderBook{
		pair:   pair,
		bids:   NewOrderQueue(),
		asks:   NewOrderQueue(),
		orders: make(map[uuid.UUID]*Order, 16),
	}
}

func (book *LimitOrderBook) Pair() TradingPair {
	return book.pair
}

// Place rests a limit order on the book. All failure paths leave the book
// untouched.
func (book *LimitOrderBook) Place(order Order) (Event, error) {
	if order.OrderType == MarketOrder {
		return Event{}, fmt.Errorf("%w: market orders cannot rest on the book", ErrOrderRejected)
	}
	if order.Pair != book.pair {
		return Event{}, fmt.Errorf("%w: order pair %s, book pair %s",
			ErrInvalidOrderForBook, order.Pair, book.pair)
	}
	if order.Quantity == 0 {
		return Event{}, fmt.Errorf("%w: quantity must be greater than zero", ErrOrderRejected)
	}
	if !order.Price.IsPositive() {
		return Event{}, fmt.Errorf("%w: limit price must be greater than zero", ErrOrderRejected)
	}
	if _, ok := book.orders[order.OrderID]; ok {
		return Event{}, fmt.Errorf("%w: duplicate order id %s", ErrOrderRejected, order.OrderID)
	}

	book.orders[order.OrderID] = &order
	book.sideQueue(order.Side).Push(order.Key())

	switch order.Side {
	case Bid:
		book.nBidOrders++
		book.bidQuantity += order.Quantity
	case Ask:
		book.nAskOrders++
		book.askQuantity += order.Quantity
	}

	return Event{OrderID: order.OrderID, Status: Created, Price: order.Price.String()}, nil
}

// Cancel removes a resting order from the queue and the index.
func (book *LimitOrderBook) Cancel(orderID uuid.UUID) (Event, error) {
	order, ok := book.orders[orderID]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	book.sideQueue(order.Side).Remove(order.Key())
	delete(book.orders, orderID)
	book.debit(order.Side, order.Quantity)

	return Event{OrderID: orderID, Status: Canceled, Price: order.Price.String()}, nil
}

// PeekTopBid returns the highest-priority resting bid without removing it.
func (book *LimitOrderBook) PeekTopBid() (Order, bool) {
	return book.peek(book.bids)
}

// PeekTopAsk returns the highest-priority resting ask without removing it.
func (book *LimitOrderBook) PeekTopAsk() (Order, bool) {
	return book.peek(book.asks)
}

// PopTopBid removes and returns the top bid from both queue and index.
func (book *LimitOrderBook) PopTopBid() (Order, bool) {
	return book.pop(book.bids)
}

// PopTopAsk removes and returns the top ask from both queue and index.
func (book *LimitOrderBook) PopTopAsk() (Order, bool) {
	return book.pop(book.asks)
}

// ModifyQuantity reduces a resting order's quantity in place. The queue is
// untouched: price, side and timestamp are the ordering keys and none of
// them change. Unknown ids are a no-op, as the matcher only modifies
// orders it just observed at the top of the book.
func (book *LimitOrderBook) ModifyQuantity(orderID uuid.UUID, quantity uint64) {
	order, ok := book.orders[orderID]
	if !ok {
		return
	}
	delta := order.Quantity - quantity
	switch order.Side {
	case Bid:
		book.bidQuantity -= delta
	case Ask:
		book.askQuantity -= delta
	}
	order.Quantity = quantity
}

// Spread is top ask minus top bid, defined only when both sides are
// populated. Non-negative whenever the book is not crossed.
func (book *LimitOrderBook) Spread() (decimal.Decimal, bool) {
	bid, bidOk := book.PeekTopBid()
	ask, askOk := book.PeekTopAsk()
	if !bidOk || !askOk {
		return decimal.Decimal{}, false
	}
	return ask.Price.Sub(bid.Price), true
}

// BidCount is the number of resting bids.
func (book *LimitOrderBook) BidCount() uint64 { return book.nBidOrders }

// AskCount is the number of resting asks.
func (book *LimitOrderBook) AskCount() uint64 { return book.nAskOrders }

// BidVolume is the total resting bid quantity.
func (book *LimitOrderBook) BidVolume() uint64 { return book.bidQuantity }

// AskVolume is the total resting ask quantity.
func (book *LimitOrderBook) AskVolume() uint64 { return book.askQuantity }

func (book *LimitOrderBook) sideQueue(side Side) *OrderQueue {
	if side == Bid {
		return book.bids
	}
	return book.asks
}

func (book *LimitOrderBook) peek(queue *OrderQueue) (Order, bool) {
	key, ok := queue.Peek()
	if !ok {
		return Order{}, false
	}
	order, ok := book.orders[key.OrderID]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

func (book *LimitOrderBook) pop(queue *OrderQueue) (Order, bool) {
	key, ok := queue.Pop()
	if !ok {
		return Order{}, false
	}
	order, ok := book.orders[key.OrderID]
	if !ok {
		return Order{}, false
	}
	delete(book.orders, key.OrderID)
	book.debit(order.Side, order.Quantity)
	return *order, true
}

func (book *LimitOrderBook) debit(side Side, quantity uint64) {
	switch side {
	case Bid:
		book.nBidOrders--
		book.bidQuantity -= quantity
	case Ask:
		book.nAskOrders--
		book.askQuantity -= quantity
	}
}
