package engine

import "fmt"

// MatchResult is the outcome of one matching pass: the executed trades in
// emission order, any lifecycle events raised (a Created event when a
// limit order rests), the terminal state and the unexecuted residual.
type MatchResult struct {
	Trades   []Trade
	Events   []Event
	State    MatchState
	Residual uint64
}

// Matcher crosses incoming orders against the opposite side of a book in
// price-time priority. It mutates books only through the Book interface
// and stamps trades through the injected clock.
type Matcher struct {
	clock Clock
}

func NewMatcher(clock Clock) *Matcher {
	return &Matcher{clock: clock}
}

// Match crosses an incoming order against the book.
//
// Market orders sweep the opposite side until filled or the side is empty;
// any residual is discarded, never rested. Limit orders sweep while the
// price limit holds and rest their residual on the book. Stop orders are
// reserved and rejected.
func (m *Matcher) Match(order Order, book Book) (MatchResult, error) {
	switch order.OrderType {
	case MarketOrder:
		return m.sweep(order, book, false), nil
	case LimitOrder:
		result := m.sweep(order, book, true)
		if result.Residual > 0 {
			rest := order
			rest.Quantity = result.Residual
			event, err := book.Place(rest)
			if err != nil {
				return result, err
			}
			result.Events = append(result.Events, event)
		}
		return result, nil
	default:
		return MatchResult{}, fmt.Errorf("%w: %s orders", ErrUnsupportedOperation, order.OrderType)
	}
}

// sweep walks the opposite side in priority order until the incoming
// order is exhausted, the side is empty, or (for limit orders) the next
// top fails the price-limit test. Each level consumed emits exactly two
// trades, one per counterparty, both at the resting order's price.
//
// The price limit is re-checked against every successive top rather than
// only at entry. Resting prices are monotone per side so the first
// failure would end the sweep either way, but re-checking keeps the
// matcher correct against any Book implementation.
func (m *Matcher) sweep(order Order, book Book, limit bool) MatchResult {
	trades := make([]Trade, 0, 4)
	remaining := order.Quantity

	for remaining > 0 {
		opposite, ok := m.peekOpposite(order.Side, book)
		if !ok {
			break
		}
		if limit && !crosses(order, opposite) {
			break
		}

		now := m.clock.NowMillis()
		switch {
		case remaining < opposite.Quantity:
			trades = append(trades,
				Trade{OrderID: order.OrderID, Side: order.Side, Price: opposite.Price,
					Status: Filled, Quantity: remaining, Timestamp: now},
				Trade{OrderID: opposite.OrderID, Side: opposite.Side, Price: opposite.Price,
					Status: PartialFill, Quantity: remaining, Timestamp: now},
			)
			book.ModifyQuantity(opposite.OrderID, opposite.Quantity-remaining)
			remaining = 0

		case remaining > opposite.Quantity:
			trades = append(trades,
				Trade{OrderID: order.OrderID, Side: order.Side, Price: opposite.Price,
					Status: PartialFill, Quantity: opposite.Quantity, Timestamp: now},
				Trade{OrderID: opposite.OrderID, Side: opposite.Side, Price: opposite.Price,
					Status: Filled, Quantity: opposite.Quantity, Timestamp: now},
			)
			m.popOpposite(order.Side, book)
			remaining -= opposite.Quantity

		default:
			trades = append(trades,
				Trade{OrderID: order.OrderID, Side: order.Side, Price: opposite.Price,
					Status: Filled, Quantity: remaining, Timestamp: now},
				Trade{OrderID: opposite.OrderID, Side: opposite.Side, Price: opposite.Price,
					Status: Filled, Quantity: opposite.Quantity, Timestamp: now},
			)
			m.popOpposite(order.Side, book)
			remaining = 0
		}
	}

	state := FullMatch
	switch {
	case len(trades) == 0:
		state = NoMatch
	case remaining > 0:
		state = PartialMatch
	}
	return MatchResult{Trades: trades, State: state, Residual: remaining}
}

// crosses is the price-limit test: an incoming bid proceeds iff its price
// meets or beats the top ask, an incoming ask iff its price meets or
// undercuts the top bid.
func crosses(order, opposite Order) bool {
	if order.Side == Bid {
		return order.Price.GreaterThanOrEqual(opposite.Price)
	}
	return order.Price.LessThanOrEqual(opposite.Price)
}

func (m *Matcher) peekOpposite(side Side, book Book) (Order, bool) {
	if side == Bid {
		return book.PeekTopAsk()
	}
	return book.PeekTopBid()
}

func (m *Matcher) popOpposite(side Side, book Book) (Order, bool) {
	if side == Bid {
		return book.PopTopAsk()
	}
	return book.PopTopBid()
}
