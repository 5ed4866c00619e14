package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

var testPair = NewTradingPair(ETH, USDC)

func testOrder(n byte, side Side, price string, orderType OrderType, quantity uint64) Order {
	return Order{
		OrderID:   testID(n),
		Pair:      testPair,
		OrderType: orderType,
		Side:      side,
		Price:     decimal.RequireFromString(price),
		Quantity:  quantity,
		Timestamp: uint64(n),
	}
}

// --- Tests ------------------------------------------------------------------

func TestPlace_RestsLimitOrder(t *testing.T) {
	book := NewLimitOrderBook(testPair)

	event, err := book.Place(testOrder(1, Bid, "200.02", LimitOrder, 8))
	require.NoError(t, err)
	assert.Equal(t, testID(1), event.OrderID)
	assert.Equal(t, Created, event.Status)
	assert.Equal(t, "200.02", event.Price)

	top, ok := book.PeekTopBid()
	require.True(t, ok)
	assert.Equal(t, testID(1), top.OrderID)
	assert.Equal(t, uint64(8), top.Quantity)
}

func TestPlace_RejectsMarketOrder(t *testing.T) {
	book := NewLimitOrderBook(testPair)

	_, err := book.Place(testOrder(1, Bid, "200.02", MarketOrder, 8))
	assert.ErrorIs(t, err, ErrOrderRejected)

	// The failed place leaves the book unchanged.
	_, ok := book.PeekTopBid()
	assert.False(t, ok)
	assert.Zero(t, book.BidCount())
}

func TestPlace_RejectsPairMismatch(t *testing.T) {
	book := NewLimitOrderBook(testPair)

	order := testOrder(1, Bid, "200.02", LimitOrder, 8)
	order.Pair = NewTradingPair(BTC, USDT)
	_, err := book.Place(order)
	assert.ErrorIs(t, err, ErrInvalidOrderForBook)
	assert.Zero(t, book.BidCount())
}

func TestPlace_RejectsDegenerateOrders(t *testing.T) {
	book := NewLimitOrderBook(testPair)

	zeroQty := testOrder(1, Bid, "200.02", LimitOrder, 0)
	_, err := book.Place(zeroQty)
	assert.ErrorIs(t, err, ErrOrderRejected)

	zeroPrice := testOrder(2, Bid, "0", LimitOrder, 8)
	_, err = book.Place(zeroPrice)
	assert.ErrorIs(t, err, ErrOrderRejected)

	ok := testOrder(3, Bid, "200.02", LimitOrder, 8)
	_, err = book.Place(ok)
	require.NoError(t, err)

	duplicate := ok
	_, err = book.Place(duplicate)
	assert.ErrorIs(t, err, ErrOrderRejected)
	assert.Equal(t, uint64(1), book.BidCount())
}

func TestCancel_RoundTrip(t *testing.T) {
	book := NewLimitOrderBook(NewTradingPair(BTC, ETH))

	order := testOrder(1, Bid, "200.02", LimitOrder, 8)
	order.Pair = NewTradingPair(BTC, ETH)
	placed, err := book.Place(order)
	require.NoError(t, err)
	assert.Equal(t, Created, placed.Status)

	canceled, err := book.Cancel(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, Canceled, canceled.Status)
	assert.Equal(t, order.OrderID, canceled.OrderID)

	_, ok := book.PeekTopBid()
	assert.False(t, ok)
	assert.Zero(t, book.BidCount())
	assert.Zero(t, book.BidVolume())
}

func TestCancel_UnknownIDIsANoOp(t *testing.T) {
	book := NewLimitOrderBook(testPair)
	_, err := book.Place(testOrder(1, Ask, "100.00", LimitOrder, 5))
	require.NoError(t, err)

	_, err = book.Cancel(testID(99))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// Book state is untouched.
	top, ok := book.PeekTopAsk()
	require.True(t, ok)
	assert.Equal(t, testID(1), top.OrderID)
	assert.Equal(t, uint64(1), book.AskCount())
}

func TestPopTop_RemovesFromQueueAndIndex(t *testing.T) {
	book := NewLimitOrderBook(testPair)
	require.NoError(t, placeAll(book,
		testOrder(1, Ask, "100.00", LimitOrder, 100),
		testOrder(2, Ask, "40.00", LimitOrder, 50),
	))

	top, ok := book.PopTopAsk()
	require.True(t, ok)
	assert.Equal(t, testID(2), top.OrderID)

	// The popped order is gone from the index too.
	_, err := book.Cancel(testID(2))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	next, ok := book.PeekTopAsk()
	require.True(t, ok)
	assert.Equal(t, testID(1), next.OrderID)
	assert.Equal(t, uint64(1), book.AskCount())
	assert.Equal(t, uint64(100), book.AskVolume())
}

func TestModifyQuantity_LeavesQueuePositionAlone(t *testing.T) {
	book := NewLimitOrderBook(testPair)
	require.NoError(t, placeAll(book,
		testOrder(1, Bid, "100.00", LimitOrder, 100),
		testOrder(2, Bid, "100.00", LimitOrder, 90),
	))

	book.ModifyQuantity(testID(1), 30)

	// Time priority is preserved: order 1 arrived first and stays on top.
	top, ok := book.PeekTopBid()
	require.True(t, ok)
	assert.Equal(t, testID(1), top.OrderID)
	assert.Equal(t, uint64(30), top.Quantity)
	assert.Equal(t, uint64(120), book.BidVolume())

	// Unknown ids are silently ignored.
	book.ModifyQuantity(testID(99), 1)
	assert.Equal(t, uint64(120), book.BidVolume())
}

func TestSpread(t *testing.T) {
	book := NewLimitOrderBook(testPair)

	_, ok := book.Spread()
	assert.False(t, ok, "spread is undefined on an empty book")

	require.NoError(t, placeAll(book, testOrder(1, Bid, "99.50", LimitOrder, 10)))
	_, ok = book.Spread()
	assert.False(t, ok, "spread is undefined on a one-sided book")

	require.NoError(t, placeAll(book, testOrder(2, Ask, "100.25", LimitOrder, 10)))
	spread, ok := book.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(decimal.RequireFromString("0.75")),
		"spread is top ask minus top bid, got %s", spread)
}

func TestBookInvariant_SideMatchesQueue(t *testing.T) {
	book := NewLimitOrderBook(testPair)
	require.NoError(t, placeAll(book,
		testOrder(1, Bid, "99.00", LimitOrder, 10),
		testOrder(2, Ask, "101.00", LimitOrder, 20),
	))

	for _, key := range book.bids.Items() {
		order, ok := book.orders[key.OrderID]
		require.True(t, ok, "queued id must be indexed")
		assert.Equal(t, Bid, order.Side)
		assert.True(t, key.Price.Equal(order.Price))
		assert.Equal(t, key.Timestamp, order.Timestamp)
	}
	for _, key := range book.asks.Items() {
		order, ok := book.orders[key.OrderID]
		require.True(t, ok, "queued id must be indexed")
		assert.Equal(t, Ask, order.Side)
	}
	assert.Equal(t, book.bids.Len()+book.asks.Len(), len(book.orders))
}

func placeAll(book *LimitOrderBook, orders ...Order) error {
	for _, order := range orders {
		if _, err := book.Place(order); err != nil {
			return err
		}
	}
	return nil
}
