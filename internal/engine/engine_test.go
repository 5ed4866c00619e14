package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

// captureSink records everything published so tests can assert on the
// observable streams.
type captureSink struct {
	trades []Trade
	events []Event
}

func (s *captureSink) ReportTrade(trade Trade) { s.trades = append(s.trades, trade) }
func (s *captureSink) ReportEvent(event Event) { s.events = append(s.events, event) }

func newTestEngine(sink *captureSink, pairs ...TradingPair) *Engine {
	return New(
		Config{Pairs: pairs},
		WithLogger(zerolog.Nop()),
		WithClock(&tickClock{}),
		WithIDSource(&seqIDs{}),
		WithTradeSink(sink),
		WithEventSink(sink),
	)
}

// --- Tests ------------------------------------------------------------------

func TestNew_BuildsOneBookPerPair(t *testing.T) {
	eng := newTestEngine(&captureSink{},
		NewTradingPair(BTC, USDC),
		NewTradingPair(BTC, USDT),
	)
	assert.Len(t, eng.books, 2)
}

func TestNew_SkipsDegeneratePairs(t *testing.T) {
	eng := newTestEngine(&captureSink{},
		NewTradingPair(BTC, USDC),
		NewTradingPair(ETH, ETH),
	)
	assert.Len(t, eng.books, 1)
}

func TestSubmit_PublishesEventsAndTrades(t *testing.T) {
	sink := &captureSink{}
	eng := newTestEngine(sink, testPair)

	_, err := eng.Submit(placeRequest("100.00", 50, Ask, LimitOrder, testPair))
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, Created, sink.events[0].Status)
	assert.Empty(t, sink.trades)

	result, err := eng.Submit(placeRequest("100.00", 20, Bid, LimitOrder, testPair))
	require.NoError(t, err)
	assert.Equal(t, FullMatch, result.Match.State)
	require.Len(t, sink.trades, 2)
	assert.True(t, sink.trades[0].Price.Equal(decimal.RequireFromString("100.00")))

	// Exactly one Canceled event per accepted cancel.
	placed, err := eng.Submit(placeRequest("90.00", 5, Bid, LimitOrder, testPair))
	require.NoError(t, err)
	before := len(sink.events)
	_, err = eng.Submit(CancelOrder{OrderID: placed.OrderID, Pair: testPair})
	require.NoError(t, err)
	require.Len(t, sink.events, before+1)
	assert.Equal(t, Canceled, sink.events[len(sink.events)-1].Status)
}

func TestSubmit_FailuresPublishNothing(t *testing.T) {
	sink := &captureSink{}
	eng := newTestEngine(sink, testPair)

	_, err := eng.Submit(placeRequest("100.00", 0, Bid, LimitOrder, testPair))
	assert.ErrorIs(t, err, ErrOrderRejected)
	assert.Empty(t, sink.events)
	assert.Empty(t, sink.trades)
}

func TestDispatch_DoesNotPanicOnFailure(t *testing.T) {
	eng := newTestEngine(&captureSink{}, testPair)

	// Failure path logs instead of surfacing; no panic either way.
	eng.Dispatch(placeRequest("100.00", 10, Bid, LimitOrder, NewTradingPair(DOT, USDT)))
	eng.Dispatch(placeRequest("100.00", 10, Bid, LimitOrder, testPair))
	eng.LogBook()
}
