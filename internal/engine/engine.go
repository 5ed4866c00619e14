package engine

import (
	"os"

	"github.com/rs/zerolog"
)

// Config enumerates the markets the engine hosts. One empty book is
// created per pair at construction.
type Config struct {
	Pairs []TradingPair
	// WorkerCount is reserved for future thread-pool sizing. Ignored.
	WorkerCount int
}

// TradeSink receives every execution record the matcher emits.
type TradeSink interface {
	ReportTrade(trade Trade)
}

// EventSink receives every order lifecycle event.
type EventSink interface {
	ReportEvent(event Event)
}

// Engine is the facade over the router and its books. It owns id
// generation, the clock and logging; the core underneath never touches
// any of them directly.
type Engine struct {
	router *Router
	log    zerolog.Logger
	clock  Clock
	ids    IDSource
	trades TradeSink
	events EventSink
	books  map[TradingPair]Book
}

type Option func(*Engine)

// WithClock replaces the wall clock, typically with a fixed source in
// tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDSource replaces the random id source.
func WithIDSource(ids IDSource) Option {
	return func(e *Engine) { e.ids = ids }
}

// WithLogger replaces the default stderr logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithTradeSink directs execution records somewhere other than the log.
func WithTradeSink(sink TradeSink) Option {
	return func(e *Engine) { e.trades = sink }
}

// WithEventSink directs lifecycle events somewhere other than the log.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.events = sink }
}

func New(config Config, opts ...Option) *Engine {
	eng := &Engine{
		log:   zerolog.New(os.Stderr).With().Timestamp().Logger(),
		clock: SystemClock{},
		ids:   RandomIDs{},
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.trades == nil {
		eng.trades = logSink{eng.log}
	}
	if eng.events == nil {
		eng.events = logSink{eng.log}
	}

	eng.books = make(map[TradingPair]Book, len(config.Pairs))
	for _, pair := range config.Pairs {
		if err := pair.Validate(); err != nil {
			eng.log.Error().Err(err).Stringer("pair", pair).Msg("skipping configured pair")
			continue
		}
		eng.books[pair] = NewLimitOrderBook(pair)
	}
	eng.router = NewRouter(eng.books, NewMatcher(eng.clock), eng.ids, eng.clock)
	return eng
}

// Submit routes a request and publishes the resulting trades and events
// to the sinks. Used by Dispatch and by serving front-ends that need the
// result, e.g. to hand the minted order id back to a client.
func (e *Engine) Submit(request Request) (HandleResult, error) {
	result, err := e.router.Handle(request)
	if err != nil {
		return HandleResult{}, err
	}
	for _, event := range result.Events {
		e.events.ReportEvent(event)
	}
	for _, trade := range result.Match.Trades {
		e.trades.ReportTrade(trade)
	}
	return result, nil
}

// Dispatch routes a request, logging the outcome: failures at error
// level, successes at info level.
func (e *Engine) Dispatch(request Request) {
	result, err := e.Submit(request)
	if err != nil {
		e.log.Error().Err(err).Msg("request failed")
		return
	}
	e.log.Info().
		Stringer("orderID", result.OrderID).
		Stringer("state", result.Match.State).
		Int("trades", len(result.Match.Trades)).
		Msg("request handled")
}

// LogBook writes a depth summary for every hosted market.
func (e *Engine) LogBook() {
	for pair, book := range e.books {
		lob, ok := book.(*LimitOrderBook)
		if !ok {
			continue
		}
		entry := e.log.Info().
			Stringer("pair", pair).
			Uint64("bidOrders", lob.BidCount()).
			Uint64("askOrders", lob.AskCount()).
			Uint64("bidVolume", lob.BidVolume()).
			Uint64("askVolume", lob.AskVolume())
		if spread, ok := lob.Spread(); ok {
			entry = entry.Stringer("spread", spread)
		}
		entry.Msg("book depth")
	}
}

// logSink prints trades and events through the engine's logger. The
// default sink when none is injected.
type logSink struct {
	log zerolog.Logger
}

func (s logSink) ReportTrade(trade Trade) {
	s.log.Info().
		Stringer("orderID", trade.OrderID).
		Stringer("side", trade.Side).
		Stringer("status", trade.Status).
		Stringer("price", trade.Price).
		Uint64("quantity", trade.Quantity).
		Uint64("timestamp", trade.Timestamp).
		Msg("trade")
}

func (s logSink) ReportEvent(event Event) {
	s.log.Info().
		Stringer("orderID", event.OrderID).
		Stringer("status", event.Status).
		Str("price", event.Price).
		Msg("order event")
}
