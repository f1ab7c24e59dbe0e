package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// mockExchange implements domain.Exchange with scripted failures.
type mockExchange struct {
	mu         sync.Mutex
	FailPlace  bool
	FailClose  bool
	Placed     []mockOrder
	CloseCalls int
	nextID     int64
}

type mockOrder struct {
	Side       domain.Side
	Quantity   float64
	ReduceOnly bool
}

func (m *mockExchange) PlaceOrder(_ context.Context, side domain.Side, qty float64, reduceOnly bool) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPlace {
		return nil, context.DeadlineExceeded
	}
	m.Placed = append(m.Placed, mockOrder{Side: side, Quantity: qty, ReduceOnly: reduceOnly})
	m.nextID++
	return &domain.OrderResult{OrderID: "mock", Quantity: qty}, nil
}

func (m *mockExchange) ClosePosition(context.Context) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailClose {
		return nil, context.DeadlineExceeded
	}
	m.CloseCalls++
	return &domain.OrderResult{OrderID: "mock-close"}, nil
}

func (m *mockExchange) GetOpenPosition(context.Context) (*domain.ExchangePosition, error) {
	return nil, nil
}

// mockTradeRepo records saved trades in memory.
type mockTradeRepo struct {
	mu     sync.Mutex
	Trades []*domain.TradeRecord
}

func (r *mockTradeRepo) SaveTrade(_ context.Context, rec *domain.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Trades = append(r.Trades, rec)
	return nil
}

func (r *mockTradeRepo) ListTrades(context.Context, int) ([]*domain.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.TradeRecord(nil), r.Trades...), nil
}

func (r *mockTradeRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Trades)
}

// mockSink captures status events.
type mockSink struct {
	mu         sync.Mutex
	Events     []string
	FeedStatus []bool
	LastTrade  *domain.TradeRecord
	Capital    float64
}

func (s *mockSink) LogEvent(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, msg)
}

func (s *mockSink) UpdateCapital(c float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Capital = c
}

func (s *mockSink) UpdateLastTrade(rec *domain.TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastTrade = rec
}

func (s *mockSink) UpdateFeedStatus(ok bool, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FeedStatus = append(s.FeedStatus, ok)
}

func (s *mockSink) UpdateApiStatus(bool, string) {}

// mockFeed is an in-memory candle queue for engine tests.
type mockFeed struct {
	ch chan domain.Candle
}

func newMockFeed(size int) *mockFeed {
	return &mockFeed{ch: make(chan domain.Candle, size)}
}

func (f *mockFeed) Push(c domain.Candle) {
	f.ch <- c
}

func (f *mockFeed) NextCandle(timeout time.Duration) (domain.Candle, bool) {
	if timeout <= 0 {
		select {
		case c := <-f.ch:
			return c, true
		default:
			return domain.Candle{}, false
		}
	}
	select {
	case c := <-f.ch:
		return c, true
	case <-time.After(timeout):
		return domain.Candle{}, false
	}
}

// mockFeedController drives watchdog tests.
type mockFeedController struct {
	mu       sync.Mutex
	last     time.Time
	Restarts int
}

func (c *mockFeedController) SetLast(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = t
}

func (c *mockFeedController) LastCandleTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *mockFeedController) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Restarts++
}
