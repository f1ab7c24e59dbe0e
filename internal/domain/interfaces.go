package domain

import "context"

// OrderResult is what the exchange reports back for a filled order.
type OrderResult struct {
	OrderID  string
	Price    float64 // average fill price, 0 if not reported
	Quantity float64
}

// ExchangePosition is the exchange's view of the open position.
type ExchangePosition struct {
	Symbol     string
	Side       Side
	Size       float64
	EntryPrice float64
}

// Exchange is the narrow execution interface the engine trades through.
// A nil result or error is authoritative: the caller must not assume the
// order reached the exchange.
type Exchange interface {
	PlaceOrder(ctx context.Context, side Side, quantity float64, reduceOnly bool) (*OrderResult, error)
	ClosePosition(ctx context.Context) (*OrderResult, error)
	GetOpenPosition(ctx context.Context) (*ExchangePosition, error)
}

// TradeRepository defines storage operations for the trade log.
type TradeRepository interface {
	SaveTrade(ctx context.Context, rec *TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]*TradeRecord, error)
}

// StatusSink receives fire-and-forget operator notifications. The engine
// works identically with NopSink wired in.
type StatusSink interface {
	LogEvent(message string)
	UpdateCapital(capital float64)
	UpdateLastTrade(rec *TradeRecord)
	UpdateFeedStatus(ok bool, reason string)
	UpdateApiStatus(ok bool, reason string)
}

// NopSink discards every notification.
type NopSink struct{}

func (NopSink) LogEvent(string)                 {}
func (NopSink) UpdateCapital(float64)           {}
func (NopSink) UpdateLastTrade(*TradeRecord)    {}
func (NopSink) UpdateFeedStatus(bool, string)   {}
func (NopSink) UpdateApiStatus(bool, string)    {}
