package domain

import "time"

// CandleOrigin tells where a candle entered the system from.
type CandleOrigin string

const (
	OriginWS      CandleOrigin = "ws"
	OriginREST    CandleOrigin = "rest"
	OriginPreload CandleOrigin = "preload"
)

// Candle is a single OHLCV bar. Immutable once constructed.
type Candle struct {
	Time   int64   `json:"time"` // open time, unix ms
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Closed bool    `json:"closed"`
	Origin CandleOrigin
}

// Body returns the absolute open/close distance.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high/low distance.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool {
	return c.Close < c.Open
}

// OpenTime returns the candle open time as a time.Time.
func (c Candle) OpenTime() time.Time {
	return time.UnixMilli(c.Time)
}
