package usecase

import (
	"math"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// Window is a rolling buffer of candles with strictly increasing open
// times. Oldest candles are evicted once the cap is reached. All indicator
// methods are pure reads over the buffer; defaults are returned when the
// history is too short (ATR 0, RSI 50), so callers treat short history as
// "neutral, not yet informative" rather than an error.
type Window struct {
	candles []domain.Candle
	max     int
}

func NewWindow(max int) *Window {
	if max <= 0 {
		max = 120
	}
	return &Window{max: max}
}

// Append adds a candle if its timestamp is strictly greater than the last
// one. Returns false when the candle is rejected.
func (w *Window) Append(c domain.Candle) bool {
	if n := len(w.candles); n > 0 && c.Time <= w.candles[n-1].Time {
		return false
	}
	w.candles = append(w.candles, c)
	if len(w.candles) > w.max {
		w.candles = w.candles[1:]
	}
	return true
}

func (w *Window) Len() int {
	return len(w.candles)
}

// Last returns the most recent candle. Valid only when Len() > 0.
func (w *Window) Last() domain.Candle {
	return w.candles[len(w.candles)-1]
}

// At returns the candle at index i (0 = oldest).
func (w *Window) At(i int) domain.Candle {
	return w.candles[i]
}

// Prior returns a read-only view of the window excluding the most recent
// candle, for filters that need "previous" context.
func (w *Window) Prior() *Window {
	if len(w.candles) == 0 {
		return &Window{max: w.max}
	}
	return &Window{candles: w.candles[:len(w.candles)-1], max: w.max}
}

// ATR is the mean true range over the trailing period candles. Needs
// period+1 candles for the previous-close term; returns 0 otherwise.
func (w *Window) ATR(period int) float64 {
	n := len(w.candles)
	if period <= 0 || n < period+1 {
		return 0
	}
	var sum float64
	for i := n - period; i < n; i++ {
		c := w.candles[i]
		prevClose := w.candles[i-1].Close
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		sum += tr
	}
	return sum / float64(period)
}

// RSI is the average-gain/average-loss oscillator over the trailing period
// deltas. Returns the neutral 50 when history is insufficient.
func (w *Window) RSI(period int) float64 {
	n := len(w.candles)
	if period <= 0 || n < period+1 {
		return 50
	}
	var gain, loss float64
	for i := n - period; i < n; i++ {
		delta := w.candles[i].Close - w.candles[i-1].Close
		if delta >= 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	if loss == 0 {
		return 100
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100 - 100/(1+rs)
}

// EMA is the exponential moving average of closes, seeded with the SMA of
// the first period closes. Returns 0 when fewer than period candles exist.
func (w *Window) EMA(period int) float64 {
	n := len(w.candles)
	if period <= 0 || n < period {
		return 0
	}
	var seed float64
	for i := 0; i < period; i++ {
		seed += w.candles[i].Close
	}
	ema := seed / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < n; i++ {
		ema = w.candles[i].Close*k + ema*(1-k)
	}
	return ema
}

// Highest returns the highest high over the trailing period candles.
func (w *Window) Highest(period int) float64 {
	n := len(w.candles)
	if n == 0 || period <= 0 {
		return 0
	}
	start := n - period
	if start < 0 {
		start = 0
	}
	high := w.candles[start].High
	for _, c := range w.candles[start+1:] {
		if c.High > high {
			high = c.High
		}
	}
	return high
}

// Lowest returns the lowest low over the trailing period candles.
func (w *Window) Lowest(period int) float64 {
	n := len(w.candles)
	if n == 0 || period <= 0 {
		return 0
	}
	start := n - period
	if start < 0 {
		start = 0
	}
	low := w.candles[start].Low
	for _, c := range w.candles[start+1:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}

// VolumeAverage is the mean volume over the trailing period candles.
func (w *Window) VolumeAverage(period int) float64 {
	n := len(w.candles)
	if n == 0 || period <= 0 {
		return 0
	}
	start := n - period
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, c := range w.candles[start:] {
		sum += c.Volume
	}
	return sum / float64(n-start)
}
