package usecase

import (
	"math"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

const atrPeriod = 14

// SignalEngine runs the breakout/reversal filter pipeline over a rolling
// candle window. Evaluate is a pure function of the current window, the
// config snapshot and the previous tick's candidate flags.
type SignalEngine struct {
	cfg    domain.FilterConfig
	window *Window

	// candidate flags from the previous tick, used by the confirm-delay filter
	prevCandidateLong  bool
	prevCandidateShort bool
}

func NewSignalEngine(cfg domain.FilterConfig, windowSize int) *SignalEngine {
	return &SignalEngine{
		cfg:    cfg,
		window: NewWindow(windowSize),
	}
}

// Window exposes the engine's candle window for stop/take calculation.
func (e *SignalEngine) Window() *Window {
	return e.window
}

// SetConfig swaps the filter snapshot. Must only be called between ticks.
func (e *SignalEngine) SetConfig(cfg domain.FilterConfig) {
	e.cfg = cfg
}

// Evaluate appends the candle to the window and runs the filter pipeline.
// With fewer than lookback+2 candles buffered it returns a NONE signal
// (insufficient history, not an error).
func (e *SignalEngine) Evaluate(c domain.Candle) domain.Signal {
	e.window.Append(c)

	if e.window.Len() < e.cfg.Lookback+2 {
		e.prevCandidateLong = false
		e.prevCandidateShort = false
		return domain.Signal{Direction: domain.DirectionNone, RSI: 50}
	}

	prior := e.window.Prior()
	breakoutUp := c.High > prior.Highest(e.cfg.Lookback)+e.cfg.BreakoutBuffer
	breakoutDown := c.Low < prior.Lowest(e.cfg.Lookback)-e.cfg.BreakoutBuffer

	atr := prior.ATR(atrPeriod)
	bigCandle := math.Abs(c.Close-c.Open) > atr

	avgVolume := prior.VolumeAverage(e.cfg.Lookback)
	volumeSpike := avgVolume > 0 && c.Volume > avgVolume*e.cfg.VolumeMultiplier && bigCandle
	if e.cfg.StrongVolume && volumeSpike {
		volumeSpike = c.Volume > avgVolume*1.5
	}

	rsi := prior.RSI(atrPeriod)
	prev := e.window.At(e.window.Len() - 2)

	candidateLong := breakoutUp && volumeSpike
	candidateShort := breakoutDown && volumeSpike

	sig := domain.Signal{
		Direction:   domain.DirectionNone,
		RSI:         rsi,
		VolumeSpike: volumeSpike,
	}

	// Candidates are checked long-first; the first one with zero rejection
	// reasons wins. If none wins, the first active candidate's rejection
	// list is surfaced.
	var firstReasons []string
	for _, dir := range []domain.Direction{domain.DirectionLong, domain.DirectionShort} {
		active := (dir == domain.DirectionLong && candidateLong) ||
			(dir == domain.DirectionShort && candidateShort)
		if !active {
			continue
		}
		engulfing := e.engulfing(dir, c, prev)
		reasons := e.rejections(dir, c, prev, rsi, bigCandle, engulfing)
		if len(reasons) == 0 {
			sig.Direction = dir
			sig.Engulfing = engulfing
			firstReasons = nil
			break
		}
		if firstReasons == nil {
			firstReasons = reasons
		}
	}
	sig.Reasons = firstReasons

	e.prevCandidateLong = candidateLong
	e.prevCandidateShort = candidateShort
	return sig
}

// engulfing reports whether the candle's body fully contains the prior
// candle's opposite-direction body.
func (e *SignalEngine) engulfing(dir domain.Direction, c, prev domain.Candle) bool {
	if dir == domain.DirectionLong {
		return c.Bullish() && prev.Bearish() && c.Open <= prev.Close && c.Close >= prev.Open
	}
	return c.Bearish() && prev.Bullish() && c.Open >= prev.Close && c.Close <= prev.Open
}

// rejections accumulates the rejection reasons for one candidate
// direction, in fixed filter order.
func (e *SignalEngine) rejections(dir domain.Direction, c, prev domain.Candle, rsi float64, bigCandle, engulfing bool) []string {
	var reasons []string

	if e.cfg.RSIEMA {
		if dir == domain.DirectionLong && rsi <= 50 {
			reasons = append(reasons, "rsi below long threshold")
		}
		if dir == domain.DirectionShort && e.cfg.SafeMode && rsi >= 70 {
			reasons = append(reasons, "rsi overbought, short blocked in safe mode")
		}
		if dir == domain.DirectionLong && e.cfg.SafeMode && rsi <= 30 {
			reasons = append(reasons, "rsi oversold, long blocked in safe mode")
		}
	}

	if e.cfg.Engulfing {
		required := engulfing
		if e.cfg.EngulfingOnBreakout {
			// candidate implies breakout, so the pattern itself decides
			required = engulfing
		}
		if e.cfg.EngulfingBig {
			required = engulfing && bigCandle
		}
		if !required {
			reasons = append(reasons, "no engulfing confirmation")
		}
	}

	if e.cfg.SessionFilter {
		hour := c.OpenTime().UTC().Hour()
		if hour < 7 || hour > 20 {
			reasons = append(reasons, "outside session hours")
		}
	}

	if e.cfg.MTFConfirm {
		// higher-timeframe confirmation is a pass-through placeholder
		_ = prev
	}

	if e.cfg.ConfirmDelay {
		prevCandidate := e.prevCandidateLong
		sameBody := c.Bullish()
		if dir == domain.DirectionShort {
			prevCandidate = e.prevCandidateShort
			sameBody = c.Bearish()
		}
		if !prevCandidate || !sameBody {
			reasons = append(reasons, "awaiting confirmation candle")
		}
	}

	return reasons
}
