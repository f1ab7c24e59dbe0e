package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// StopMode selects how the stop-loss anchor is derived.
type StopMode string

const (
	StopModeATR     StopMode = "atr"
	StopModeWick    StopMode = "wick"
	StopModeSupport StopMode = "support"
	StopModeAuto    StopMode = "auto" // most conservative of the three
)

const degenerateATREpsilon = 1e-5

// RiskParams tunes the adaptive stop/take calculation.
type RiskParams struct {
	ATRPeriod       int     `yaml:"atr_period"`
	SLMultiplier    float64 `yaml:"sl_multiplier"`
	WickBuffer      float64 `yaml:"wick_buffer"`
	SupportLookback int     `yaml:"support_lookback"`
	RRRatio         float64 `yaml:"rr_ratio"`
}

func DefaultRiskParams() RiskParams {
	return RiskParams{
		ATRPeriod:       14,
		SLMultiplier:    1.5,
		WickBuffer:      0.25,
		SupportLookback: 20,
		RRRatio:         2.0,
	}
}

// AdaptiveRiskCalculator derives stop-loss and take-profit from volatility,
// wick extent and swing levels. The take-profit is always risk-ratio
// derived from the chosen stop, never independently computed.
type AdaptiveRiskCalculator struct {
	params RiskParams
}

func NewAdaptiveRiskCalculator(params RiskParams) *AdaptiveRiskCalculator {
	if params.ATRPeriod <= 0 {
		params = DefaultRiskParams()
	}
	return &AdaptiveRiskCalculator{params: params}
}

// ComputeStopTake returns (sl, tp) for an entry at entryPrice. Fails with
// ErrInsufficientHistory when the window is too short and ErrDegenerateATR
// when volatility collapsed; the caller must abort the entry on either.
func (r *AdaptiveRiskCalculator) ComputeStopTake(dir domain.Direction, entryPrice float64, w *Window, mode StopMode) (float64, float64, error) {
	if w.Len() < r.params.ATRPeriod+1 {
		return 0, 0, domain.ErrInsufficientHistory
	}

	atr := w.ATR(r.params.ATRPeriod)
	if atr < degenerateATREpsilon {
		return 0, 0, domain.ErrDegenerateATR
	}

	var sl float64
	switch mode {
	case StopModeATR:
		sl = r.atrStop(dir, entryPrice, atr)
	case StopModeWick:
		sl = r.wickStop(dir, w.Last())
	case StopModeSupport:
		sl = r.swingStop(dir, w)
	case StopModeAuto:
		sl = r.autoStop(dir, entryPrice, atr, w)
	default:
		return 0, 0, fmt.Errorf("unknown stop mode %q", mode)
	}

	var tp float64
	if dir == domain.DirectionLong {
		tp = entryPrice + (entryPrice-sl)*r.params.RRRatio
	} else {
		tp = entryPrice - (sl-entryPrice)*r.params.RRRatio
	}
	return sl, tp, nil
}

func (r *AdaptiveRiskCalculator) atrStop(dir domain.Direction, entry, atr float64) float64 {
	if dir == domain.DirectionLong {
		return entry - atr*r.params.SLMultiplier
	}
	return entry + atr*r.params.SLMultiplier
}

func (r *AdaptiveRiskCalculator) wickStop(dir domain.Direction, c domain.Candle) float64 {
	buffer := c.Range() * r.params.WickBuffer
	if dir == domain.DirectionLong {
		return c.Low - buffer
	}
	return c.High + buffer
}

func (r *AdaptiveRiskCalculator) swingStop(dir domain.Direction, w *Window) float64 {
	if dir == domain.DirectionLong {
		return w.Lowest(r.params.SupportLookback)
	}
	return w.Highest(r.params.SupportLookback)
}

// autoStop picks the stop furthest from entry in the loss direction.
func (r *AdaptiveRiskCalculator) autoStop(dir domain.Direction, entry, atr float64, w *Window) float64 {
	candidates := []float64{
		r.atrStop(dir, entry, atr),
		r.wickStop(dir, w.Last()),
		r.swingStop(dir, w),
	}
	if dir == domain.DirectionLong {
		sl := math.Inf(1)
		for _, c := range candidates {
			sl = math.Min(sl, c)
		}
		return sl
	}
	sl := math.Inf(-1)
	for _, c := range candidates {
		sl = math.Max(sl, c)
	}
	return sl
}

// ValidateStops enforces the side ordering post-condition: long requires
// sl < entry < tp, short requires sl > entry > tp.
func ValidateStops(dir domain.Direction, entry, sl, tp float64) error {
	if dir == domain.DirectionLong {
		if sl < entry && entry < tp {
			return nil
		}
	} else if dir == domain.DirectionShort {
		if sl > entry && entry > tp {
			return nil
		}
	}
	return domain.ErrInvalidStops
}
