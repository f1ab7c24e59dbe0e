package usecase

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
	"github.com/vitos/crypto_breakout_bot/internal/metrics"
)

// CandleFeed is the queue read-end the engine consumes from.
type CandleFeed interface {
	// NextCandle blocks up to timeout for the next candle. A zero timeout
	// polls without waiting.
	NextCandle(timeout time.Duration) (domain.Candle, bool)
}

// EngineConfig tunes the consumer loop.
type EngineConfig struct {
	InitialCapital float64
	PollTimeout    time.Duration // queue pull timeout, allows liveness checks while idle
	StartupWait    time.Duration // hard cap on waiting for the first candle
	Limits         domain.RiskLimits
}

// Engine is the single consumer. It alone reads and writes the candle
// window, the position and the runtime trading state; one candle is
// processed to completion before the next is pulled, which keeps the
// state machine race-free without a lock around the position.
type Engine struct {
	cfg      EngineConfig
	feed     CandleFeed
	signals  *SignalEngine
	machine  *PositionStateMachine
	cooldown *CooldownGate
	risk     *RiskManager
	state    *EngineState
	sink     domain.StatusSink
	logger   *zap.Logger
	timeNow  func() time.Time

	capital     float64
	tradeTimes  []time.Time
	candleIndex int

	riskReset atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

func NewEngine(
	cfg EngineConfig,
	feed CandleFeed,
	signals *SignalEngine,
	machine *PositionStateMachine,
	cooldown *CooldownGate,
	risk *RiskManager,
	state *EngineState,
	sink domain.StatusSink,
	logger *zap.Logger,
) *Engine {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	return &Engine{
		cfg:      cfg,
		feed:     feed,
		signals:  signals,
		machine:  machine,
		cooldown: cooldown,
		risk:     risk,
		state:    state,
		sink:     sink,
		logger:   logger,
		timeNow:  time.Now,
		capital:  cfg.InitialCapital,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// State exposes the shared runtime flags (for the watchdog and operator).
func (e *Engine) State() *EngineState {
	return e.state
}

// RequestRiskReset asks the consumer loop to clear a risk pause on its
// next tick. Safe to call from any goroutine.
func (e *Engine) RequestRiskReset() {
	e.riskReset.Store(true)
}

func (e *Engine) Start() {
	go e.run()
}

// Stop signals the loop and waits up to a second for the current candle
// to finish; the consumer never aborts mid-transition.
func (e *Engine) Stop() {
	close(e.stop)
	select {
	case <-e.done:
	case <-time.After(time.Second):
		e.logger.Warn("engine did not stop within timeout")
	}
}

func (e *Engine) run() {
	defer close(e.done)

	if c, ok := e.feed.NextCandle(e.cfg.StartupWait); ok {
		e.process(c)
	} else if e.cfg.StartupWait > 0 {
		e.logger.Warn("no candle within startup window, starting degraded",
			zap.Duration("waited", e.cfg.StartupWait))
	}

	for {
		select {
		case <-e.stop:
			return
		default:
		}

		c, ok := e.feed.NextCandle(e.cfg.PollTimeout)
		if !ok {
			continue
		}
		e.process(c)

		// drain any backlog without sleeping
		for {
			select {
			case <-e.stop:
				return
			default:
			}
			c, ok := e.feed.NextCandle(0)
			if !ok {
				break
			}
			e.process(c)
		}
	}
}

// process drives one candle through the fixed tick order: evaluate,
// manage exits, risk checks, entry gates, open.
func (e *Engine) process(c domain.Candle) {
	e.candleIndex++
	now := e.timeNow()
	ctx := context.Background()

	if e.riskReset.Swap(false) {
		e.risk.Reset()
		if e.state.Resume(domain.PauseRisk) {
			e.sink.LogEvent("risk pause cleared by operator reset")
		}
	}

	sig := e.signals.Evaluate(c)

	// exits are always honored, paused or not
	for _, rec := range e.machine.Manage(ctx, c, sig, e.candleIndex) {
		e.capital += rec.PnL
		e.risk.UpdateLoss(rec.PnL)
		e.risk.UpdateCapital(e.capital)
		e.sink.UpdateCapital(e.capital)
		metrics.TradesClosed.Inc()
		metrics.Capital.Set(e.capital)
	}

	if e.risk.Check() {
		if e.state.Pause(domain.PauseRisk) {
			_, reason := e.risk.Breached()
			e.sink.LogEvent("engine paused: " + reason)
		}
	}

	if sig.Direction == domain.DirectionNone {
		if len(sig.Reasons) > 0 {
			e.sink.LogEvent("signal rejected: " + strings.Join(sig.Reasons, "; "))
		}
		return
	}

	if !e.machine.Flat() {
		return
	}
	if !e.state.Running() {
		return
	}
	if e.cooldown.InCooldown(now) {
		e.sink.LogEvent("entry skipped: cooldown active for " + e.cooldown.Remaining(now).Round(time.Second).String())
		return
	}
	if e.cfg.Limits.MaxTradesPerHour > 0 && e.tradesInLastHour(now) >= e.cfg.Limits.MaxTradesPerHour {
		e.sink.LogEvent("entry skipped: hourly trade limit reached")
		return
	}

	if err := e.machine.Open(ctx, sig.Direction, c, e.signals.Window(), e.capital, e.candleIndex); err != nil {
		e.logger.Warn("entry aborted", zap.Error(err))
		return
	}
	e.tradeTimes = append(e.tradeTimes, now)
	metrics.TradesOpened.Inc()
}

// tradesInLastHour prunes the timestamp list to the trailing hour and
// returns its size.
func (e *Engine) tradesInLastHour(now time.Time) int {
	cutoff := now.Add(-time.Hour)
	kept := e.tradeTimes[:0]
	for _, t := range e.tradeTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.tradeTimes = kept
	return len(kept)
}
