package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// PositionConfig tunes the trade lifecycle.
type PositionConfig struct {
	Symbol           string
	Leverage         int
	FeeRate          float64
	StopMode         StopMode
	MaxHoldCandles   int  // timed exit, simulation mode only
	Simulation       bool
	PartialClose     bool
	PartialClosePct  float64 // fraction of the remainder closed per partial
	PartialProfitPct float64 // favorable price move that arms a partial
	MinPositionUnit  float64 // base units below which the remainder is force-closed
}

// PositionStateMachine drives the Flat -> Open -> (PartiallyClosed)* ->
// Closed lifecycle. It is the only writer of the current position and is
// invoked synchronously from the engine loop, so no locking is needed.
// Exchange failures are authoritative: bookkeeping never advances on the
// assumption an order went through.
type PositionStateMachine struct {
	cfg      PositionConfig
	calc     *AdaptiveRiskCalculator
	exchange domain.Exchange
	trades   domain.TradeRepository
	cooldown *CooldownGate
	sink     domain.StatusSink
	logger   *zap.Logger
	timeNow  func() time.Time

	pos *domain.Position
}

func NewPositionStateMachine(
	cfg PositionConfig,
	calc *AdaptiveRiskCalculator,
	exchange domain.Exchange,
	trades domain.TradeRepository,
	cooldown *CooldownGate,
	sink domain.StatusSink,
	logger *zap.Logger,
) *PositionStateMachine {
	return &PositionStateMachine{
		cfg:      cfg,
		calc:     calc,
		exchange: exchange,
		trades:   trades,
		cooldown: cooldown,
		sink:     sink,
		logger:   logger,
		timeNow:  time.Now,
	}
}

func (m *PositionStateMachine) Flat() bool {
	return m.pos == nil
}

// Position returns an immutable snapshot of the open position, nil if flat.
func (m *PositionStateMachine) Position() *domain.Position {
	if m.pos == nil {
		return nil
	}
	snapshot := *m.pos
	return &snapshot
}

// Open attempts the Flat -> Open transition at the candle close price.
// Size is available capital x leverage. A failed stop calculation or a
// failed exchange order aborts the entry and leaves the machine flat.
func (m *PositionStateMachine) Open(ctx context.Context, dir domain.Direction, c domain.Candle, w *Window, capital float64, index int) error {
	if m.pos != nil {
		return domain.ErrPositionExists
	}

	entry := c.Close
	sl, tp, err := m.calc.ComputeStopTake(dir, entry, w, m.cfg.StopMode)
	if err != nil {
		return fmt.Errorf("stop calculation: %w", err)
	}
	if err := ValidateStops(dir, entry, sl, tp); err != nil {
		return err
	}

	qty := capital * float64(m.cfg.Leverage) / entry
	if qty <= 0 {
		return fmt.Errorf("non-positive position size from capital %.2f", capital)
	}

	side := domain.SideLong
	if dir == domain.DirectionShort {
		side = domain.SideShort
	}

	res, err := m.exchange.PlaceOrder(ctx, side, qty, false)
	if err != nil || res == nil {
		m.sink.UpdateApiStatus(false, "entry order failed")
		if err == nil {
			err = fmt.Errorf("exchange returned no order result")
		}
		m.logger.Error("entry order rejected, staying flat",
			zap.String("side", string(side)), zap.Float64("qty", qty), zap.Error(err))
		return fmt.Errorf("place order: %w", err)
	}
	m.sink.UpdateApiStatus(true, "")

	m.pos = &domain.Position{
		Symbol:     m.cfg.Symbol,
		Side:       side,
		EntryPrice: entry,
		Size:       qty,
		Remaining:  qty,
		Leverage:   m.cfg.Leverage,
		StopLoss:   sl,
		TakeProfit: tp,
		OpenedAt:   m.timeNow(),
		EntryIndex: index,
	}

	m.sink.LogEvent(fmt.Sprintf("opened %s %.6f @ %.4f (sl %.4f, tp %.4f)", side, qty, entry, sl, tp))
	m.logger.Info("position opened",
		zap.String("side", string(side)),
		zap.Float64("entry", entry),
		zap.Float64("qty", qty),
		zap.Float64("sl", sl),
		zap.Float64("tp", tp))
	return nil
}

// Manage runs the exit checks for the open position against one candle,
// in fixed order: stop-loss, take-profit, timed exit, opposing signal,
// partial close. Returns the trade records realized this tick.
func (m *PositionStateMachine) Manage(ctx context.Context, c domain.Candle, sig domain.Signal, index int) []*domain.TradeRecord {
	if m.pos == nil {
		return nil
	}
	p := m.pos
	long := p.Side == domain.SideLong

	if (long && c.Low <= p.StopLoss) || (!long && c.High >= p.StopLoss) {
		rec := m.closeAll(ctx, p.StopLoss, domain.ReasonStopLoss, index)
		if rec == nil {
			return nil
		}
		m.cooldown.RegisterStopLoss(m.timeNow())
		return []*domain.TradeRecord{rec}
	}

	if (long && c.High >= p.TakeProfit) || (!long && c.Low <= p.TakeProfit) {
		if rec := m.closeAll(ctx, p.TakeProfit, domain.ReasonTakeProfit, index); rec != nil {
			return []*domain.TradeRecord{rec}
		}
		return nil
	}

	if m.cfg.Simulation && m.cfg.MaxHoldCandles > 0 && index-p.EntryIndex >= m.cfg.MaxHoldCandles {
		if rec := m.closeAll(ctx, c.Close, domain.ReasonTimedExit, index); rec != nil {
			return []*domain.TradeRecord{rec}
		}
		return nil
	}

	if sig.Direction == domain.DirectionLong && !long || sig.Direction == domain.DirectionShort && long {
		if rec := m.closeAll(ctx, c.Close, domain.ReasonOppositeSignal, index); rec != nil {
			return []*domain.TradeRecord{rec}
		}
		return nil
	}

	if m.cfg.PartialClose && m.partialArmed(c.Close, p) {
		if rec := m.partialClose(ctx, c.Close, index); rec != nil {
			return []*domain.TradeRecord{rec}
		}
	}
	return nil
}

func (m *PositionStateMachine) partialArmed(price float64, p *domain.Position) bool {
	if m.cfg.PartialProfitPct <= 0 || p.Remaining <= m.cfg.MinPositionUnit {
		return false
	}
	var move float64
	if p.Side == domain.SideLong {
		move = (price - p.EntryPrice) / p.EntryPrice
	} else {
		move = (p.EntryPrice - price) / p.EntryPrice
	}
	return move >= m.cfg.PartialProfitPct
}

// partialClose realizes a configured fraction of the remainder, keeping
// the rest open at the original entry price. When the would-be remainder
// falls below the minimum unit the whole position is closed instead.
func (m *PositionStateMachine) partialClose(ctx context.Context, price float64, index int) *domain.TradeRecord {
	p := m.pos
	qty := p.Remaining * m.cfg.PartialClosePct
	if p.Remaining-qty < m.cfg.MinPositionUnit {
		return m.closeAll(ctx, price, domain.ReasonPartialClose, index)
	}

	closeSide := domain.SideShort
	if p.Side == domain.SideShort {
		closeSide = domain.SideLong
	}
	res, err := m.exchange.PlaceOrder(ctx, closeSide, qty, true)
	if err != nil || res == nil {
		m.sink.UpdateApiStatus(false, "partial close failed")
		m.logger.Error("partial close order failed, position unchanged", zap.Error(err))
		return nil
	}
	m.sink.UpdateApiStatus(true, "")

	p.Remaining -= qty
	p.PartialClosed = true
	rec := m.record(p, qty, price, domain.ReasonPartialClose, index)
	m.persist(ctx, rec)
	m.logger.Info("partial close",
		zap.Float64("qty", qty),
		zap.Float64("remaining", p.Remaining),
		zap.Float64("pnl", rec.PnL))
	return rec
}

// closeAll closes the whole remainder at exitPrice. On exchange failure
// the position is left untouched and nil is returned.
func (m *PositionStateMachine) closeAll(ctx context.Context, exitPrice float64, reason domain.CloseReason, index int) *domain.TradeRecord {
	p := m.pos
	res, err := m.exchange.ClosePosition(ctx)
	if err != nil || res == nil {
		m.sink.UpdateApiStatus(false, "close order failed")
		if err == nil {
			err = fmt.Errorf("exchange returned no order result")
		}
		m.logger.Error("close order failed, keeping position",
			zap.String("reason", string(reason)), zap.Error(err))
		return nil
	}
	m.sink.UpdateApiStatus(true, "")

	rec := m.record(p, p.Remaining, exitPrice, reason, index)
	m.persist(ctx, rec)
	m.pos = nil

	m.sink.LogEvent(fmt.Sprintf("closed %s @ %.4f (%s), pnl %.4f", p.Side, exitPrice, reason, rec.PnL))
	m.logger.Info("position closed",
		zap.String("side", string(p.Side)),
		zap.String("reason", string(reason)),
		zap.Float64("exit", exitPrice),
		zap.Float64("pnl", rec.PnL))
	return rec
}

// record builds the trade log row for qty units exited at exitPrice. PnL
// is net of the entry and exit fee shares for that quantity.
func (m *PositionStateMachine) record(p *domain.Position, qty, exitPrice float64, reason domain.CloseReason, index int) *domain.TradeRecord {
	gross := (exitPrice - p.EntryPrice) * qty
	if p.Side == domain.SideShort {
		gross = (p.EntryPrice - exitPrice) * qty
	}
	fees := (p.EntryPrice + exitPrice) * qty * m.cfg.FeeRate
	return &domain.TradeRecord{
		Symbol:          p.Symbol,
		Side:            p.Side,
		EntryPrice:      p.EntryPrice,
		ExitPrice:       exitPrice,
		Size:            qty,
		PnL:             gross - fees,
		Fees:            fees,
		DurationCandles: index - p.EntryIndex,
		Reason:          reason,
		OpenedAt:        p.OpenedAt,
		ClosedAt:        m.timeNow(),
	}
}

func (m *PositionStateMachine) persist(ctx context.Context, rec *domain.TradeRecord) {
	if m.trades == nil {
		return
	}
	if err := m.trades.SaveTrade(ctx, rec); err != nil {
		m.logger.Error("failed to persist trade record", zap.Error(err))
	}
	m.sink.UpdateLastTrade(rec)
}
