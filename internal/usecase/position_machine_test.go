package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
	"github.com/vitos/crypto_breakout_bot/internal/usecase"
)

func machineConfig() usecase.PositionConfig {
	return usecase.PositionConfig{
		Symbol:     "BTCUSDT",
		Leverage:   2,
		FeeRate:    0.0004,
		StopMode:   usecase.StopModeATR,
		Simulation: true,
	}
}

type machineFixture struct {
	machine  *usecase.PositionStateMachine
	exchange *mockExchange
	repo     *mockTradeRepo
	cooldown *usecase.CooldownGate
	sink     *mockSink
	window   *usecase.Window
}

func newMachineFixture(cfg usecase.PositionConfig) *machineFixture {
	f := &machineFixture{
		exchange: &mockExchange{},
		repo:     &mockTradeRepo{},
		cooldown: usecase.NewCooldownGate(5 * time.Minute),
		sink:     &mockSink{},
		window:   rangeWindow(20),
	}
	calc := usecase.NewAdaptiveRiskCalculator(usecase.DefaultRiskParams())
	f.machine = usecase.NewPositionStateMachine(cfg, calc, f.exchange, f.repo, f.cooldown, f.sink, zap.NewNop())
	return f
}

// openLong opens a long at 102 over the oscillating range window: with the
// default params that puts the stop at 99 and the take at 108.
func (f *machineFixture) openLong(t *testing.T) {
	t.Helper()
	entry := candle(20*minuteMs, 100, 103, 99.5, 102, 9000)
	require.NoError(t, f.machine.Open(context.Background(), domain.DirectionLong, entry, f.window, 1000, 20))
	require.False(t, f.machine.Flat())
}

func TestPositionMachine_OpenLong(t *testing.T) {
	f := newMachineFixture(machineConfig())
	f.openLong(t)

	pos := f.machine.Position()
	require.NotNil(t, pos)
	assert.Equal(t, domain.SideLong, pos.Side)
	assert.InDelta(t, 102.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 99.0, pos.StopLoss, 1e-9)
	assert.InDelta(t, 108.0, pos.TakeProfit, 1e-9)
	assert.InDelta(t, 1000*2/102.0, pos.Size, 1e-9)
	assert.Equal(t, pos.Size, pos.Remaining)

	require.Len(t, f.exchange.Placed, 1)
	assert.Equal(t, domain.SideLong, f.exchange.Placed[0].Side)
	assert.False(t, f.exchange.Placed[0].ReduceOnly)
}

func TestPositionMachine_SecondOpenRejected(t *testing.T) {
	f := newMachineFixture(machineConfig())
	f.openLong(t)

	entry := candle(21*minuteMs, 102, 104, 101, 103, 9000)
	err := f.machine.Open(context.Background(), domain.DirectionLong, entry, f.window, 1000, 21)
	assert.ErrorIs(t, err, domain.ErrPositionExists)
	assert.Len(t, f.exchange.Placed, 1, "no second order placed")
}

func TestPositionMachine_FailedEntryStaysFlat(t *testing.T) {
	f := newMachineFixture(machineConfig())
	f.exchange.FailPlace = true

	entry := candle(20*minuteMs, 100, 103, 99.5, 102, 9000)
	err := f.machine.Open(context.Background(), domain.DirectionLong, entry, f.window, 1000, 20)
	require.Error(t, err)
	assert.True(t, f.machine.Flat(), "rejected order must not create a position")
	assert.Zero(t, f.repo.Len())
}

func TestPositionMachine_StopLossClosesAndArmsCooldown(t *testing.T) {
	f := newMachineFixture(machineConfig())
	f.openLong(t)

	// low pierces the stop at 99
	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 100, 100.5, 98.5, 98.8, 2000), domain.Signal{}, 21)
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, domain.ReasonStopLoss, rec.Reason)
	assert.InDelta(t, 99.0, rec.ExitPrice, 1e-9)
	qty := 1000 * 2 / 102.0
	wantFees := (102.0 + 99.0) * qty * 0.0004
	assert.InDelta(t, wantFees, rec.Fees, 1e-9)
	assert.InDelta(t, (99.0-102.0)*qty-wantFees, rec.PnL, 1e-9)
	assert.Equal(t, 1, rec.DurationCandles)

	assert.True(t, f.machine.Flat())
	assert.Equal(t, 1, f.exchange.CloseCalls)
	assert.True(t, f.cooldown.InCooldown(time.Now()))
	assert.Equal(t, 1, f.repo.Len())
}

func TestPositionMachine_TakeProfitNoCooldown(t *testing.T) {
	f := newMachineFixture(machineConfig())
	f.openLong(t)

	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 106, 108.5, 105, 108.2, 2000), domain.Signal{}, 21)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonTakeProfit, recs[0].Reason)
	assert.InDelta(t, 108.0, recs[0].ExitPrice, 1e-9)
	assert.True(t, recs[0].PnL > 0)

	assert.True(t, f.machine.Flat())
	assert.False(t, f.cooldown.InCooldown(time.Now()), "profit exits carry no cooldown")
}

func TestPositionMachine_StopLossBeatsTakeProfit(t *testing.T) {
	f := newMachineFixture(machineConfig())
	f.openLong(t)

	// candle straddles both levels: the stop wins
	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 102, 109, 98, 105, 2000), domain.Signal{}, 21)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonStopLoss, recs[0].Reason)
}

func TestPositionMachine_TimedExitSimulationOnly(t *testing.T) {
	cfg := machineConfig()
	cfg.MaxHoldCandles = 3
	f := newMachineFixture(cfg)
	f.openLong(t)

	neutral := func(i int) domain.Candle {
		return candle(int64(20+i)*minuteMs, 103, 104, 102.5, 103.5, 1000)
	}

	assert.Empty(t, f.machine.Manage(context.Background(), neutral(1), domain.Signal{}, 21))
	assert.Empty(t, f.machine.Manage(context.Background(), neutral(2), domain.Signal{}, 22))
	recs := f.machine.Manage(context.Background(), neutral(3), domain.Signal{}, 23)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonTimedExit, recs[0].Reason)
	assert.InDelta(t, 103.5, recs[0].ExitPrice, 1e-9)
}

func TestPositionMachine_NoTimedExitLive(t *testing.T) {
	cfg := machineConfig()
	cfg.MaxHoldCandles = 1
	cfg.Simulation = false
	f := newMachineFixture(cfg)
	f.openLong(t)

	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 103, 104, 102.5, 103.5, 1000), domain.Signal{}, 25)
	assert.Empty(t, recs, "timed exit only applies in simulation")
	assert.False(t, f.machine.Flat())
}

func TestPositionMachine_OpposingSignalExit(t *testing.T) {
	f := newMachineFixture(machineConfig())
	f.openLong(t)

	sig := domain.Signal{Direction: domain.DirectionShort}
	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 103, 104, 102.5, 103.5, 1000), sig, 21)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonOppositeSignal, recs[0].Reason)
	assert.InDelta(t, 103.5, recs[0].ExitPrice, 1e-9)
	assert.True(t, f.machine.Flat())
}

func TestPositionMachine_PartialClose(t *testing.T) {
	cfg := machineConfig()
	cfg.PartialClose = true
	cfg.PartialClosePct = 0.5
	cfg.PartialProfitPct = 0.02
	cfg.MinPositionUnit = 0.001
	f := newMachineFixture(cfg)
	f.openLong(t)
	full := f.machine.Position().Size

	// +3% move without touching the take at 108
	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 104, 105.5, 103.9, 105.06, 2000), domain.Signal{}, 21)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonPartialClose, recs[0].Reason)
	assert.InDelta(t, full*0.5, recs[0].Size, 1e-9)

	pos := f.machine.Position()
	require.NotNil(t, pos, "remainder stays open")
	assert.InDelta(t, full*0.5, pos.Remaining, 1e-9)
	assert.True(t, pos.PartialClosed)
	assert.InDelta(t, 102.0, pos.EntryPrice, 1e-9, "entry price unchanged")

	require.Len(t, f.exchange.Placed, 2)
	reduce := f.exchange.Placed[1]
	assert.Equal(t, domain.SideShort, reduce.Side)
	assert.True(t, reduce.ReduceOnly)
}

func TestPositionMachine_PartialBelowMinUnitClosesAll(t *testing.T) {
	cfg := machineConfig()
	cfg.PartialClose = true
	cfg.PartialClosePct = 0.5
	cfg.PartialProfitPct = 0.02
	cfg.MinPositionUnit = 1000 // remainder always below minimum
	f := newMachineFixture(cfg)
	f.openLong(t)

	// remainder already under the minimum unit: no partial fires at all
	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 104, 105.5, 103.9, 105.06, 2000), domain.Signal{}, 21)
	assert.Empty(t, recs)
	assert.False(t, f.machine.Flat())
}

func TestPositionMachine_PartialRemainderForceClosed(t *testing.T) {
	cfg := machineConfig()
	cfg.PartialClose = true
	cfg.PartialClosePct = 0.9
	cfg.PartialProfitPct = 0.02
	cfg.MinPositionUnit = 5 // 10% remainder of ~19.6 falls below this
	f := newMachineFixture(cfg)
	f.openLong(t)

	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 104, 105.5, 103.9, 105.06, 2000), domain.Signal{}, 21)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonPartialClose, recs[0].Reason)
	assert.True(t, f.machine.Flat(), "tiny remainder is closed in full")
	assert.Equal(t, 1, f.exchange.CloseCalls)
}

func TestPositionMachine_FailedCloseKeepsPosition(t *testing.T) {
	f := newMachineFixture(machineConfig())
	f.openLong(t)
	f.exchange.FailClose = true

	stopCandle := candle(21*minuteMs, 100, 100.5, 98.5, 98.8, 2000)
	recs := f.machine.Manage(context.Background(), stopCandle, domain.Signal{}, 21)
	assert.Empty(t, recs)
	assert.False(t, f.machine.Flat(), "bookkeeping must not advance on a failed close")
	assert.False(t, f.cooldown.InCooldown(time.Now()))
	assert.Zero(t, f.repo.Len())

	// next tick the exchange recovers and the exit lands
	f.exchange.FailClose = false
	recs = f.machine.Manage(context.Background(), candle(22*minuteMs, 98.8, 99.2, 98, 98.5, 2000), domain.Signal{}, 22)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonStopLoss, recs[0].Reason)
	assert.True(t, f.machine.Flat())
}

func TestPositionMachine_ShortStopAbove(t *testing.T) {
	f := newMachineFixture(machineConfig())
	entry := candle(20*minuteMs, 100, 100.5, 97, 98, 9000)
	require.NoError(t, f.machine.Open(context.Background(), domain.DirectionShort, entry, f.window, 1000, 20))

	pos := f.machine.Position()
	require.NotNil(t, pos)
	assert.Equal(t, domain.SideShort, pos.Side)
	assert.InDelta(t, 101.0, pos.StopLoss, 1e-9) // 98 + 2*1.5
	assert.InDelta(t, 92.0, pos.TakeProfit, 1e-9)

	// high tags the stop
	recs := f.machine.Manage(context.Background(), candle(21*minuteMs, 99, 101.5, 98.5, 100, 2000), domain.Signal{}, 21)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonStopLoss, recs[0].Reason)
	assert.True(t, recs[0].PnL < 0)
}
