package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// CloseReason explains why a position (or part of one) was closed.
type CloseReason string

const (
	ReasonStopLoss       CloseReason = "stop_loss"
	ReasonTakeProfit     CloseReason = "take_profit"
	ReasonTimedExit      CloseReason = "timed_exit"
	ReasonOppositeSignal CloseReason = "opposite_signal"
	ReasonPartialClose   CloseReason = "partial_close"
)

// Position is the single open trade. Created exactly once per entry and
// mutated only by the position state machine.
type Position struct {
	Symbol        string
	Side          Side
	EntryPrice    float64
	Size          float64 // original size, base units
	Remaining     float64 // still-open size, base units
	Leverage      int
	StopLoss      float64
	TakeProfit    float64
	OpenedAt      time.Time
	EntryIndex    int // candle index at entry, for hold-duration exits
	PartialClosed bool
}

// TradeRecord is one row of the append-only trade log, written on every
// close and partial close.
type TradeRecord struct {
	ID              int64
	Symbol          string
	Side            Side
	EntryPrice      float64
	ExitPrice       float64
	Size            float64
	PnL             float64 // net of fees
	Fees            float64
	DurationCandles int
	Reason          CloseReason
	OpenedAt        time.Time
	ClosedAt        time.Time
}

// RiskLimits bounds the risk manager and the entry gates.
type RiskLimits struct {
	MaxLossAbs       float64
	MaxDrawdownPct   float64
	Cooldown         time.Duration
	MaxTradesPerHour int
}

// PauseReason says why the engine is not taking entries.
type PauseReason string

const (
	PauseNone   PauseReason = ""
	PauseFeed   PauseReason = "feed"
	PauseRisk   PauseReason = "risk"
	PauseManual PauseReason = "manual"
)
