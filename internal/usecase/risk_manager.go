package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// RiskManager tracks capital, peak-to-current drawdown and accumulated
// loss. A breach pauses new entries until an explicit Reset; there is no
// auto-resume, unlike the feed pause.
type RiskManager struct {
	limits domain.RiskLimits
	logger *zap.Logger

	capital   float64
	peak      float64
	totalLoss float64

	breached     bool
	breachReason string
}

func NewRiskManager(limits domain.RiskLimits, initialCapital float64, logger *zap.Logger) *RiskManager {
	return &RiskManager{
		limits:  limits,
		logger:  logger,
		capital: initialCapital,
		peak:    initialCapital,
	}
}

func (m *RiskManager) UpdateCapital(capital float64) {
	m.capital = capital
	if capital > m.peak {
		m.peak = capital
	}
}

// UpdateLoss accumulates only negative pnl into the running loss total.
func (m *RiskManager) UpdateLoss(pnl float64) {
	if pnl < 0 {
		m.totalLoss += -pnl
	}
}

func (m *RiskManager) CheckLossLimit() bool {
	if m.limits.MaxLossAbs <= 0 {
		return false
	}
	return m.totalLoss >= m.limits.MaxLossAbs
}

func (m *RiskManager) CheckDrawdownLimit() bool {
	if m.limits.MaxDrawdownPct <= 0 || m.peak <= 0 {
		return false
	}
	drawdown := (m.peak - m.capital) / m.peak * 100
	return drawdown >= m.limits.MaxDrawdownPct
}

// Check runs both limits and latches the breach. Returns true while any
// breach is active.
func (m *RiskManager) Check() bool {
	if m.breached {
		return true
	}
	if m.CheckLossLimit() {
		m.breach(fmt.Sprintf("loss limit reached: %.2f >= %.2f", m.totalLoss, m.limits.MaxLossAbs))
	} else if m.CheckDrawdownLimit() {
		m.breach(fmt.Sprintf("drawdown limit reached: peak %.2f, capital %.2f", m.peak, m.capital))
	}
	return m.breached
}

func (m *RiskManager) breach(reason string) {
	m.breached = true
	m.breachReason = reason
	m.logger.Warn("risk limit breached, trading paused", zap.String("reason", reason))
}

func (m *RiskManager) Breached() (bool, string) {
	return m.breached, m.breachReason
}

// Reset clears a breach. Must come from an explicit operator action.
func (m *RiskManager) Reset() {
	m.breached = false
	m.breachReason = ""
	m.totalLoss = 0
	m.peak = m.capital
	m.logger.Info("risk manager reset")
}
