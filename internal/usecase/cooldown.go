package usecase

import "time"

// CooldownGate blocks new entries for a configured window after a
// stop-loss exit. Only one cooldown is active at a time; registering a
// new stop-loss overwrites the previous one, it does not stack.
type CooldownGate struct {
	duration time.Duration
	lastStop time.Time
	armed    bool
}

func NewCooldownGate(duration time.Duration) *CooldownGate {
	return &CooldownGate{duration: duration}
}

func (g *CooldownGate) RegisterStopLoss(now time.Time) {
	g.lastStop = now
	g.armed = true
}

func (g *CooldownGate) InCooldown(now time.Time) bool {
	if !g.armed || g.duration <= 0 {
		return false
	}
	return now.Sub(g.lastStop) < g.duration
}

// Remaining reports how long the active cooldown still runs, zero if none.
func (g *CooldownGate) Remaining(now time.Time) time.Duration {
	if !g.InCooldown(now) {
		return 0
	}
	return g.duration - now.Sub(g.lastStop)
}
