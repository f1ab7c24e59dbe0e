package logger

import (
	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// LogSink surfaces operator notifications through zap so a headless
// deployment still sees every pause, resume, rejection and trade.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) LogEvent(message string) {
	s.log.Info("event", zap.String("message", message))
}

func (s *LogSink) UpdateCapital(capital float64) {
	s.log.Info("capital", zap.Float64("value", capital))
}

func (s *LogSink) UpdateLastTrade(rec *domain.TradeRecord) {
	s.log.Info("trade",
		zap.String("side", string(rec.Side)),
		zap.String("reason", string(rec.Reason)),
		zap.Float64("entry", rec.EntryPrice),
		zap.Float64("exit", rec.ExitPrice),
		zap.Float64("pnl", rec.PnL))
}

func (s *LogSink) UpdateFeedStatus(ok bool, reason string) {
	if ok {
		s.log.Info("feed up")
		return
	}
	s.log.Warn("feed down", zap.String("reason", reason))
}

func (s *LogSink) UpdateApiStatus(ok bool, reason string) {
	if ok {
		return
	}
	s.log.Warn("exchange api degraded", zap.String("reason", reason))
}
