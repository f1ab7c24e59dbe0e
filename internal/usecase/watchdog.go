package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// FeedController is the slice of the candle source the watchdog drives.
type FeedController interface {
	Restart()
	LastCandleTime() time.Time
}

// FeedWatchdog periodically checks feed liveness. On staleness it bounces
// the candle source and pauses the engine with PauseFeed; on recovery it
// resumes only a feed-initiated pause. It never touches the candle window
// or the position.
type FeedWatchdog struct {
	feed       FeedController
	state      *EngineState
	sink       domain.StatusSink
	logger     *zap.Logger
	interval   time.Duration
	staleAfter time.Duration
	timeNow    func() time.Time

	down bool // staleness latch, keeps repeated checks from re-logging

	stop chan struct{}
	done chan struct{}
}

func NewFeedWatchdog(feed FeedController, state *EngineState, sink domain.StatusSink, logger *zap.Logger, interval, staleAfter time.Duration) *FeedWatchdog {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &FeedWatchdog{
		feed:       feed,
		state:      state,
		sink:       sink,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		timeNow:    time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (w *FeedWatchdog) Start() {
	go w.run()
}

func (w *FeedWatchdog) Stop() {
	close(w.stop)
	select {
	case <-w.done:
	case <-time.After(time.Second):
	}
}

func (w *FeedWatchdog) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.Check(w.timeNow())
		case <-w.stop:
			return
		}
	}
}

// Check runs one liveness evaluation. Exported so tests can drive it with
// a controlled clock.
func (w *FeedWatchdog) Check(now time.Time) {
	last := w.feed.LastCandleTime()
	if last.IsZero() {
		return // nothing received yet, startup handling covers this
	}

	if now.Sub(last) > w.staleAfter {
		if !w.down {
			w.down = true
			reason := fmt.Sprintf("no feed data for %s", now.Sub(last).Round(time.Second))
			w.logger.Warn("feed stale, restarting candle source", zap.String("reason", reason))
			w.sink.UpdateFeedStatus(false, reason)
			if w.state.Pause(domain.PauseFeed) {
				w.sink.LogEvent("engine paused: " + reason)
			}
		}
		w.feed.Restart()
		return
	}

	if w.down {
		w.down = false
		w.logger.Info("feed recovered")
		w.sink.UpdateFeedStatus(true, "")
		// never overrides a risk or manual pause
		if w.state.Resume(domain.PauseFeed) {
			w.sink.LogEvent("engine resumed: feed recovered")
		}
	}
}
