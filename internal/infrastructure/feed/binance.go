package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
	"github.com/vitos/crypto_breakout_bot/internal/metrics"
)

const DefaultWSURL = "wss://fstream.binance.com/ws"

// Config tunes the candle source.
type Config struct {
	Symbol         string
	Interval       string // kline interval, e.g. "1m"
	BackfillLimit  int    // recent candles fetched over REST before streaming
	QueueSize      int
	RequireClosed  bool // accept only finalized klines
	WSURL          string
	ReconnectDelay time.Duration
}

// BinanceSource maintains a live kline stream plus REST backfill and
// republishes accepted candles into a bounded queue. It owns only the
// queue write-end and its own connection state; a single consumer pulls
// via NextCandle. Candles pass a strictly-increasing-timestamp gate
// before they ever enter the queue.
type BinanceSource struct {
	cfg     Config
	rest    *futures.Client
	logger  *zap.Logger
	sink    domain.StatusSink
	timeNow func() time.Time

	queue        chan domain.Candle
	lastAccepted atomic.Int64 // open time (ms) of the last accepted candle
	lastFeed     atomic.Int64 // wall clock (ns) of the last accepted candle

	mu      sync.Mutex
	conn    *websocket.Conn
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	// producer-goroutine state
	suppressed   map[string]string // stage -> suppressed error text
	backpressure bool              // warn latch for sustained backlog
}

func NewBinanceSource(cfg Config, rest *futures.Client, sink domain.StatusSink, logger *zap.Logger) *BinanceSource {
	if cfg.WSURL == "" {
		cfg.WSURL = DefaultWSURL
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &BinanceSource{
		cfg:        cfg,
		rest:       rest,
		logger:     logger,
		sink:       sink,
		timeNow:    time.Now,
		queue:      make(chan domain.Candle, cfg.QueueSize),
		suppressed: make(map[string]string),
	}
}

// Start backfills recent history over REST, then opens the live stream.
// Backfill failure is transient: the source starts streaming anyway.
func (s *BinanceSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	if err := s.backfill(ctx); err != nil {
		s.logger.Warn("backfill failed, streaming without preloaded history", zap.Error(err))
	}

	s.wg.Add(1)
	go s.listen()
	return nil
}

func (s *BinanceSource) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Restart bounces the live connection; the read loop redials after the
// fixed reconnect delay. Called by the feed watchdog on staleness.
func (s *BinanceSource) Restart() {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}

// NextCandle pulls one candle, waiting up to timeout. A zero timeout
// polls without blocking.
func (s *BinanceSource) NextCandle(timeout time.Duration) (domain.Candle, bool) {
	if timeout <= 0 {
		select {
		case c := <-s.queue:
			metrics.QueueDepth.Set(float64(len(s.queue)))
			return c, true
		default:
			return domain.Candle{}, false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c := <-s.queue:
		metrics.QueueDepth.Set(float64(len(s.queue)))
		return c, true
	case <-t.C:
		return domain.Candle{}, false
	}
}

// LastCandleTime reports when the last candle was accepted, zero before
// the first one.
func (s *BinanceSource) LastCandleTime() time.Time {
	ns := s.lastFeed.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *BinanceSource) backfill(ctx context.Context) error {
	if s.rest == nil || s.cfg.BackfillLimit <= 0 {
		return nil
	}
	retry := &backoff.Backoff{Min: time.Second, Max: 10 * time.Second, Factor: 2, Jitter: true}
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		klines, err := s.rest.NewKlinesService().
			Symbol(s.cfg.Symbol).
			Interval(s.cfg.Interval).
			Limit(s.cfg.BackfillLimit).
			Do(ctx)
		if err == nil {
			now := s.timeNow().UnixMilli()
			accepted := 0
			for _, k := range klines {
				c, perr := candleFromKline(k, now)
				if perr != nil {
					continue
				}
				if s.cfg.RequireClosed && !c.Closed {
					continue
				}
				if s.offer(c) {
					accepted++
				}
			}
			s.logger.Info("backfill complete",
				zap.Int("requested", s.cfg.BackfillLimit),
				zap.Int("accepted", accepted))
			return nil
		}
		lastErr = err
		select {
		case <-time.After(retry.Duration()):
		case <-s.stop:
			return lastErr
		}
	}
	return lastErr
}

func (s *BinanceSource) listen() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.streamURL(), nil)
		if err != nil {
			s.logOnce("dial", err)
			metrics.Reconnects.Inc()
			if !s.sleep(s.cfg.ReconnectDelay) {
				return
			}
			continue
		}
		s.setConn(conn)
		s.recover("dial")
		s.logger.Info("kline stream connected", zap.String("url", s.streamURL()))

		s.readLoop(conn)

		s.setConn(nil)
		conn.Close()
		metrics.Reconnects.Inc()
		if !s.sleep(s.cfg.ReconnectDelay) {
			return
		}
	}
}

func (s *BinanceSource) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.logOnce("read", err)
			return
		}
		s.recover("read")
		s.handleMessage(msg)
	}
}

type klineEvent struct {
	Event string `json:"e"`
	Kline struct {
		Start  int64  `json:"t"`
		Open   string `json:"o"`
		High   string `json:"h"`
		Low    string `json:"l"`
		Close  string `json:"c"`
		Volume string `json:"v"`
		Closed bool   `json:"x"`
	} `json:"k"`
}

// handleMessage parses one stream message. Malformed messages are dropped
// and logged at most once per distinct error until recovery; they never
// reach the caller.
func (s *BinanceSource) handleMessage(data []byte) {
	var ev klineEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		metrics.ParseFailures.Inc()
		s.logOnce("parse", err)
		return
	}
	if ev.Event != "kline" {
		return // subscription acks, pings
	}

	c := domain.Candle{Time: ev.Kline.Start, Closed: ev.Kline.Closed, Origin: domain.OriginWS}
	var err error
	if c.Open, err = strconv.ParseFloat(ev.Kline.Open, 64); err == nil {
		if c.High, err = strconv.ParseFloat(ev.Kline.High, 64); err == nil {
			if c.Low, err = strconv.ParseFloat(ev.Kline.Low, 64); err == nil {
				if c.Close, err = strconv.ParseFloat(ev.Kline.Close, 64); err == nil {
					c.Volume, err = strconv.ParseFloat(ev.Kline.Volume, 64)
				}
			}
		}
	}
	if err != nil {
		metrics.ParseFailures.Inc()
		s.logOnce("parse", err)
		return
	}
	s.recover("parse")

	if s.cfg.RequireClosed && !c.Closed {
		return
	}
	s.offer(c)
}

// offer applies the dedupe/ordering gate, then enqueues without ever
// blocking: on a full queue the oldest pending candle is evicted and a
// backpressure warning fires once per sustained backlog.
func (s *BinanceSource) offer(c domain.Candle) bool {
	if last := s.lastAccepted.Load(); last != 0 && c.Time <= last {
		metrics.CandlesRejected.Inc()
		return false
	}
	s.lastAccepted.Store(c.Time)
	s.lastFeed.Store(s.timeNow().UnixNano())

	dropped := false
	for {
		select {
		case s.queue <- c:
			metrics.CandlesAccepted.Inc()
			metrics.QueueDepth.Set(float64(len(s.queue)))
			if !dropped {
				s.backpressure = false
			}
			return true
		default:
		}
		select {
		case <-s.queue:
			dropped = true
			metrics.QueueDrops.Inc()
			if !s.backpressure {
				s.backpressure = true
				s.logger.Warn("candle queue full, dropping oldest",
					zap.Int("capacity", s.cfg.QueueSize))
				s.sink.LogEvent("feed backpressure: candle queue full")
			}
		default:
			// consumer drained between selects, retry the push
		}
	}
}

func (s *BinanceSource) streamURL() string {
	return fmt.Sprintf("%s/%s@kline_%s", s.cfg.WSURL, strings.ToLower(s.cfg.Symbol), s.cfg.Interval)
}

func (s *BinanceSource) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *BinanceSource) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-s.stop:
		return false
	}
}

// logOnce suppresses repeats of the same error per stage until recover
// is seen for that stage.
func (s *BinanceSource) logOnce(stage string, err error) {
	if s.suppressed[stage] == err.Error() {
		return
	}
	s.suppressed[stage] = err.Error()
	s.logger.Warn("feed error, further repeats suppressed",
		zap.String("stage", stage), zap.Error(err))
}

func (s *BinanceSource) recover(stage string) {
	delete(s.suppressed, stage)
}

func candleFromKline(k *futures.Kline, nowMs int64) (domain.Candle, error) {
	c := domain.Candle{
		Time:   k.OpenTime,
		Closed: k.CloseTime <= nowMs,
		Origin: domain.OriginPreload,
	}
	var err error
	if c.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return c, err
	}
	if c.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return c, err
	}
	if c.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return c, err
	}
	if c.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return c, err
	}
	c.Volume, err = strconv.ParseFloat(k.Volume, 64)
	return c, err
}
