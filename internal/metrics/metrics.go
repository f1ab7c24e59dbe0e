// Package metrics exposes the bot's Prometheus instrumentation. All
// collectors are registered on the default registry; cmd/bot serves them
// via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CandlesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breakout_bot",
		Name:      "candles_accepted_total",
		Help:      "Candles accepted into the processing queue.",
	})
	CandlesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breakout_bot",
		Name:      "candles_rejected_total",
		Help:      "Candles dropped by the dedupe/ordering gate.",
	})
	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breakout_bot",
		Name:      "feed_parse_failures_total",
		Help:      "Malformed feed messages dropped.",
	})
	QueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breakout_bot",
		Name:      "queue_drops_total",
		Help:      "Oldest pending candles evicted by queue backpressure.",
	})
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breakout_bot",
		Name:      "feed_reconnects_total",
		Help:      "Websocket reconnect attempts.",
	})
	TradesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breakout_bot",
		Name:      "trades_opened_total",
		Help:      "Positions opened.",
	})
	TradesClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breakout_bot",
		Name:      "trades_closed_total",
		Help:      "Full and partial position closes.",
	})
	Capital = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "breakout_bot",
		Name:      "capital",
		Help:      "Current simulated/available capital.",
	})
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "breakout_bot",
		Name:      "queue_depth",
		Help:      "Candles waiting in the processing queue.",
	})
)
