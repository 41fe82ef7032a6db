package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talkback_active_sessions",
		Help: "Number of talkback sessions currently registered.",
	})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkback_sessions_started_total",
		Help: "Talkback sessions successfully started.",
	})

	sessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkback_sessions_rejected_total",
		Help: "Start requests rejected, by reason.",
	}, []string{"reason"})

	pcmBytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkback_pcm_bytes_in_total",
		Help: "Raw PCM bytes received from browser clients.",
	})

	datagramsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkback_datagrams_sent_total",
		Help: "Encoded audio datagrams sent to cameras.",
	})
)
