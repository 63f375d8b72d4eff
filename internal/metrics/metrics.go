package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callvideo_active_sessions",
		Help: "Number of sessions currently joined to a channel",
	})
)

// Counters
var (
	TokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callvideo_tokens_issued_total",
		Help: "Total credentials issued by the token service",
	})
	TokensRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callvideo_tokens_rejected_total",
		Help: "Token requests rejected by reason",
	}, []string{"reason"})
	JoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callvideo_joins_total",
		Help: "Channel join attempts by outcome",
	}, []string{"outcome"})
	RenewalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callvideo_renewals_total",
		Help: "Credential renewals by outcome",
	}, []string{"outcome"})
	UIDConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callvideo_uid_conflicts_total",
		Help: "Joins rejected because the uid was already taken",
	})
	LeavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callvideo_leaves_total",
		Help: "Completed session teardowns",
	})
)

// Histograms
var (
	TokenIssueLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callvideo_token_issue_duration_ms",
		Help:    "Token issuance duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)
