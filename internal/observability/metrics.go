package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch", Name: "match_attempts_total",
		Help: "Matching invocations, including retries"})
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch", Name: "matches_total",
		Help: "Attempts that produced an assignment and offer"})
	MatchExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch", Name: "match_exhausted_total",
		Help: "Attempts that ended in exhaustion (radius and retries spent)"})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dispatch", Name: "match_latency_seconds",
		Help: "Latency of a single matching invocation"})

	OfferOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "offer_outcomes_total",
			Help: "Terminal offer transitions by outcome"},
		[]string{"outcome"},
	)
	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "cancellations_total",
			Help: "Committed ride cancellations by actor"},
		[]string{"cancelled_by"},
	)
	CooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch", Name: "captain_cooldowns_total",
		Help: "Cooldowns imposed on captains"})
)
