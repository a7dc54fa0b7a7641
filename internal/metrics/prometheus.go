package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DecisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendbot_decision_duration_seconds",
			Help:    "End-to-end decision cycle duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendbot_decisions_total",
			Help: "Decisions made, by tier and action",
		},
		[]string{"tier", "action"},
	)

	SimilarMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendbot_similar_matches",
			Help:    "Semantically similar past messages counted per decision",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 7, 10},
		},
	)

	TicketsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendbot_tickets_opened_total",
			Help: "Escalation tickets opened, by issue type",
		},
		[]string{"issue_type"},
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendbot_messages_total",
			Help: "Incoming messages processed, by outcome status",
		},
		[]string{"status"},
	)

	RemindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "attendbot_reminders_sent_total",
			Help: "Check-in prompts sent by the reminder job",
		},
	)
)

func Init() {
	prometheus.MustRegister(DecisionDuration)
	prometheus.MustRegister(DecisionsTotal)
	prometheus.MustRegister(SimilarMatches)
	prometheus.MustRegister(TicketsOpened)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(RemindersSent)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
