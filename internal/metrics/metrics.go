package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quizroom_rooms_active",
		Help: "Rooms currently alive in the registry",
	})

	PlayersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quizroom_players_connected",
		Help: "Connections currently joined to a room",
	})

	RoundsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizroom_rounds_closed_total",
			Help: "Question rounds closed, by trigger",
		},
		[]string{"reason"},
	)

	RoomAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizroom_room_answers_total",
			Help: "Answers submitted in rooms, by outcome",
		},
		[]string{"outcome"},
	)

	QuizzesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quizroom_quizzes_created_total",
		Help: "Quiz documents persisted after generation",
	})

	GenerationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quizroom_generation_failures_total",
		Help: "Generation requests aborted by the question generator",
	})

	PracticeSets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quizroom_practice_sets_total",
		Help: "Practice question sets generated without persisting",
	})

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		RoomsActive,
		PlayersConnected,
		RoundsClosed,
		RoomAnswers,
		QuizzesCreated,
		GenerationFailures,
		PracticeSets,
		RequestCounter,
		RequestDuration,
	)
}
