package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomePassed    = "passed"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
	OutcomeAbandoned = "abandoned"
)

var (
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
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	ExamSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_exam_submissions_total",
			Help: "Persisted skill verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	ExamGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_exam_generations_total",
			Help: "Question set generations by provider and result",
		},
		[]string{"provider", "result"},
	)

	ExamGenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skill_exam_generation_duration_seconds",
			Help:    "Latency of question set generation",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60},
		},
	)

	ProctorEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctor_events_total",
			Help: "Integrity signals received from exam sessions",
		},
		[]string{"kind"},
	)
)

// Init registers every collector with the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		ExamSubmissions,
		ExamGenerations,
		ExamGenerationDuration,
		ProctorEvents,
	)
}

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
