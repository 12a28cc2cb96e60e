package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Оценки карточек по режиму и качеству ответа
	ratingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordsrs_ratings_total",
			Help: "Total number of card ratings",
		},
		[]string{"mode", "quality"},
	)

	// Сброс буфера записей: успешно / с ошибкой
	flushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordsrs_buffer_flushes_total",
			Help: "Total number of review buffer flush attempts",
		},
		[]string{"status"},
	)

	flushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wordsrs_buffer_flush_duration_seconds",
			Help:    "Review buffer flush duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	pendingReviews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wordsrs_buffered_reviews",
			Help: "Number of review logs waiting in session buffers",
		},
	)

	quizAnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordsrs_quiz_answers_total",
			Help: "Total number of quiz answers",
		},
		[]string{"correct"},
	)

	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordsrs_sessions_total",
			Help: "Total number of started session phases",
		},
		[]string{"phase"},
	)

	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordsrs_reminders_total",
			Help: "Total number of due-card reminders",
		},
		[]string{"status"},
	)

	// HTTP-запросы к API
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordsrs_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wordsrs_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRating counts one applied rating
func RecordRating(mode string, quality int) {
	ratingsTotal.WithLabelValues(mode, strconv.Itoa(quality)).Inc()
}

// RecordFlush counts one flush attempt and how long it took
func RecordFlush(err error, took time.Duration) {
	flushesTotal.WithLabelValues(status(err)).Inc()
	flushDuration.Observe(took.Seconds())
}

// AddPendingReviews moves the buffered review gauge by delta
func AddPendingReviews(delta int) {
	pendingReviews.Add(float64(delta))
}

// RecordQuizAnswer counts one quiz answer
func RecordQuizAnswer(correct bool) {
	quizAnswersTotal.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

// RecordPhaseStart counts one started session phase
func RecordPhaseStart(phase string) {
	sessionsTotal.WithLabelValues(phase).Inc()
}

// RecordReminder counts one reminder attempt
func RecordReminder(err error) {
	remindersTotal.WithLabelValues(status(err)).Inc()
}

// RecordHTTPRequest counts one served HTTP request
func RecordHTTPRequest(method, endpoint string, code int, took time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(took.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
