package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"provider", "operation"},
	)

	GateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_transitions_total",
			Help: "Verification gate transitions by target stage and outcome",
		},
		[]string{"stage", "outcome"},
	)
	OTPEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_otp_events_total",
			Help: "One-time code lifecycle events",
		},
		[]string{"event"},
	)
	SessionsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_sessions_swept_total",
			Help: "Expired verification sessions physically removed by the sweeper",
		},
	)

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Answer submissions by interview type and outcome",
		},
		[]string{"interview_type", "outcome"},
	)
	ScorePercentageHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "submission_score_percentage",
			Help:    "Distribution of scored percentages",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"interview_type"},
	)
	FeedbackSourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_source_total",
			Help: "Feedback produced by source, with the fallback reason when rules were used",
		},
		[]string{"source", "reason"},
	)
	ResultEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_events_total",
			Help: "Result events published downstream by outcome",
		},
		[]string{"outcome"},
	)
	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Token bucket decisions by bucket and outcome",
		},
		[]string{"bucket", "outcome"},
	)
)

var registerOnce sync.Once

// InitMetrics registers every collector with the default registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			GateTransitionsTotal,
			OTPEventsTotal,
			SessionsSweptTotal,
			SubmissionsTotal,
			ScorePercentageHistogram,
			FeedbackSourceTotal,
			ResultEventsTotal,
			RateLimitDecisionsTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveAIRequest records one generator call.
func ObserveAIRequest(provider, operation, outcome string, d time.Duration) {
	AIRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	AIRequestDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// RecordGateTransition counts an attempted stage change.
func RecordGateTransition(stage, outcome string) {
	GateTransitionsTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordOTPEvent counts issued, resent, verified, mismatch, expired, exhausted and throttled codes.
func RecordOTPEvent(event string) {
	OTPEventsTotal.WithLabelValues(event).Inc()
}

// RecordSessionsSwept adds n to the sweep counter.
func RecordSessionsSwept(n int) {
	if n > 0 {
		SessionsSweptTotal.Add(float64(n))
	}
}

// ObserveSubmission records a completed or failed submission.
func ObserveSubmission(interviewType, outcome string, percentage int) {
	SubmissionsTotal.WithLabelValues(interviewType, outcome).Inc()
	if outcome == "completed" && percentage >= 0 && percentage <= 100 {
		ScorePercentageHistogram.WithLabelValues(interviewType).Observe(float64(percentage))
	}
}

// RecordFeedbackSource counts which producer wrote the feedback. reason is
// empty for generated feedback.
func RecordFeedbackSource(source, reason string) {
	FeedbackSourceTotal.WithLabelValues(source, reason).Inc()
}

// RecordResultEvent counts a publish attempt.
func RecordResultEvent(outcome string) {
	ResultEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimit counts an allowed or denied bucket decision.
func RecordRateLimit(bucket string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	RateLimitDecisionsTotal.WithLabelValues(bucket, outcome).Inc()
}
