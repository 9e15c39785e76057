package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_comb_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_comb_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)
	itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_comb_items_total",
			Help: "Collected item outcomes by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	fetchAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_comb_fetch_attempts",
			Help:    "Fetch attempts needed per item.",
			Buckets: []float64{1, 2, 3, 5, 8},
		},
		[]string{"source"},
	)
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_comb_tasks_total",
			Help: "Collection tasks that reached a terminal status.",
		},
		[]string{"status"},
	)
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_comb_job_duration_seconds",
			Help:    "Background job durations by type and result.",
			Buckets: []float64{1, 5, 15, 60, 300, 900},
		},
		[]string{"type", "result"},
	)
	ruleWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_comb_rule_warnings_total",
			Help: "Rule conditions or actions skipped with a warning.",
		},
	)
	recordsEditedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_comb_records_edited_total",
			Help: "Records changed by batch edits.",
		},
	)
	publishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_comb_published_total",
			Help: "Records published to the catalog.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(itemsTotal)
	prometheus.MustRegister(fetchAttempts)
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(ruleWarningsTotal)
	prometheus.MustRegister(recordsEditedTotal)
	prometheus.MustRegister(publishedTotal)
}

func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func RecordItem(sourceID, outcome string, attempts int) {
	itemsTotal.WithLabelValues(sourceID, outcome).Inc()
	if attempts > 0 {
		fetchAttempts.WithLabelValues(sourceID).Observe(float64(attempts))
	}
}

func RecordTaskFinished(status string) {
	tasksTotal.WithLabelValues(status).Inc()
}

func RecordRuleWarnings(n int) {
	if n > 0 {
		ruleWarningsTotal.Add(float64(n))
	}
}

func RecordEdited(n int) {
	if n > 0 {
		recordsEditedTotal.Add(float64(n))
	}
}

func RecordPublished(n int) {
	if n > 0 {
		publishedTotal.Add(float64(n))
	}
}

// JobObserver feeds background job results into the job duration histogram.
type JobObserver struct{}

func (JobObserver) ObserveJob(taskType string, duration float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	jobDuration.WithLabelValues(taskType, result).Observe(duration)
}

func classifyStatus(statusCode int) string {
	if statusCode < 100 || statusCode >= 600 {
		return "unknown"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
