package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "hivesim"
)

var (
	Debug                bool
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	suitesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "suites_total",
		Help:      "Count of suites run or skipped",
	}, []string{
		"run_id",
		"suite",
		"status",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of test results",
	}, []string{
		"run_id",
		"suite",
		"result",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of test bodies",
		Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
	}, []string{
		"run_id",
		"suite",
	})

	clientsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "clients_started_total",
		Help:      "Count of client containers started",
	}, []string{
		"client",
	})

	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "api_requests_total",
		Help:      "Count of simulation API requests",
	}, []string{
		"operation",
		"outcome",
	})

	apiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "api_retries_total",
		Help:      "Count of retried simulation API requests",
	}, []string{
		"operation",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

// RecordError counts an error under the given label.
func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordSuite counts a suite that was either run ("run") or skipped by the test
// pattern ("skip").
func RecordSuite(runID string, suite string, status string) {
	suitesTotal.WithLabelValues(runID, suite, status).Inc()
}

// RecordTest counts a finished test by result and observes its duration.
func RecordTest(runID string, suite string, pass bool, duration time.Duration) {
	result := "fail"
	if pass {
		result = "pass"
	}
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"run_id", runID,
			"suite", suite,
			"result", result)
	}
	testsTotal.WithLabelValues(runID, suite, result).Inc()
	testDuration.WithLabelValues(runID, suite).Observe(duration.Seconds())
}

// RecordClientStarted counts a client container started through the simulation API.
func RecordClientStarted(clientType string) {
	clientsStarted.WithLabelValues(clientType).Inc()
}

// RecordAPIRequest counts a finished simulation API call. A nil error is recorded
// as outcome "ok".
func RecordAPIRequest(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	apiRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAPIRetry counts a retry of a simulation API call after a transient failure.
func RecordAPIRetry(operation string) {
	apiRetriesTotal.WithLabelValues(operation).Inc()
}
