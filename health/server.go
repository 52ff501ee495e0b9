// Package health implements the HTTP health/readiness/liveness and
// Prometheus metrics surface, adapted from the teacher's health.go:
// the same four endpoints and promauto-registered counters/gauges, now
// reporting on pipeline run outcomes instead of a single ledger-sequence
// transformer cycle.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/withobsrvr/medallion-foundry/logging"
)

var logger = logging.New("health")

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medallion_pipeline_runs_total",
		Help: "Total number of pipeline runs by outcome",
	}, []string{"pipeline", "layer", "outcome"})

	rowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medallion_pipeline_rows_written_total",
		Help: "Total rows written per pipeline and layer",
	}, []string{"pipeline", "layer"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medallion_pipeline_run_duration_seconds",
		Help:    "Duration of pipeline runs",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"pipeline"})

	lastRunTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "medallion_pipeline_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last completed run per pipeline",
	}, []string{"pipeline"})

	circuitBreakerState = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medallion_circuit_breaker_state_total",
		Help: "Count of circuit breaker state transitions by component/key/state",
	}, []string{"component", "breaker_key", "state"})
)

// RecordBreakerState backs the resilience.StateChangeHook that the
// pipeline package installs (the hook passes the state's String() form):
// it counts one transition per (component, breaker_key, state) so an operator can alert
// on a breaker flapping open, per spec.md 4.1's observability hook.
func RecordBreakerState(component, breakerKey, state string) {
	circuitBreakerState.WithLabelValues(component, breakerKey, state).Inc()
	logger.Warn().Str("component", component).Str("breaker_key", breakerKey).Str("state", state).Msg("circuit breaker state change")
}

// RecordRun updates the Prometheus series for one completed pipeline run.
// The CLI calls this once per Runner.Run invocation; it is independent of
// the run's own structured result so CLI output and metrics never drift.
func RecordRun(pipelineName string, bronzeOK, silverOK bool, bronzeRows, silverRows int, elapsedSeconds float64, runAt time.Time) {
	outcome := func(ok bool) string {
		if ok {
			return "success"
		}
		return "failure"
	}
	runsTotal.WithLabelValues(pipelineName, "bronze", outcome(bronzeOK)).Inc()
	runsTotal.WithLabelValues(pipelineName, "silver", outcome(silverOK)).Inc()
	rowsWritten.WithLabelValues(pipelineName, "bronze").Add(float64(bronzeRows))
	rowsWritten.WithLabelValues(pipelineName, "silver").Add(float64(silverRows))
	runDuration.WithLabelValues(pipelineName).Observe(elapsedSeconds)
	lastRunTimestamp.WithLabelValues(pipelineName).Set(float64(runAt.Unix()))
}

// Status is a point-in-time snapshot the CLI's long-running --serve mode
// exposes over /health, kept updated by RecordRunStatus.
type Status struct {
	mu         sync.RWMutex
	lastRun    map[string]runSnapshot
}

type runSnapshot struct {
	Success bool      `json:"success"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

func NewStatus() *Status {
	return &Status{lastRun: make(map[string]runSnapshot)}
}

func (s *Status) RecordRunStatus(pipelineName string, success bool, at time.Time, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[pipelineName] = runSnapshot{Success: success, At: at, Error: errMsg}
}

func (s *Status) snapshot() map[string]runSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]runSnapshot, len(s.lastRun))
	for k, v := range s.lastRun {
		out[k] = v
	}
	return out
}

// Server serves /health, /ready, /live, and /metrics for a long-running
// `--serve` invocation, mirroring the teacher's HealthServer.
type Server struct {
	status    *Status
	port      string
	startTime time.Time
}

func NewServer(status *Status, port string) *Server {
	return &Server{status: status, port: port, startTime: time.Now()}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/live", s.handleLive)
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + s.port
	logger.Info().Str("addr", addr).Msg("health server listening")
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "healthy",
		"service":        "medallion-foundry",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"pipelines":      s.status.snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}
