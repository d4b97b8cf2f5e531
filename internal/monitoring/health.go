package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports liveness of the data feed and trading loop.
type HealthChecker struct {
	mu          sync.RWMutex
	lastTick    time.Time
	lastPremium float64
	isConnected bool
	errors      []string
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastTick    time.Time `json:"last_tick"`
	LastPremium float64   `json:"last_premium"`
	IsConnected bool      `json:"is_connected"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetConnected records data feed connectivity.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// RecordTick notes a fresh market data tick.
func (h *HealthChecker) RecordTick(premium float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTick = time.Now()
	h.lastPremium = premium
}

// RecordError appends an error to the health report, keeping the last 10.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

// ClearErrors resets the error list, typically on recovery.
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.isConnected || time.Since(h.lastTick) > 5*time.Minute {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastTick:    h.lastTick,
		LastPremium: h.lastPremium,
		IsConnected: h.isConnected,
		Uptime:      time.Since(startTime).String(),
		Errors:      h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// Serve mounts the health and metrics endpoints and blocks.
func Serve(addr string, health *HealthChecker) error {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health)
	mux.Handle("/metrics", NewMetricsHandler())
	return http.ListenAndServe(addr, mux)
}
