package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker reports daemon liveness: last tick time, current session tag
// and recent errors.
type HealthChecker struct {
	mu        sync.RWMutex
	startedAt time.Time
	lastTick  time.Time
	session   string
	errors    []string
}

// HealthStatus is the JSON body served on the health endpoint.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Session   string    `json:"session"`
	LastTick  time.Time `json:"last_tick"`
	Uptime    string    `json:"uptime"`
	Errors    []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a health checker anchored at start time.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startedAt: time.Now()}
}

// SetTick records a completed scheduler tick and its session.
func (h *HealthChecker) SetTick(session string) {
	h.mu.Lock()
	h.lastTick = time.Now()
	h.session = session
	h.mu.Unlock()
}

// AddError records a recent error, keeping the last ten.
func (h *HealthChecker) AddError(msg string) {
	h.mu.Lock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
	h.mu.Unlock()
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.lastTick.IsZero() && time.Since(h.lastTick) > 5*time.Minute {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	body := HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Session:   h.session,
		LastTick:  h.lastTick,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Errors:    h.errors,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
