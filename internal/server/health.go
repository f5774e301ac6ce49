package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/region23/testdrive/pkg/metrics"
)

const (
	statusHealthy   = "healthy"
	statusWarning   = "warning"
	statusUnhealthy = "unhealthy"
)

// Pinger проверка доступности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse тело ответа GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks"`
	Runtime   RuntimeStats      `json:"runtime"`
}

// RuntimeStats снимок рантайма на момент проверки
type RuntimeStats struct {
	AllocBytes    uint64  `json:"alloc_bytes"`
	SysBytes      uint64  `json:"sys_bytes"`
	NumGC         uint32  `json:"num_gc"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"go_version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HealthChecker проверяет состояние системы
type HealthChecker struct {
	db        Pinger
	startTime time.Time
	version   string
}

// NewHealthChecker создает новый health checker
func NewHealthChecker(db Pinger, version string) *HealthChecker {
	return &HealthChecker{
		db:        db,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthHandler GET /health: 503, если база недоступна
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overall := statusHealthy

	if err := h.checkDatabase(ctx); err != nil {
		checks["database"] = statusUnhealthy + ": " + err.Error()
		overall = statusUnhealthy
	} else {
		checks["database"] = statusHealthy
	}

	stats := h.snapshot()
	for name, status := range map[string]string{
		"memory":     checkMemory(stats.AllocBytes),
		"goroutines": checkGoroutines(stats.Goroutines),
	} {
		checks[name] = status
		if status != statusHealthy && overall == statusHealthy {
			overall = statusWarning
		}
	}

	response := HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
		Runtime:   stats,
	}

	w.Header().Set("Content-Type", "application/json")
	if overall == statusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}
	return h.db.Ping(ctx)
}

func (h *HealthChecker) snapshot() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := RuntimeStats{
		AllocBytes:    m.Alloc,
		SysBytes:      m.Sys,
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	metrics.MemoryUsage.Set(float64(stats.AllocBytes))
	metrics.GoroutinesCount.Set(float64(stats.Goroutines))

	return stats
}

// checkMemory больше 500MB предупреждение, больше 1GB критично
func checkMemory(alloc uint64) string {
	const (
		warningLimit  = 500 << 20
		criticalLimit = 1 << 30
	)

	switch {
	case alloc > criticalLimit:
		return "critical: memory usage > 1GB"
	case alloc > warningLimit:
		return "warning: memory usage > 500MB"
	}
	return statusHealthy
}

func checkGoroutines(count int) string {
	switch {
	case count > 1000:
		return "critical: too many goroutines"
	case count > 100:
		return "warning: high goroutine count"
	}
	return statusHealthy
}
