package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/onboarding-gateway/internal/pkg/httputil"
)

// Prober checks the ingestion backend. supported is false when the
// backend has no probe.
type Prober interface {
	Probe(ctx context.Context) (supported bool, err error)
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker serves the liveness and readiness probes.
type HealthChecker struct {
	ingestion    Prober
	probeTimeout time.Duration
	startTime    time.Time
}

// NewHealthChecker creates a new HealthChecker. A nil prober reports
// "not_configured".
func NewHealthChecker(ingestion Prober) *HealthChecker {
	return &HealthChecker{
		ingestion:    ingestion,
		probeTimeout: 2 * time.Second,
		startTime:    time.Now(),
	}
}

// HandleLiveness always returns 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 200 only when the ingestion backend answers.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	check := hc.checkIngestion(r.Context())

	ready := check.Status != "down"
	status := http.StatusOK
	overall := "healthy"
	if !ready {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": map[string]ComponentCheck{"ingestion": check},
	})
}

func (hc *HealthChecker) checkIngestion(ctx context.Context) ComponentCheck {
	if hc.ingestion == nil {
		return ComponentCheck{Status: "not_configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, hc.probeTimeout)
	defer cancel()

	start := time.Now()
	supported, err := hc.ingestion.Probe(ctx)
	latency := time.Since(start)

	switch {
	case !supported:
		return ComponentCheck{Status: "not_configured"}
	case err != nil:
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Latency: latency.String()}
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, int(d.Seconds())%60)
}
