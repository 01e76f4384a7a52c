// Package health probes the upstream services the XID depends on and
// reports whether they are reachable.
package health

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Target is one upstream to probe. URL is the service base URL; the probe
// hits <URL>/healthz.
type Target struct {
	Name string
	URL  string
}

// TargetStatus is the last known state of a Target.
type TargetStatus struct {
	Name        string    `json:"name"`
	Healthy     bool      `json:"healthy"`
	FailCount   int       `json:"fail_count"`
	LastChecked time.Time `json:"last_checked,omitempty"`
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(target string, success bool)

// HealthChecker runs periodic probes against a fixed set of targets.
type HealthChecker struct {
	targets    []Target
	httpClient *http.Client
	mu         sync.Mutex
	status     map[string]*TargetStatus
	cfg        Config
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a HealthChecker. Targets start out healthy until they fail
// FailThreshold probes in a row.
func New(targets []Target, cfg Config, logger *zap.Logger) *HealthChecker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	status := make(map[string]*TargetStatus, len(targets))
	for _, t := range targets {
		status[t.Name] = &TargetStatus{Name: t.Name, Healthy: true}
	}
	return &HealthChecker{
		targets:    targets,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		status:     status,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *HealthChecker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the check loop until ctx is cancelled.
func (h *HealthChecker) Start(ctx context.Context) {
	if len(h.targets) == 0 {
		return
	}
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll probes every target concurrently and waits for all results.
func (h *HealthChecker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range h.targets {
		wg.Add(1)
		go func(target Target) {
			defer wg.Done()
			h.record(target, h.probe(ctx, target.URL))
		}(t)
	}
	wg.Wait()
}

func (h *HealthChecker) record(target Target, success bool) {
	if h.onMetrics != nil {
		h.onMetrics(target.Name, success)
	}

	h.mu.Lock()
	st := h.status[target.Name]
	wasHealthy := st.Healthy
	if success {
		st.FailCount = 0
		st.Healthy = true
	} else {
		st.FailCount++
		if st.FailCount >= h.cfg.FailThreshold {
			st.Healthy = false
		}
	}
	st.LastChecked = time.Now().UTC()
	healthy, count := st.Healthy, st.FailCount
	h.mu.Unlock()

	switch {
	case healthy && !wasHealthy:
		h.logger.Info("health: upstream recovered", zap.String("target", target.Name))
	case !healthy && wasHealthy:
		h.logger.Warn("health: upstream degraded",
			zap.String("target", target.Name),
			zap.Int("fail_count", count),
		)
	}
}

// probe returns true on any 2xx from <base>/healthz.
func (h *HealthChecker) probe(ctx context.Context, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Status returns a copy of every target's state, sorted by name.
func (h *HealthChecker) Status() []TargetStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TargetStatus, 0, len(h.status))
	for _, st := range h.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ready reports whether every target is healthy.
func (h *HealthChecker) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, st := range h.status {
		if !st.Healthy {
			return false
		}
	}
	return true
}
