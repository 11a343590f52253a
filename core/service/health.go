package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"aegis/core/models"

	"golang.org/x/sync/errgroup"
)

// ServiceEndpoint describes how to reach a critical service on the network.
// When HTTPPath is set the probe performs an HTTP GET; otherwise it opens a
// plain TCP connection. Container names the process to restart when the
// service is unreachable.
type ServiceEndpoint struct {
	Name      string
	Host      string
	Port      int
	HTTPPath  string
	Container string
}

// Addr returns the host:port dial address of the endpoint.
func (e ServiceEndpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// URL returns the HTTP probe URL of the endpoint.
func (e ServiceEndpoint) URL() string {
	return fmt.Sprintf("http://%s:%d%s", e.Host, e.Port, e.HTTPPath)
}

// ProbeConfig holds the component lists and thresholds the health engine
// works from.
type ProbeConfig struct {
	Containers    []string                   // container names to probe
	Services      []string                   // critical service names to probe
	Endpoints     map[string]ServiceEndpoint // static service resolution table
	CriticalFiles []string                   // files that must exist and be readable

	CPUThreshold      float64       // container CPU %, degraded above this
	DiskCriticalPct   float64       // disk usage %, critical above this
	DiskDegradedPct   float64       // disk usage %, degraded above this
	MemoryLowWater    uint64        // bytes; degraded when available memory drops below
	ProbeTimeout      time.Duration // deadline per probe
	ProbeConcurrency  int           // bounded worker pool size
	ResourceComponent string        // component name for the resource probe
}

// HealthService runs the health-check engine: one probe per configured
// container and service, plus a resource probe and a filesystem probe.
// Probes are independent and run concurrently; a probe that cannot complete
// its own diagnostic degrades to a critical result instead of failing the
// batch.
type HealthService struct {
	system SystemController
	cfg    ProbeConfig

	mu          sync.RWMutex
	lastSummary models.HealthSummary
	lastChecked time.Time
}

// NewHealthService creates a health service with defaults filled in for
// unset thresholds.
func NewHealthService(system SystemController, cfg ProbeConfig) *HealthService {
	if cfg.CPUThreshold <= 0 {
		cfg.CPUThreshold = 80.0
	}
	if cfg.DiskCriticalPct <= 0 {
		cfg.DiskCriticalPct = 90.0
	}
	if cfg.DiskDegradedPct <= 0 {
		cfg.DiskDegradedPct = 80.0
	}
	if cfg.MemoryLowWater == 0 {
		cfg.MemoryLowWater = 500 * 1024 * 1024
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.ProbeConcurrency <= 0 {
		cfg.ProbeConcurrency = 8
	}
	if cfg.ResourceComponent == "" {
		cfg.ResourceComponent = "resources"
	}
	return &HealthService{system: system, cfg: cfg}
}

// PerformHealthCheck probes every configured component and returns one
// result per component in a fixed order: containers, services, resources,
// filesystem. Results are collected by index, so the order is stable
// regardless of probe completion order.
func (s *HealthService) PerformHealthCheck(ctx context.Context) []models.HealthCheckResult {
	total := len(s.cfg.Containers) + len(s.cfg.Services) + 2
	results := make([]models.HealthCheckResult, total)

	var g errgroup.Group
	g.SetLimit(s.cfg.ProbeConcurrency)

	idx := 0
	for _, name := range s.cfg.Containers {
		i, name := idx, name
		g.Go(func() error {
			results[i] = s.checkContainer(ctx, name)
			return nil
		})
		idx++
	}
	for _, name := range s.cfg.Services {
		i, name := idx, name
		g.Go(func() error {
			results[i] = s.checkService(ctx, name)
			return nil
		})
		idx++
	}
	resourceIdx, fsIdx := idx, idx+1
	g.Go(func() error {
		results[resourceIdx] = s.checkResources(ctx)
		return nil
	})
	g.Go(func() error {
		results[fsIdx] = s.checkFilesystem(ctx)
		return nil
	})

	// Probe closures never return errors; failures are captured as results.
	_ = g.Wait()

	summary := models.Summarize(results)
	s.mu.Lock()
	s.lastSummary = summary
	s.lastChecked = time.Now()
	s.mu.Unlock()

	if summary.Degraded > 0 || summary.Critical > 0 {
		log.Printf("Health check: %d healthy, %d degraded, %d critical",
			summary.Healthy, summary.Degraded, summary.Critical)
	}

	return results
}

// LastSummary returns the severity tally of the most recent health check.
// The boolean is false when no check has run yet.
func (s *HealthService) LastSummary() (models.HealthSummary, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSummary, s.lastChecked, !s.lastChecked.IsZero()
}

// Endpoint resolves a service name against the static endpoint table.
func (s *HealthService) Endpoint(name string) (ServiceEndpoint, bool) {
	ep, ok := s.cfg.Endpoints[name]
	return ep, ok
}

// newResult starts a healthy result for the component.
func newResult(component string) models.HealthCheckResult {
	return models.HealthCheckResult{
		Component:   component,
		Status:      models.StatusHealthy,
		Issues:      []string{},
		AutoFixable: true,
		Fixes:       []models.FixKind{},
		Timestamp:   time.Now(),
	}
}

// addIssue records an issue, escalates the result to at least severity,
// and appends the suggested fixes, if any.
func addIssue(r *models.HealthCheckResult, severity models.HealthStatus, issue string, fixes ...models.FixKind) {
	r.Status = r.Status.Escalate(severity)
	r.Issues = append(r.Issues, issue)
	r.Fixes = append(r.Fixes, fixes...)
}

// finalize clears the auto-fixable flag on unhealthy results that carry no
// fix: there is nothing the executor could attempt for them.
func finalize(r *models.HealthCheckResult) models.HealthCheckResult {
	if r.Unhealthy() && len(r.Fixes) == 0 {
		r.AutoFixable = false
	}
	return *r
}

// checkContainer probes run-state, runtime health annotation and CPU
// utilization of a single container.
func (s *HealthService) checkContainer(ctx context.Context, name string) models.HealthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	result := newResult(name)

	state, err := s.system.ContainerState(ctx, name)
	if err != nil {
		addIssue(&result, models.StatusCritical,
			fmt.Sprintf("Container %s check failed: %v", name, err),
			models.FixRestartContainer)
		return finalize(&result)
	}

	if !state.Running {
		addIssue(&result, models.StatusCritical,
			fmt.Sprintf("Container %s is not running: %s", name, state.Status),
			models.FixRestartContainer)
		return finalize(&result)
	}

	health, err := s.system.ContainerHealth(ctx, name)
	if err != nil {
		addIssue(&result, models.StatusDegraded,
			fmt.Sprintf("Health check failed: %v", err),
			models.FixRestartContainer)
	} else if health == "unhealthy" {
		addIssue(&result, models.StatusDegraded,
			fmt.Sprintf("Health check failed: container reports %s", health),
			models.FixRestartContainer)
	}

	cpu, err := s.system.ContainerCPUPercent(ctx, name)
	if err != nil {
		addIssue(&result, models.StatusDegraded,
			fmt.Sprintf("CPU measurement failed: %v", err))
	} else if cpu > s.cfg.CPUThreshold {
		addIssue(&result, models.StatusDegraded,
			fmt.Sprintf("High CPU usage: %.1f%%", cpu),
			models.FixScaleContainer)
	}

	return finalize(&result)
}

// checkService resolves a critical service against the static endpoint
// table and verifies network reachability. An unrecognized service is
// critical but never auto-fixed.
func (s *HealthService) checkService(ctx context.Context, name string) models.HealthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	result := newResult(name)

	ep, ok := s.cfg.Endpoints[name]
	if !ok {
		result.Status = models.StatusCritical
		result.AutoFixable = false
		result.Issues = append(result.Issues, fmt.Sprintf("Unknown service: %s", name))
		return result
	}

	var err error
	if ep.HTTPPath != "" {
		err = s.system.ProbeHTTP(ctx, ep.URL())
	} else {
		err = s.system.ProbeTCP(ctx, ep.Addr())
	}
	if err != nil {
		addIssue(&result, models.StatusCritical,
			fmt.Sprintf("Service %s unreachable: %v", name, err),
			models.FixRestartService)
	}

	return finalize(&result)
}

// checkResources probes host disk usage and available memory. Measurement
// failures are degraded but not actionable.
func (s *HealthService) checkResources(ctx context.Context) models.HealthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	result := newResult(s.cfg.ResourceComponent)

	disk, err := s.system.DiskUsagePercent(ctx, "/")
	switch {
	case err != nil:
		addIssue(&result, models.StatusDegraded,
			fmt.Sprintf("Disk usage check failed: %v", err))
	case disk > s.cfg.DiskCriticalPct:
		addIssue(&result, models.StatusCritical,
			fmt.Sprintf("Disk usage critical: %.1f%%", disk),
			models.FixCleanupDisk)
	case disk > s.cfg.DiskDegradedPct:
		addIssue(&result, models.StatusDegraded,
			fmt.Sprintf("Disk usage high: %.1f%%", disk),
			models.FixCleanupDisk)
	}

	available, err := s.system.AvailableMemory(ctx)
	if err != nil {
		addIssue(&result, models.StatusDegraded,
			fmt.Sprintf("Memory check failed: %v", err))
	} else if available < s.cfg.MemoryLowWater {
		addIssue(&result, models.StatusDegraded,
			fmt.Sprintf("Low available memory: %d MiB", available/(1024*1024)),
			models.FixFreeMemory)
	}

	return finalize(&result)
}

// checkFilesystem verifies that every critical file exists and is readable.
// File checks are local stat calls and carry no deadline of their own.
func (s *HealthService) checkFilesystem(_ context.Context) models.HealthCheckResult {
	result := newResult("filesystem")

	for _, path := range s.cfg.CriticalFiles {
		status, err := s.system.CheckFile(path)
		switch status {
		case FileMissing:
			addIssue(&result, models.StatusCritical,
				fmt.Sprintf("Critical file missing: %s", path),
				models.FixRestoreFile)
		case FileUnreadable:
			addIssue(&result, models.StatusDegraded,
				fmt.Sprintf("Critical file unreadable: %s: %v", path, err),
				models.FixFixPermissions)
		}
	}

	return finalize(&result)
}
