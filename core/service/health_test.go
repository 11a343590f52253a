package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"aegis/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProbeConfig() ProbeConfig {
	return ProbeConfig{
		Containers: []string{"redis", "postgres"},
		Services:   []string{"redis", "api"},
		Endpoints: map[string]ServiceEndpoint{
			"redis": {Name: "redis", Host: "localhost", Port: 6379, Container: "redis"},
			"api":   {Name: "api", Host: "localhost", Port: 8000, HTTPPath: "/health", Container: "api"},
		},
		CriticalFiles: []string{".env", "docker-compose.yml"},
	}
}

func TestPerformHealthCheckAllHealthy(t *testing.T) {
	svc := NewHealthService(&fakeSystem{}, testProbeConfig())

	results := svc.PerformHealthCheck(context.Background())

	require.Len(t, results, 6)
	for _, r := range results {
		assert.Equal(t, models.StatusHealthy, r.Status, "component %s", r.Component)
		assert.Empty(t, r.Issues)
		assert.Empty(t, r.Fixes)
		assert.True(t, r.AutoFixable)
		assert.False(t, r.Timestamp.IsZero())
	}

	summary, _, checked := svc.LastSummary()
	assert.True(t, checked)
	assert.Equal(t, models.HealthSummary{Healthy: 6}, summary)
}

func TestPerformHealthCheckResultOrder(t *testing.T) {
	cfg := testProbeConfig()
	cfg.ProbeConcurrency = 4
	// Skew completion order: earlier components answer slower.
	fake := &fakeSystem{
		containerState: func(name string) (ContainerState, error) {
			if name == "redis" {
				time.Sleep(20 * time.Millisecond)
			}
			return ContainerState{Running: true, Status: "running"}, nil
		},
	}
	svc := NewHealthService(fake, cfg)

	results := svc.PerformHealthCheck(context.Background())

	components := make([]string, len(results))
	for i, r := range results {
		components[i] = r.Component
	}
	assert.Equal(t, []string{"redis", "postgres", "redis", "api", "resources", "filesystem"}, components)
}

func TestContainerProbe(t *testing.T) {
	t.Run("NotRunning", func(t *testing.T) {
		fake := &fakeSystem{
			containerState: func(name string) (ContainerState, error) {
				if name == "redis" {
					return ContainerState{Running: false, Status: "exited (exit code 1)"}, nil
				}
				return ContainerState{Running: true, Status: "running"}, nil
			},
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		redis := results[0]
		assert.Equal(t, "redis", redis.Component)
		assert.Equal(t, models.StatusCritical, redis.Status)
		require.Len(t, redis.Issues, 1)
		assert.Equal(t, "Container redis is not running: exited (exit code 1)", redis.Issues[0])
		assert.Equal(t, []models.FixKind{models.FixRestartContainer}, redis.Fixes)
		assert.True(t, redis.AutoFixable)
	})

	t.Run("HealthAnnotationQueryFails", func(t *testing.T) {
		fake := &fakeSystem{
			containerHealth: func(name string) (string, error) {
				return "", errors.New("inspect timed out")
			},
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		assert.Equal(t, models.StatusDegraded, results[0].Status)
		assert.Contains(t, results[0].Issues[0], "Health check failed")
		assert.Equal(t, []models.FixKind{models.FixRestartContainer}, results[0].Fixes)
	})

	t.Run("ReportedUnhealthy", func(t *testing.T) {
		fake := &fakeSystem{
			containerHealth: func(name string) (string, error) { return "unhealthy", nil },
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())
		assert.Equal(t, models.StatusDegraded, results[0].Status)
		assert.Equal(t, []models.FixKind{models.FixRestartContainer}, results[0].Fixes)
	})

	t.Run("HighCPU", func(t *testing.T) {
		fake := &fakeSystem{
			cpuPercent: func(name string) (float64, error) { return 93.5, nil },
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		assert.Equal(t, models.StatusDegraded, results[0].Status)
		assert.Contains(t, results[0].Issues, "High CPU usage: 93.5%")
		assert.Equal(t, []models.FixKind{models.FixScaleContainer}, results[0].Fixes)
	})

	t.Run("MultipleIssuesAccumulate", func(t *testing.T) {
		fake := &fakeSystem{
			containerHealth: func(name string) (string, error) { return "", errors.New("no health status") },
			cpuPercent:      func(name string) (float64, error) { return 95.0, nil },
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		redis := results[0]
		assert.Equal(t, models.StatusDegraded, redis.Status)
		require.Len(t, redis.Issues, 2)
		assert.Equal(t, []models.FixKind{models.FixRestartContainer, models.FixScaleContainer}, redis.Fixes)
	})

	t.Run("StateQueryErrorBecomesCriticalResult", func(t *testing.T) {
		fake := &fakeSystem{
			containerState: func(name string) (ContainerState, error) {
				return ContainerState{}, errors.New("daemon unavailable")
			},
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		// One failing probe never aborts the batch.
		require.Len(t, results, 6)
		assert.Equal(t, models.StatusCritical, results[0].Status)
		assert.Contains(t, results[0].Issues[0], "daemon unavailable")
		assert.Equal(t, []models.FixKind{models.FixRestartContainer}, results[0].Fixes)
	})
}

func TestServiceProbe(t *testing.T) {
	t.Run("UnknownService", func(t *testing.T) {
		cfg := testProbeConfig()
		cfg.Services = []string{"foo"}
		svc := NewHealthService(&fakeSystem{}, cfg)

		results := svc.PerformHealthCheck(context.Background())

		foo := results[2]
		assert.Equal(t, "foo", foo.Component)
		assert.Equal(t, models.StatusCritical, foo.Status)
		assert.False(t, foo.AutoFixable)
		assert.Empty(t, foo.Fixes)
		assert.Equal(t, []string{"Unknown service: foo"}, foo.Issues)
	})

	t.Run("TCPUnreachable", func(t *testing.T) {
		var dialed string
		fake := &fakeSystem{
			probeTCP: func(addr string) error {
				dialed = addr
				return errors.New("connection refused")
			},
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		redis := results[2]
		assert.Equal(t, "localhost:6379", dialed)
		assert.Equal(t, models.StatusCritical, redis.Status)
		assert.Contains(t, redis.Issues[0], "Service redis unreachable: connection refused")
		assert.Equal(t, []models.FixKind{models.FixRestartService}, redis.Fixes)
	})

	t.Run("HTTPEndpointUsesHTTPProbe", func(t *testing.T) {
		var fetched string
		fake := &fakeSystem{
			probeHTTP: func(url string) error {
				fetched = url
				return errors.New("empty response")
			},
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		api := results[3]
		assert.Equal(t, "http://localhost:8000/health", fetched)
		assert.Equal(t, models.StatusCritical, api.Status)
		assert.Equal(t, []models.FixKind{models.FixRestartService}, api.Fixes)
	})
}

func TestResourceProbe(t *testing.T) {
	resourceResult := func(t *testing.T, fake *fakeSystem) models.HealthCheckResult {
		t.Helper()
		svc := NewHealthService(fake, testProbeConfig())
		results := svc.PerformHealthCheck(context.Background())
		r := results[4]
		require.Equal(t, "resources", r.Component)
		return r
	}

	t.Run("DiskCritical", func(t *testing.T) {
		r := resourceResult(t, &fakeSystem{diskUsage: func() (float64, error) { return 95.0, nil }})
		assert.Equal(t, models.StatusCritical, r.Status)
		assert.Contains(t, r.Issues, "Disk usage critical: 95.0%")
		assert.Equal(t, []models.FixKind{models.FixCleanupDisk}, r.Fixes)
	})

	t.Run("DiskDegraded", func(t *testing.T) {
		r := resourceResult(t, &fakeSystem{diskUsage: func() (float64, error) { return 85.0, nil }})
		assert.Equal(t, models.StatusDegraded, r.Status)
		assert.Contains(t, r.Issues, "Disk usage high: 85.0%")
		assert.Equal(t, []models.FixKind{models.FixCleanupDisk}, r.Fixes)
	})

	t.Run("DiskHealthy", func(t *testing.T) {
		r := resourceResult(t, &fakeSystem{diskUsage: func() (float64, error) { return 40.0, nil }})
		assert.Equal(t, models.StatusHealthy, r.Status)
		assert.Empty(t, r.Fixes)
	})

	t.Run("LowMemory", func(t *testing.T) {
		r := resourceResult(t, &fakeSystem{memory: func() (uint64, error) { return 100 * 1024 * 1024, nil }})
		assert.Equal(t, models.StatusDegraded, r.Status)
		assert.Contains(t, r.Issues, "Low available memory: 100 MiB")
		assert.Equal(t, []models.FixKind{models.FixFreeMemory}, r.Fixes)
	})

	t.Run("DiskCriticalAndLowMemory", func(t *testing.T) {
		r := resourceResult(t, &fakeSystem{
			diskUsage: func() (float64, error) { return 95.0, nil },
			memory:    func() (uint64, error) { return 100 * 1024 * 1024, nil },
		})
		// Max severity wins; both fixes accumulate.
		assert.Equal(t, models.StatusCritical, r.Status)
		assert.Equal(t, []models.FixKind{models.FixCleanupDisk, models.FixFreeMemory}, r.Fixes)
	})

	t.Run("MeasurementFailureIsNotActionable", func(t *testing.T) {
		r := resourceResult(t, &fakeSystem{
			diskUsage: func() (float64, error) { return 0, errors.New("statfs failed") },
		})
		assert.Equal(t, models.StatusDegraded, r.Status)
		assert.Contains(t, r.Issues[0], "statfs failed")
		assert.Empty(t, r.Fixes)
		assert.False(t, r.AutoFixable)
	})
}

func TestFilesystemProbe(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		fake := &fakeSystem{
			checkFile: func(path string) (FileStatus, error) {
				if path == ".env" {
					return FileMissing, errors.New("no such file")
				}
				return FileOK, nil
			},
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		fs := results[5]
		assert.Equal(t, "filesystem", fs.Component)
		assert.Equal(t, models.StatusCritical, fs.Status)
		assert.Contains(t, fs.Issues, "Critical file missing: .env")
		assert.Equal(t, []models.FixKind{models.FixRestoreFile}, fs.Fixes)
	})

	t.Run("UnreadableFile", func(t *testing.T) {
		fake := &fakeSystem{
			checkFile: func(path string) (FileStatus, error) {
				if path == "docker-compose.yml" {
					return FileUnreadable, errors.New("permission denied")
				}
				return FileOK, nil
			},
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		fs := results[5]
		assert.Equal(t, models.StatusDegraded, fs.Status)
		assert.Contains(t, fs.Issues[0], "Critical file unreadable: docker-compose.yml")
		assert.Equal(t, []models.FixKind{models.FixFixPermissions}, fs.Fixes)
	})

	t.Run("MissingAndUnreadableStaysCritical", func(t *testing.T) {
		fake := &fakeSystem{
			checkFile: func(path string) (FileStatus, error) {
				if path == ".env" {
					return FileMissing, errors.New("no such file")
				}
				return FileUnreadable, errors.New("permission denied")
			},
		}
		svc := NewHealthService(fake, testProbeConfig())

		results := svc.PerformHealthCheck(context.Background())

		fs := results[5]
		assert.Equal(t, models.StatusCritical, fs.Status)
		require.Len(t, fs.Issues, 2)
		assert.Equal(t, []models.FixKind{models.FixRestoreFile, models.FixFixPermissions}, fs.Fixes)
	})
}

func TestPerformHealthCheckIdempotent(t *testing.T) {
	fake := &fakeSystem{
		containerState: func(name string) (ContainerState, error) {
			if name == "postgres" {
				return ContainerState{Running: false, Status: "exited"}, nil
			}
			return ContainerState{Running: true, Status: "running"}, nil
		},
		diskUsage: func() (float64, error) { return 85.0, nil },
	}
	svc := NewHealthService(fake, testProbeConfig())

	first := svc.PerformHealthCheck(context.Background())
	second := svc.PerformHealthCheck(context.Background())

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Component, second[i].Component)
		assert.Equal(t, first[i].Status, second[i].Status)
		assert.Equal(t, first[i].Issues, second[i].Issues)
		assert.Equal(t, first[i].Fixes, second[i].Fixes)
		assert.Equal(t, first[i].AutoFixable, second[i].AutoFixable)
	}
}

func TestHealthyImpliesNoIssuesAndFixableImpliesFixes(t *testing.T) {
	// Sweep a set of worlds and check the structural invariants hold
	// for every produced result.
	worlds := []*fakeSystem{
		{},
		{containerState: func(string) (ContainerState, error) { return ContainerState{}, errors.New("boom") }},
		{diskUsage: func() (float64, error) { return 99.0, nil }},
		{memory: func() (uint64, error) { return 0, errors.New("unreadable") }},
		{checkFile: func(string) (FileStatus, error) { return FileMissing, errors.New("gone") }},
		{probeTCP: func(string) error { return errors.New("refused") }},
	}

	for i, fake := range worlds {
		t.Run(fmt.Sprintf("World%d", i), func(t *testing.T) {
			svc := NewHealthService(fake, testProbeConfig())
			for _, r := range svc.PerformHealthCheck(context.Background()) {
				if r.Status == models.StatusHealthy {
					assert.Empty(t, r.Issues, "component %s", r.Component)
					assert.Empty(t, r.Fixes, "component %s", r.Component)
				} else {
					assert.NotEmpty(t, r.Issues, "component %s", r.Component)
					if r.AutoFixable {
						assert.NotEmpty(t, r.Fixes, "component %s", r.Component)
					} else {
						assert.Empty(t, r.Fixes, "component %s", r.Component)
					}
				}
			}
		})
	}
}
