// Package system implements the SystemController capability interface over
// the Docker runtime, the host OS and the local filesystem.
package system

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"

	"aegis/core/service"
	"aegis/utils/docker"
	"aegis/utils/statsutil"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// logTruncateSize is the size above which log files are truncated during a
// disk cleanup.
const logTruncateSize = 50 * 1024 * 1024

// Controller is the production SystemController. It holds no state beyond
// its collaborators; every method is a pass-through bounded by the caller's
// context.
type Controller struct {
	docker     *docker.Client
	httpClient *http.Client
	backupDir  string
	logDir     string
}

// NewController creates a system controller backed by the given Docker
// client. backupDir is the source for file restores; logDir is swept during
// disk cleanup.
func NewController(dockerClient *docker.Client, backupDir, logDir string) *Controller {
	return &Controller{
		docker:     dockerClient,
		httpClient: &http.Client{},
		backupDir:  backupDir,
		logDir:     logDir,
	}
}

var _ service.SystemController = (*Controller)(nil)

// ContainerState returns the run-state of the named container.
func (c *Controller) ContainerState(ctx context.Context, name string) (service.ContainerState, error) {
	inspect, err := c.inspect(ctx, name)
	if err != nil {
		return service.ContainerState{}, err
	}

	status := inspect.State.Status
	if !inspect.State.Running && inspect.State.ExitCode != 0 {
		status = fmt.Sprintf("%s (exit code %d)", status, inspect.State.ExitCode)
	}

	return service.ContainerState{
		Running: inspect.State.Running,
		Status:  status,
	}, nil
}

// ContainerHealth returns the runtime health annotation for the container,
// or "none" when the container defines no health check.
func (c *Controller) ContainerHealth(ctx context.Context, name string) (string, error) {
	inspect, err := c.inspect(ctx, name)
	if err != nil {
		return "", err
	}
	if inspect.State.Health == nil {
		return "none", nil
	}
	return inspect.State.Health.Status, nil
}

// ContainerCPUPercent takes a one-shot stats sample and computes the
// container's CPU utilization.
func (c *Controller) ContainerCPUPercent(ctx context.Context, name string) (float64, error) {
	id, err := c.docker.ContainerIDByName(ctx, name)
	if err != nil {
		return 0, err
	}

	statsResponse, err := c.docker.ContainerStats(ctx, id, false)
	if err != nil {
		return 0, err
	}
	defer statsResponse.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(statsResponse.Body).Decode(&stats); err != nil {
		return 0, err
	}

	return statsutil.CalculateCPUPercent(&stats), nil
}

// RestartContainer restarts the named container with a 10 second stop grace.
func (c *Controller) RestartContainer(ctx context.Context, name string) error {
	id, err := c.docker.ContainerIDByName(ctx, name)
	if err != nil {
		return err
	}

	timeout := 10
	if err := c.docker.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to restart container %s: %w", name, err)
	}

	log.Printf("Container %s restarted successfully", name)
	return nil
}

// ScaleContainer acknowledges a scaling request. No orchestrator is
// integrated; single-host Docker has nothing to scale onto, so the request
// is recorded and left to the operator.
func (c *Controller) ScaleContainer(_ context.Context, name string) error {
	log.Printf("Scale request for container %s recorded (no orchestrator integration)", name)
	return nil
}

// DiskUsagePercent returns used-space percentage of the filesystem at path.
func (c *Controller) DiskUsagePercent(ctx context.Context, path string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

// AvailableMemory returns the bytes of memory available without swapping.
func (c *Controller) AvailableMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// PruneStorage removes stopped containers, dangling images and build cache,
// then truncates oversized log files. Returns the bytes reclaimed.
func (c *Controller) PruneStorage(ctx context.Context) (uint64, error) {
	var reclaimed uint64

	containerReport, err := c.docker.ContainersPrune(ctx, filters.NewArgs())
	if err != nil {
		return reclaimed, fmt.Errorf("container prune failed: %w", err)
	}
	reclaimed += containerReport.SpaceReclaimed

	imageReport, err := c.docker.ImagesPrune(ctx, filters.NewArgs())
	if err != nil {
		return reclaimed, fmt.Errorf("image prune failed: %w", err)
	}
	reclaimed += imageReport.SpaceReclaimed

	cacheReport, err := c.docker.BuildCachePrune(ctx, types.BuildCachePruneOptions{})
	if err != nil {
		return reclaimed, fmt.Errorf("build cache prune failed: %w", err)
	}
	reclaimed += cacheReport.SpaceReclaimed

	reclaimed += c.rotateLogs()

	log.Printf("Storage prune reclaimed %d bytes", reclaimed)
	return reclaimed, nil
}

// rotateLogs truncates log files that have grown past the size limit and
// returns the bytes freed. Rotation failures are logged, not fatal: the
// docker prune already reclaimed the bulk.
func (c *Controller) rotateLogs() uint64 {
	matches, err := filepath.Glob(filepath.Join(c.logDir, "*.log"))
	if err != nil {
		return 0
	}

	var freed uint64
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.Size() <= logTruncateSize {
			continue
		}
		if err := os.Truncate(path, 0); err != nil {
			log.Printf("Failed to truncate log %s: %v", path, err)
			continue
		}
		freed += uint64(info.Size())
	}
	return freed
}

// ReclaimMemory returns the controller's own freed heap to the OS and drops
// the kernel page cache. The cache drop needs a privileged write to
// /proc/sys/vm/drop_caches; without privilege the error is returned for the
// action record.
func (c *Controller) ReclaimMemory(_ context.Context) error {
	debug.FreeOSMemory()

	if err := os.WriteFile("/proc/sys/vm/drop_caches", []byte("3"), 0o200); err != nil {
		return fmt.Errorf("failed to drop page cache (requires privilege): %w", err)
	}

	log.Println("Kernel page cache dropped")
	return nil
}

// ProbeTCP checks that a TCP connection to addr can be established within
// the context deadline.
func (c *Controller) ProbeTCP(ctx context.Context, addr string) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ProbeHTTP performs a GET against url and requires a non-empty response
// body. Any response with a body counts: this checks reachability, not
// correctness.
func (c *Controller) ProbeHTTP(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty response from %s (status %d)", url, resp.StatusCode)
	}
	return nil
}

// CheckFile reports whether path exists and is readable.
func (c *Controller) CheckFile(path string) (service.FileStatus, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return service.FileMissing, err
		}
		return service.FileUnreadable, err
	}

	f, err := os.Open(path)
	if err != nil {
		return service.FileUnreadable, err
	}
	return service.FileOK, f.Close()
}

// RepairPermissions resets path to owner read/write, world read.
func (c *Controller) RepairPermissions(path string) error {
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("failed to repair permissions on %s: %w", path, err)
	}
	log.Printf("Permissions repaired on %s", path)
	return nil
}

// RestoreFile copies the backup of path from the backup directory. The
// backup subsystem is a directory of same-named files; a missing backup
// fails the restore with a clear message.
func (c *Controller) RestoreFile(_ context.Context, path string) error {
	backup := filepath.Join(c.backupDir, filepath.Base(path))

	src, err := os.Open(backup)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no backup available for %s", path)
		}
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	log.Printf("Restored %s from %s", path, backup)
	return nil
}

// inspect resolves name to an ID and inspects the container.
func (c *Controller) inspect(ctx context.Context, name string) (types.ContainerJSON, error) {
	id, err := c.docker.ContainerIDByName(ctx, name)
	if err != nil {
		return types.ContainerJSON{}, err
	}
	return c.docker.ContainerInspect(ctx, id)
}
