// Package service provides the health-check engine, remediation executor,
// and the capability boundary they depend on.
package service

import "context"

// ContainerState describes the run-state of a container as reported by
// the runtime.
type ContainerState struct {
	Running bool
	Status  string // raw runtime status, e.g. "running", "exited (1)"
}

// FileStatus classifies the outcome of a critical-file check.
type FileStatus int

const (
	// FileOK means the file exists and is readable.
	FileOK FileStatus = iota
	// FileMissing means the file does not exist.
	FileMissing
	// FileUnreadable means the file exists but cannot be read.
	FileUnreadable
)

// SystemController is the narrow capability interface through which the
// core interacts with the container runtime, the OS and the filesystem.
// It holds no state of its own; every method is a pass-through to the
// underlying platform, bounded by the caller's context.
type SystemController interface {
	// ContainerState returns the run-state of the named container.
	ContainerState(ctx context.Context, name string) (ContainerState, error)

	// ContainerHealth returns the runtime's own health annotation for the
	// named container: "healthy", "unhealthy", "starting", or "none" when
	// the container defines no health check.
	ContainerHealth(ctx context.Context, name string) (string, error)

	// ContainerCPUPercent measures current CPU utilization of the named
	// container as a percentage.
	ContainerCPUPercent(ctx context.Context, name string) (float64, error)

	// RestartContainer restarts the named container.
	RestartContainer(ctx context.Context, name string) error

	// ScaleContainer requests additional capacity for the named container.
	ScaleContainer(ctx context.Context, name string) error

	// DiskUsagePercent returns used-space percentage of the filesystem
	// holding path.
	DiskUsagePercent(ctx context.Context, path string) (float64, error)

	// AvailableMemory returns the bytes of memory available for new
	// allocations without swapping.
	AvailableMemory(ctx context.Context) (uint64, error)

	// PruneStorage reclaims disk space (unused containers, images, build
	// cache, rotated logs) and returns the bytes reclaimed.
	PruneStorage(ctx context.Context) (uint64, error)

	// ReclaimMemory releases reclaimable memory back to the system.
	ReclaimMemory(ctx context.Context) error

	// ProbeTCP checks that a TCP connection to addr ("host:port") can be
	// established within the context deadline.
	ProbeTCP(ctx context.Context, addr string) error

	// ProbeHTTP performs a GET against url and requires a non-empty
	// response body.
	ProbeHTTP(ctx context.Context, url string) error

	// CheckFile reports whether path exists and is readable. The error
	// carries detail when the status is not FileOK.
	CheckFile(path string) (FileStatus, error)

	// RepairPermissions resets path to a safe default mode
	// (owner read/write, world read).
	RepairPermissions(path string) error

	// RestoreFile restores path from backup.
	RestoreFile(ctx context.Context, path string) error
}
