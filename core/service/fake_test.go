package service

import (
	"context"
	"sync"
)

// fakeSystem is a configurable SystemController for tests. Unset hooks
// answer a fully healthy world.
type fakeSystem struct {
	mu    sync.Mutex
	calls []string

	containerState  func(name string) (ContainerState, error)
	containerHealth func(name string) (string, error)
	cpuPercent      func(name string) (float64, error)
	restart         func(name string) error
	scale           func(name string) error
	diskUsage       func() (float64, error)
	memory          func() (uint64, error)
	prune           func() (uint64, error)
	reclaim         func() error
	probeTCP        func(addr string) error
	probeHTTP       func(url string) error
	checkFile       func(path string) (FileStatus, error)
	repairPerms     func(path string) error
	restore         func(path string) error
}

func (f *fakeSystem) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSystem) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSystem) ContainerState(_ context.Context, name string) (ContainerState, error) {
	if f.containerState != nil {
		return f.containerState(name)
	}
	return ContainerState{Running: true, Status: "running"}, nil
}

func (f *fakeSystem) ContainerHealth(_ context.Context, name string) (string, error) {
	if f.containerHealth != nil {
		return f.containerHealth(name)
	}
	return "healthy", nil
}

func (f *fakeSystem) ContainerCPUPercent(_ context.Context, name string) (float64, error) {
	if f.cpuPercent != nil {
		return f.cpuPercent(name)
	}
	return 10.0, nil
}

func (f *fakeSystem) RestartContainer(_ context.Context, name string) error {
	f.record("restart:" + name)
	if f.restart != nil {
		return f.restart(name)
	}
	return nil
}

func (f *fakeSystem) ScaleContainer(_ context.Context, name string) error {
	f.record("scale:" + name)
	if f.scale != nil {
		return f.scale(name)
	}
	return nil
}

func (f *fakeSystem) DiskUsagePercent(_ context.Context, _ string) (float64, error) {
	if f.diskUsage != nil {
		return f.diskUsage()
	}
	return 50.0, nil
}

func (f *fakeSystem) AvailableMemory(_ context.Context) (uint64, error) {
	if f.memory != nil {
		return f.memory()
	}
	return 4 * 1024 * 1024 * 1024, nil
}

func (f *fakeSystem) PruneStorage(_ context.Context) (uint64, error) {
	f.record("prune")
	if f.prune != nil {
		return f.prune()
	}
	return 128 * 1024 * 1024, nil
}

func (f *fakeSystem) ReclaimMemory(_ context.Context) error {
	f.record("reclaim")
	if f.reclaim != nil {
		return f.reclaim()
	}
	return nil
}

func (f *fakeSystem) ProbeTCP(_ context.Context, addr string) error {
	if f.probeTCP != nil {
		return f.probeTCP(addr)
	}
	return nil
}

func (f *fakeSystem) ProbeHTTP(_ context.Context, url string) error {
	if f.probeHTTP != nil {
		return f.probeHTTP(url)
	}
	return nil
}

func (f *fakeSystem) CheckFile(path string) (FileStatus, error) {
	if f.checkFile != nil {
		return f.checkFile(path)
	}
	return FileOK, nil
}

func (f *fakeSystem) RepairPermissions(path string) error {
	f.record("repair:" + path)
	if f.repairPerms != nil {
		return f.repairPerms(path)
	}
	return nil
}

func (f *fakeSystem) RestoreFile(_ context.Context, path string) error {
	f.record("restore:" + path)
	if f.restore != nil {
		return f.restore(path)
	}
	return nil
}

var _ SystemController = (*fakeSystem)(nil)
