package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"aegis/core/models"
	"aegis/core/repository"
)

// HealingConfig holds the executor's settings.
type HealingConfig struct {
	// Endpoints maps service names to their endpoint descriptors, used to
	// resolve which container backs a failing service.
	Endpoints map[string]ServiceEndpoint

	// CriticalFiles is the file list that restore and permission-repair
	// fixes operate over.
	CriticalFiles []string

	// ActionTimeout bounds each mutating capability call. Mutations get a
	// longer leash than probes.
	ActionTimeout time.Duration
}

// HealingService turns unhealthy check results into executed remediation
// actions. Every attempted action is appended to the history store; a
// failing fix never aborts the batch.
type HealingService struct {
	system  SystemController
	history *repository.HealingActionRepository
	cfg     HealingConfig
}

// NewHealingService creates a healing service.
func NewHealingService(system SystemController, history *repository.HealingActionRepository, cfg HealingConfig) *HealingService {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 60 * time.Second
	}
	return &HealingService{system: system, history: history, cfg: cfg}
}

// ExecuteHealing creates and runs one action per fix of every degraded or
// critical result. Healthy results and results without fixes produce no
// actions. Each action ends completed or failed; unknown fix identifiers
// are recorded as failed rather than skipped.
func (s *HealingService) ExecuteHealing(ctx context.Context, results []models.HealthCheckResult) []*models.SelfHealingAction {
	var actions []*models.SelfHealingAction

	for _, result := range results {
		if !result.Unhealthy() {
			continue
		}
		for _, fix := range result.Fixes {
			action := models.NewHealingAction(fix, result.Component)
			s.execute(ctx, action)

			if err := s.history.Create(action); err != nil {
				log.Printf("Failed to record healing action %s: %v", action.ID, err)
			}

			log.Printf("Healing action %s (%s on %s): %s",
				action.ID, action.Fix, action.Component, action.Status)
			actions = append(actions, action)
		}
	}

	return actions
}

// execute dispatches the action to the matching capability and moves it to
// a terminal state. Capability errors become a failed action, never a
// returned error.
func (s *HealingService) execute(ctx context.Context, action *models.SelfHealingAction) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	switch action.Fix {
	case models.FixRestartContainer:
		if err := s.system.RestartContainer(ctx, action.Component); err != nil {
			action.Fail(err.Error())
			return
		}
		action.Complete(fmt.Sprintf("Container %s restarted", action.Component))

	case models.FixRestartService:
		target := s.containerFor(action.Component)
		if err := s.system.RestartContainer(ctx, target); err != nil {
			action.Fail(err.Error())
			return
		}
		action.Complete(fmt.Sprintf("Service %s restarted via container %s", action.Component, target))

	case models.FixScaleContainer:
		if err := s.system.ScaleContainer(ctx, action.Component); err != nil {
			action.Fail(err.Error())
			return
		}
		action.Complete(fmt.Sprintf("Scaling requested for %s", action.Component))

	case models.FixCleanupDisk:
		reclaimed, err := s.system.PruneStorage(ctx)
		if err != nil {
			action.Fail(err.Error())
			return
		}
		action.Complete(fmt.Sprintf("Disk cleanup completed, reclaimed %d MiB", reclaimed/(1024*1024)))

	case models.FixFreeMemory:
		if err := s.system.ReclaimMemory(ctx); err != nil {
			action.Fail(err.Error())
			return
		}
		action.Complete("Reclaimable memory released")

	case models.FixRestoreFile:
		s.restoreFiles(ctx, action)

	case models.FixFixPermissions:
		s.repairPermissions(action)

	default:
		action.Fail(fmt.Sprintf("unknown fix type: %s", action.Fix))
	}
}

// containerFor resolves the container backing a service. Services without
// an explicit mapping fall back to the service name itself.
func (s *HealingService) containerFor(service string) string {
	if ep, ok := s.cfg.Endpoints[service]; ok && ep.Container != "" {
		return ep.Container
	}
	return service
}

// restoreFiles restores every currently missing critical file from backup.
func (s *HealingService) restoreFiles(ctx context.Context, action *models.SelfHealingAction) {
	var restored, failed []string
	for _, path := range s.cfg.CriticalFiles {
		status, _ := s.system.CheckFile(path)
		if status != FileMissing {
			continue
		}
		if err := s.system.RestoreFile(ctx, path); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		restored = append(restored, path)
	}

	if len(failed) > 0 {
		action.Fail(fmt.Sprintf("restore failed: %s", strings.Join(failed, "; ")))
		return
	}
	if len(restored) == 0 {
		action.Complete("No missing files found, nothing to restore")
		return
	}
	action.Complete(fmt.Sprintf("Restored %d file(s): %s", len(restored), strings.Join(restored, ", ")))
}

// repairPermissions resets every unreadable critical file to a safe mode.
func (s *HealingService) repairPermissions(action *models.SelfHealingAction) {
	var repaired, failed []string
	for _, path := range s.cfg.CriticalFiles {
		status, _ := s.system.CheckFile(path)
		if status != FileUnreadable {
			continue
		}
		if err := s.system.RepairPermissions(path); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		repaired = append(repaired, path)
	}

	if len(failed) > 0 {
		action.Fail(fmt.Sprintf("permission repair failed: %s", strings.Join(failed, "; ")))
		return
	}
	if len(repaired) == 0 {
		action.Complete("No unreadable files found, nothing to repair")
		return
	}
	action.Complete(fmt.Sprintf("Repaired permissions on %d file(s): %s", len(repaired), strings.Join(repaired, ", ")))
}

// History returns the full healing history in insertion order plus its count.
func (s *HealingService) History() ([]*models.SelfHealingAction, int, error) {
	actions, err := s.history.List(0)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load healing history: %w", err)
	}
	return actions, len(actions), nil
}
