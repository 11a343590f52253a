// Package models defines domain models for Aegis.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HealthStatus classifies the severity of a component's health.
// Severity is ordered: healthy < degraded < critical.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusCritical HealthStatus = "critical"
)

// rank maps each status to its position in the severity order.
func (s HealthStatus) rank() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusCritical:
		return 2
	default:
		return 0
	}
}

// Escalate returns the more severe of s and other. A status never
// de-escalates: escalating a critical result with degraded keeps critical.
func (s HealthStatus) Escalate(other HealthStatus) HealthStatus {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// HealthCheckResult is the outcome of probing a single component.
// When a probe detects multiple issues, Status carries the maximum
// severity and Issues/Fixes accumulate in detection order.
type HealthCheckResult struct {
	Component   string       `json:"component"`
	Status      HealthStatus `json:"status"`
	Issues      []string     `json:"issues"`
	AutoFixable bool         `json:"autoFixable"`
	Fixes       []FixKind    `json:"fixes"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Unhealthy reports whether the result needs remediation.
func (r HealthCheckResult) Unhealthy() bool {
	return r.Status != StatusHealthy
}

// FixKind is a closed enumeration of remediation fix identifiers.
type FixKind string

const (
	FixRestartContainer FixKind = "restart_container"
	FixRestartService   FixKind = "restart_service"
	FixScaleContainer   FixKind = "scale_container"
	FixCleanupDisk      FixKind = "cleanup_disk"
	FixFreeMemory       FixKind = "free_memory"
	FixRestoreFile      FixKind = "restore_file"
	FixFixPermissions   FixKind = "fix_permissions"
)

// ActionType categorizes a self-healing action.
type ActionType string

const (
	ActionRestart     ActionType = "restart"
	ActionReconfigure ActionType = "reconfigure"
	ActionRestore     ActionType = "restore"
	ActionScale       ActionType = "scale"
	ActionIsolate     ActionType = "isolate"
)

// fixActionTypes is the fixed mapping from fix identifier to action type.
var fixActionTypes = map[FixKind]ActionType{
	FixRestartContainer: ActionRestart,
	FixRestartService:   ActionRestart,
	FixScaleContainer:   ActionScale,
	FixCleanupDisk:      ActionReconfigure,
	FixFreeMemory:       ActionReconfigure,
	FixRestoreFile:      ActionRestore,
	FixFixPermissions:   ActionReconfigure,
}

// ActionType returns the action type for the fix. The second return value
// is false for fix identifiers outside the closed enumeration.
func (f FixKind) ActionType() (ActionType, bool) {
	t, ok := fixActionTypes[f]
	return t, ok
}

// ActionStatus is the lifecycle state of a self-healing action.
// Transitions are strictly pending → running → {completed, failed};
// terminal states are never left.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionRunning   ActionStatus = "running"
	ActionCompleted ActionStatus = "completed"
	ActionFailed    ActionStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s ActionStatus) Terminal() bool {
	return s == ActionCompleted || s == ActionFailed
}

// SelfHealingAction records one attempted remediation.
type SelfHealingAction struct {
	ID          string       `json:"id"`
	Type        ActionType   `json:"type"`
	Component   string       `json:"component"`
	Fix         FixKind      `json:"fix"`
	Description string       `json:"description"`
	Status      ActionStatus `json:"status"`
	Result      string       `json:"result,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// NewHealingAction creates a running action for the given fix and component.
// The action type comes from the fixed lookup table; fixes outside the
// enumeration get no type and must be failed by the executor.
func NewHealingAction(fix FixKind, component string) *SelfHealingAction {
	actionType, _ := fix.ActionType()
	return &SelfHealingAction{
		ID:          uuid.NewString(),
		Type:        actionType,
		Component:   component,
		Fix:         fix,
		Description: fmt.Sprintf("Applying %s to %s", fix, component),
		Status:      ActionRunning,
		Timestamp:   time.Now(),
	}
}

// Complete moves the action to the completed state. It is a no-op if the
// action is already terminal.
func (a *SelfHealingAction) Complete(result string) {
	if a.Status.Terminal() {
		return
	}
	now := time.Now()
	a.Status = ActionCompleted
	a.Result = result
	a.CompletedAt = &now
}

// Fail moves the action to the failed state. It is a no-op if the action
// is already terminal.
func (a *SelfHealingAction) Fail(reason string) {
	if a.Status.Terminal() {
		return
	}
	now := time.Now()
	a.Status = ActionFailed
	a.Result = reason
	a.CompletedAt = &now
}

// HealthSummary counts results per severity for one health check run.
type HealthSummary struct {
	Healthy  int `json:"healthy"`
	Degraded int `json:"degraded"`
	Critical int `json:"critical"`
}

// Summarize tallies a result set into a HealthSummary.
func Summarize(results []HealthCheckResult) HealthSummary {
	var s HealthSummary
	for _, r := range results {
		switch r.Status {
		case StatusCritical:
			s.Critical++
		case StatusDegraded:
			s.Degraded++
		default:
			s.Healthy++
		}
	}
	return s
}

// HealingSummary counts executed actions per outcome.
type HealingSummary struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// SummarizeActions tallies an action list into a HealingSummary.
func SummarizeActions(actions []*SelfHealingAction) HealingSummary {
	var s HealingSummary
	for _, a := range actions {
		switch a.Status {
		case ActionCompleted:
			s.Completed++
		case ActionFailed:
			s.Failed++
		}
		s.Total++
	}
	return s
}

// SuccessRate returns the completed percentage of the summary. An empty
// run counts as full success: no issues found means nothing failed.
func (s HealingSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 100.0
	}
	return float64(s.Completed) / float64(s.Total) * 100.0
}
