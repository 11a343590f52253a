// Package repository provides the data access layer for healing history.
package repository

import (
	"database/sql"
	"time"

	"aegis/core/models"
)

// HealingActionRepository is the append-only healing history store. SQLite
// serializes writers, so concurrent remediation batches append without lost
// updates; reads return snapshots in insertion order.
type HealingActionRepository struct {
	db *sql.DB
}

// NewHealingActionRepository creates a new healing action repository.
func NewHealingActionRepository(db *sql.DB) *HealingActionRepository {
	return &HealingActionRepository{db: db}
}

// Create appends a terminal healing action to the history.
func (r *HealingActionRepository) Create(action *models.SelfHealingAction) error {
	query := `
		INSERT INTO healing_actions (
			id, action_type, fix, component, description,
			status, result, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var result *string
	if action.Result != "" {
		result = &action.Result
	}

	_, err := r.db.Exec(
		query,
		action.ID,
		string(action.Type),
		string(action.Fix),
		action.Component,
		action.Description,
		string(action.Status),
		result,
		action.Timestamp,
		action.CompletedAt,
	)
	return err
}

// List returns healing actions in insertion order. A limit of 0 returns
// the full history.
func (r *HealingActionRepository) List(limit int) ([]*models.SelfHealingAction, error) {
	query := `
		SELECT id, action_type, fix, component, description,
		       status, result, created_at, completed_at
		FROM healing_actions
		ORDER BY rowid ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*models.SelfHealingAction
	for rows.Next() {
		action := &models.SelfHealingAction{}
		var actionType, fix, status string
		var result sql.NullString
		var completedAt sql.NullTime

		err := rows.Scan(
			&action.ID,
			&actionType,
			&fix,
			&action.Component,
			&action.Description,
			&status,
			&result,
			&action.Timestamp,
			&completedAt,
		)
		if err != nil {
			return nil, err
		}

		action.Type = models.ActionType(actionType)
		action.Fix = models.FixKind(fix)
		action.Status = models.ActionStatus(status)
		if result.Valid {
			action.Result = result.String
		}
		if completedAt.Valid {
			t := completedAt.Time
			action.CompletedAt = &t
		}

		actions = append(actions, action)
	}

	return actions, rows.Err()
}

// Count returns the number of recorded healing actions.
func (r *HealingActionRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM healing_actions`).Scan(&count)
	return count, err
}

// CountByStatus returns how many recorded actions carry the given status.
func (r *HealingActionRepository) CountByStatus(status models.ActionStatus) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM healing_actions WHERE status = ?`, string(status)).Scan(&count)
	return count, err
}

// DeleteOlderThan removes healing actions older than the given age and
// returns how many were removed.
func (r *HealingActionRepository) DeleteOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	result, err := r.db.Exec(`DELETE FROM healing_actions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
