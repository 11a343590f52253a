package repository

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"aegis/core/models"
	"aegis/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *HealingActionRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	require.NoError(t, database.Initialize(dsn))
	db := database.GetDB()
	t.Cleanup(func() { db.Close() })
	return NewHealingActionRepository(db)
}

func terminalAction(fix models.FixKind, component string) *models.SelfHealingAction {
	action := models.NewHealingAction(fix, component)
	action.Complete("ok")
	return action
}

func TestCreateAndList(t *testing.T) {
	repo := newTestRepo(t)

	first := terminalAction(models.FixRestartContainer, "redis")
	second := models.NewHealingAction(models.FixFreeMemory, "resources")
	second.Fail("permission denied")

	require.NoError(t, repo.Create(first))
	require.NoError(t, repo.Create(second))

	actions, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	// Insertion order is preserved.
	assert.Equal(t, first.ID, actions[0].ID)
	assert.Equal(t, second.ID, actions[1].ID)

	got := actions[0]
	assert.Equal(t, models.ActionRestart, got.Type)
	assert.Equal(t, models.FixRestartContainer, got.Fix)
	assert.Equal(t, "redis", got.Component)
	assert.Equal(t, models.ActionCompleted, got.Status)
	assert.Equal(t, "ok", got.Result)
	require.NotNil(t, got.CompletedAt)

	assert.Equal(t, models.ActionFailed, actions[1].Status)
	assert.Equal(t, "permission denied", actions[1].Result)
}

func TestListLimit(t *testing.T) {
	repo := newTestRepo(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(terminalAction(models.FixCleanupDisk, "resources")))
	}

	actions, err := repo.List(3)
	require.NoError(t, err)
	assert.Len(t, actions, 3)
}

func TestCount(t *testing.T) {
	repo := newTestRepo(t)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, repo.Create(terminalAction(models.FixRestartContainer, "redis")))
	require.NoError(t, repo.Create(terminalAction(models.FixRestartContainer, "postgres")))

	count, err = repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCountByStatus(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Create(terminalAction(models.FixRestartContainer, "redis")))
	failed := models.NewHealingAction(models.FixFreeMemory, "resources")
	failed.Fail("nope")
	require.NoError(t, repo.Create(failed))

	completed, err := repo.CountByStatus(models.ActionCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)

	failedCount, err := repo.CountByStatus(models.ActionFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failedCount)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := newTestRepo(t)

	old := terminalAction(models.FixRestartContainer, "redis")
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	recent := terminalAction(models.FixRestartContainer, "postgres")

	require.NoError(t, repo.Create(old))
	require.NoError(t, repo.Create(recent))

	removed, err := repo.DeleteOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	actions, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, recent.ID, actions[0].ID)
}

func TestConcurrentAppends(t *testing.T) {
	repo := newTestRepo(t)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			action := terminalAction(models.FixRestartContainer, fmt.Sprintf("container-%d", n))
			assert.NoError(t, repo.Create(action))
		}(i)
	}
	wg.Wait()

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, writers, count)
}
