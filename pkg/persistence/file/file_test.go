package file_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
	"github.com/cobrex/cobrex/pkg/persistence/file"
)

func execution(id string, status models.ExecutionStatus) *models.Execution {
	return &models.Execution{
		ID:            id,
		FlowID:        "flow-1",
		DebtorID:      "debtor-1",
		Status:        status,
		CurrentNodeID: "node-1",
		StartedAt:     time.Now().UTC(),
	}
}

func TestCreateIfVacantOccupiesTheSlot(t *testing.T) {
	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())

	require.NoError(t, persist.Executions().CreateIfVacant(ctx, execution("exec-1", models.ExecutionStatusWaiting)))

	err := persist.Executions().CreateIfVacant(ctx, execution("exec-2", models.ExecutionStatusRunning))
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err))

	// Terminal executions do not occupy the slot.
	done := execution("exec-3", models.ExecutionStatusDone)
	done.DebtorID = "debtor-2"
	require.NoError(t, persist.Executions().CreateIfVacant(ctx, done))
	require.NoError(t, persist.Executions().CreateIfVacant(ctx, func() *models.Execution {
		e := execution("exec-4", models.ExecutionStatusRunning)
		e.DebtorID = "debtor-2"

		return e
	}()))
}

func TestCreateIfVacantUnderContention(t *testing.T) {
	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())

	const attempts = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for i := range attempts {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			e := execution("exec-"+string(rune('a'+n)), models.ExecutionStatusRunning)

			err := persist.Executions().CreateIfVacant(ctx, e)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				succeeded++
			} else {
				assert.True(t, persistence.IsConflict(err))
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestClaimDueTransitionsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())

	now := time.Now().UTC()
	due := now.Add(-time.Hour)

	waiting := execution("exec-1", models.ExecutionStatusWaiting)
	waiting.NextRunAt = &due
	require.NoError(t, persist.Executions().CreateIfVacant(ctx, waiting))

	claimed, err := persist.Executions().ClaimDue(ctx, "exec-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, claimed.Status)
	assert.Nil(t, claimed.NextRunAt)

	_, err = persist.Executions().ClaimDue(ctx, "exec-1", now)
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err))
}

func TestClaimDueRejectsNotYetDue(t *testing.T) {
	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())

	now := time.Now().UTC()
	future := now.Add(time.Hour)

	waiting := execution("exec-1", models.ExecutionStatusWaiting)
	waiting.NextRunAt = &future
	require.NoError(t, persist.Executions().CreateIfVacant(ctx, waiting))

	_, err := persist.Executions().ClaimDue(ctx, "exec-1", now)
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err))
}

func TestDueReturnsOldestFirstWithinLimit(t *testing.T) {
	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())

	now := time.Now().UTC()

	for i, age := range []time.Duration{time.Hour, 3 * time.Hour, 2 * time.Hour} {
		at := now.Add(-age)
		e := execution("exec-"+string(rune('a'+i)), models.ExecutionStatusWaiting)
		e.DebtorID = "debtor-" + string(rune('a'+i))
		e.NextRunAt = &at
		require.NoError(t, persist.Executions().CreateIfVacant(ctx, e))
	}

	due, err := persist.Executions().Due(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "exec-b", due[0].ID)
	assert.Equal(t, "exec-c", due[1].ID)
}
