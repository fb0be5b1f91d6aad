package resumer_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
	"github.com/cobrex/cobrex/pkg/persistence/file"
	"github.com/cobrex/cobrex/pkg/resumer"
)

type stubEngine struct {
	resumed  []string
	failWith map[string]error
}

func (s *stubEngine) Resume(_ context.Context, executionID string) (*models.Execution, error) {
	if err, ok := s.failWith[executionID]; ok {
		return nil, err
	}

	s.resumed = append(s.resumed, executionID)

	return &models.Execution{ID: executionID, Status: models.ExecutionStatusDone}, nil
}

func waitingExecution(t *testing.T, persist *file.Persistence, nextRunAt time.Time) *models.Execution {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	execution := &models.Execution{
		ID:            id.String(),
		FlowID:        "flow-1",
		DebtorID:      id.String() + "-debtor",
		Status:        models.ExecutionStatusWaiting,
		CurrentNodeID: "cond-1",
		NextRunAt:     &nextRunAt,
		StartedAt:     nextRunAt.AddDate(0, 0, -3),
	}
	require.NoError(t, persist.Executions().CreateIfVacant(context.Background(), execution))

	return execution
}

func TestResumerAdvancesOnlyDueExecutions(t *testing.T) {
	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	eng := &stubEngine{}

	due := waitingExecution(t, persist, now.Add(-time.Hour))
	waitingExecution(t, persist, now.Add(48*time.Hour))

	r := resumer.New(persist, eng, clock, slog.Default(), 0)

	resumed, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	assert.Equal(t, []string{due.ID}, eng.resumed)
}

func TestResumerHonorsBatchBoundOldestFirst(t *testing.T) {
	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	eng := &stubEngine{}

	oldest := waitingExecution(t, persist, now.Add(-72*time.Hour))
	middle := waitingExecution(t, persist, now.Add(-48*time.Hour))
	waitingExecution(t, persist, now.Add(-time.Hour))

	r := resumer.New(persist, eng, clock, slog.Default(), 2)

	resumed, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed)
	assert.Equal(t, []string{oldest.ID, middle.ID}, eng.resumed)

	// The next pass catches the rest.
	resumed, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
}

func TestResumerSkipsLostClaimsAndFailures(t *testing.T) {
	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	claimed := waitingExecution(t, persist, now.Add(-3*time.Hour))
	broken := waitingExecution(t, persist, now.Add(-2*time.Hour))
	clean := waitingExecution(t, persist, now.Add(-time.Hour))

	eng := &stubEngine{failWith: map[string]error{
		claimed.ID: persistence.ErrExecutionConflict,
		broken.ID:  errors.New("boom"),
	}}

	r := resumer.New(persist, eng, clock, slog.Default(), 0)

	resumed, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	assert.Equal(t, []string{clean.ID}, eng.resumed)
}
