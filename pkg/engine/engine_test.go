package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobrex/cobrex/pkg/engine"
	"github.com/cobrex/cobrex/pkg/executors"
	"github.com/cobrex/cobrex/pkg/executors/status"
	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
	"github.com/cobrex/cobrex/pkg/persistence/file"
)

// stubMessenger stands in for the message executor and records every
// dispatch it receives.
type stubMessenger struct {
	mu    sync.Mutex
	calls []executors.Input
	err   error
}

func (s *stubMessenger) Kind() models.NodeKind {
	return models.KindMessage
}

func (s *stubMessenger) Execute(_ context.Context, input executors.Input, _ *slog.Logger) (*executors.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	s.calls = append(s.calls, input)

	return &executors.Result{Detail: "message sent"}, nil
}

type fixture struct {
	persist   *file.Persistence
	clock     *clockwork.FakeClock
	engine    *engine.Engine
	messenger *stubMessenger
	flow      *models.Flow
	debtor    *models.Debtor
}

// collectionFlow is the reference journey: trigger -> message -> wait 3
// days -> condition on debt_value > 1000 -> (yes) update status to
// negativado, (no) final message.
func collectionFlow() *models.Flow {
	return &models.Flow{
		Name:   "overdue journey",
		Active: true,
		Channel: models.ChannelConfig{
			Provider: "whatsapp",
			From:     "+5511999990000",
		},
		Nodes: []*models.Node{
			{ID: "trigger-1", Kind: models.KindTrigger, Config: map[string]any{"policy": "overdue", "days": 5}},
			{ID: "msg-1", Kind: models.KindMessage, Config: map[string]any{"template": "Hello {{name}}"}},
			{ID: "wait-1", Kind: models.KindWait, Config: map[string]any{"days": 3}},
			{ID: "cond-1", Kind: models.KindCondition, Config: map[string]any{"metric": "debt_value", "operator": ">", "threshold": 1000}},
			{ID: "status-1", Kind: models.KindUpdateStatus, Config: map[string]any{"status": "negativado"}},
			{ID: "msg-2", Kind: models.KindMessage, Config: map[string]any{"template": "Final reminder"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "trigger-1", TargetNodeID: "msg-1"},
			{ID: "e2", SourceNodeID: "msg-1", TargetNodeID: "wait-1"},
			{ID: "e3", SourceNodeID: "wait-1", TargetNodeID: "cond-1"},
			{ID: "e4", SourceNodeID: "cond-1", TargetNodeID: "status-1", BranchLabel: models.BranchYes},
			{ID: "e5", SourceNodeID: "cond-1", TargetNodeID: "msg-2", BranchLabel: models.BranchNo},
		},
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	persist := file.NewPersistence(t.TempDir())
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC))
	messenger := &stubMessenger{}

	registry := executors.NewRegistry(slog.Default())
	registry.Register(messenger)
	registry.Register(status.NewExecutor(persist.Debtors()))

	f := collectionFlow()
	require.NoError(t, persist.Flows().Save(ctx, f))

	debtor := &models.Debtor{
		Name:      "Ana Souza",
		Phone:     "+5511988887777",
		DebtValue: 1500,
		Score:     620,
		DueDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Status:    models.DebtorStatusOpen,
	}
	require.NoError(t, persist.Debtors().Save(ctx, debtor))

	eng := engine.New(persist, registry, engine.Config{Clock: clock})

	return &fixture{
		persist:   persist,
		clock:     clock,
		engine:    eng,
		messenger: messenger,
		flow:      f,
		debtor:    debtor,
	}
}

func TestStartRunsUntilWaitAndSuspends(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	// The execution resumes at the node after the wait, not at the
	// wait node itself.
	assert.Equal(t, "cond-1", execution.CurrentNodeID)

	require.NotNil(t, execution.NextRunAt)
	assert.Equal(t, fx.clock.Now().UTC().AddDate(0, 0, 3), execution.NextRunAt.UTC())

	require.Len(t, fx.messenger.calls, 1)
	assert.Equal(t, "msg-1", fx.messenger.calls[0].NodeID)
	assert.Equal(t, "whatsapp", fx.messenger.calls[0].Channel.Provider)

	// trigger, message, wait
	require.Len(t, execution.Log, 3)
	assert.Equal(t, "trigger-1", execution.Log[0].NodeID)
	assert.Equal(t, "msg-1", execution.Log[1].NodeID)
	assert.Equal(t, "wait-1", execution.Log[2].NodeID)

	stored, err := fx.persist.Executions().ByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, stored.Status)
}

func TestResumeBeforeDueIsRejected(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	fx.clock.Advance(24 * time.Hour)

	_, err = fx.engine.Resume(ctx, execution.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err))

	stored, err := fx.persist.Executions().ByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, stored.Status)
}

func TestResumeTakesYesBranch(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	fx.clock.Advance(72 * time.Hour)

	resumed, err := fx.engine.Resume(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusDone, resumed.Status)
	assert.Nil(t, resumed.NextRunAt)
	require.NotNil(t, resumed.CompletedAt)

	// debt_value 1500 > 1000, so the yes branch negativates the debtor.
	debtor, err := fx.persist.Debtors().ByID(ctx, fx.debtor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DebtorStatusNegativado, debtor.Status)

	assert.Equal(t, "cond-1", resumed.Log[3].NodeID)
	assert.Contains(t, resumed.Log[3].Detail, `taking "yes" branch`)
	assert.Equal(t, "status-1", resumed.Log[4].NodeID)
}

func TestConditionReadsFreshSnapshot(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	// The debtor pays most of the debt while the execution waits.
	debtor, err := fx.persist.Debtors().ByID(ctx, fx.debtor.ID)
	require.NoError(t, err)
	debtor.DebtValue = 200
	require.NoError(t, fx.persist.Debtors().Save(ctx, debtor))

	fx.clock.Advance(72 * time.Hour)

	resumed, err := fx.engine.Resume(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusDone, resumed.Status)

	// The no branch sends the final message instead of negativating.
	stored, err := fx.persist.Debtors().ByID(ctx, fx.debtor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DebtorStatusOpen, stored.Status)

	require.Len(t, fx.messenger.calls, 2)
	assert.Equal(t, "msg-2", fx.messenger.calls[1].NodeID)
}

func TestStartEnforcesOneActiveExecutionPerPair(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	_, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	_, err = fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err))

	executions, err := fx.persist.Executions().ByFlow(ctx, fx.flow.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestConcurrentStartsYieldOneExecution(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case persistence.IsConflict(err):
				conflicts++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
}

func TestConcurrentResumesClaimOnce(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	fx.clock.Advance(72 * time.Hour)

	const attempts = 6

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := fx.engine.Resume(ctx, execution.ID)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				succeeded++
			} else {
				assert.True(t, persistence.IsConflict(err))
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestTerminalExecutionFreesTheSlot(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	fx.clock.Advance(72 * time.Hour)

	done, err := fx.engine.Resume(ctx, execution.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusDone, done.Status)

	// A finished journey no longer blocks a new one.
	second, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)
	assert.NotEqual(t, execution.ID, second.ID)
}

func TestResumeOfTerminalExecutionIsRejected(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	fx.clock.Advance(72 * time.Hour)

	done, err := fx.engine.Resume(ctx, execution.ID)
	require.NoError(t, err)
	require.True(t, done.Terminal())

	callsBefore := len(fx.messenger.calls)

	_, err = fx.engine.Resume(ctx, execution.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err))
	assert.Len(t, fx.messenger.calls, callsBefore)
}

func TestActionFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	fx.messenger.err = errors.New("provider rejected the message")

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusError, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "provider rejected the message")
	require.NotNil(t, execution.CompletedAt)

	last := execution.Log[len(execution.Log)-1]
	assert.Equal(t, "msg-1", last.NodeID)
	assert.Equal(t, models.OutcomeError, last.Outcome)

	// The failed execution left the active slot.
	fx.messenger.err = nil
	_, err = fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)
}

func TestStartRejectsInactiveFlow(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	fx.flow.Active = false
	require.NoError(t, fx.persist.Flows().Save(ctx, fx.flow))

	_, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.Error(t, err)
	assert.True(t, engine.IsFlowInactive(err))
}

func TestStartRejectsUnknownFlowAndDebtor(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	_, err := fx.engine.Start(ctx, "missing", fx.debtor.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsNotFound(err))

	_, err = fx.engine.Start(ctx, fx.flow.ID, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsNotFound(err))
}

func TestDeactivationDoesNotStopWaitingExecutions(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)

	fx.flow.Active = false
	require.NoError(t, fx.persist.Flows().Save(ctx, fx.flow))

	fx.clock.Advance(72 * time.Hour)

	resumed, err := fx.engine.Resume(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusDone, resumed.Status)
}

func TestUnknownNodeFailsExecution(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	execution, err := fx.engine.Start(ctx, fx.flow.ID, fx.debtor.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaiting, execution.Status)

	// The flow is edited underneath the waiting execution and its
	// resume node disappears.
	fx.flow.Nodes = fx.flow.Nodes[:3]
	fx.flow.Edges = fx.flow.Edges[:2]
	require.NoError(t, fx.persist.Flows().Save(ctx, fx.flow))

	fx.clock.Advance(72 * time.Hour)

	resumed, err := fx.engine.Resume(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusError, resumed.Status)
	assert.Contains(t, resumed.ErrorMessage, "not found in flow")
}
