package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobrex/cobrex/pkg/engine"
	"github.com/cobrex/cobrex/pkg/executors"
	"github.com/cobrex/cobrex/pkg/executors/message"
	"github.com/cobrex/cobrex/pkg/executors/status"
	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence/file"
	"github.com/cobrex/cobrex/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	clock := clockwork.NewRealClock()

	registry := executors.NewRegistry(slog.Default())
	registry.Register(message.NewExecutor(message.NewLogSender(slog.Default()), persist.Debtors(), clock))
	registry.Register(status.NewExecutor(persist.Debtors()))

	eng := engine.New(persist, registry, engine.Config{Clock: clock})

	return web.NewApp(persist, eng), persist
}

func flowPayload() web.FlowRequest {
	return web.FlowRequest{
		Name: "overdue journey",
		Channel: models.ChannelConfig{
			Provider: "whatsapp",
			From:     "+5511999990000",
		},
		Nodes: []*models.Node{
			{ID: "trigger-1", Kind: models.KindTrigger, Config: map[string]any{"policy": "overdue", "days": 5}},
			{ID: "msg-1", Kind: models.KindMessage, Config: map[string]any{"template": "Hello {{name}}"}},
			{ID: "wait-1", Kind: models.KindWait, Config: map[string]any{"days": 3}},
			{ID: "msg-2", Kind: models.KindMessage, Config: map[string]any{"template": "Reminder, {{name}}"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "trigger-1", TargetNodeID: "msg-1"},
			{ID: "e2", SourceNodeID: "msg-1", TargetNodeID: "wait-1"},
			{ID: "e3", SourceNodeID: "wait-1", TargetNodeID: "msg-2"},
		},
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()

	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func createFlow(t *testing.T, app *fiber.App) models.Flow {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/flows/", flowPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decode[models.Flow](t, resp)
}

func createDebtor(t *testing.T, app *fiber.App) models.Debtor {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/debtors/", web.DebtorRequest{
		Name:      "Ana Souza",
		Phone:     "+5511988887777",
		DebtValue: 1500,
		DueDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decode[models.Debtor](t, resp)
}

func TestCreateFlow(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createFlow(t, app)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Active)
	assert.Len(t, created.Nodes, 4)
}

func TestCreateFlowRejectsInvalidGraph(t *testing.T) {
	app, _ := setupTestApp(t)

	payload := flowPayload()
	payload.Edges = append(payload.Edges, &models.Edge{ID: "e4", SourceNodeID: "msg-1", TargetNodeID: "msg-2"})

	resp := doJSON(t, app, http.MethodPost, "/flows/", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFlowRejectsBadJSON(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/flows/", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetFlows(t *testing.T) {
	app, _ := setupTestApp(t)
	createFlow(t, app)

	resp := doJSON(t, app, http.MethodGet, "/flows/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	flows := decode[[]models.Flow](t, resp)
	assert.Len(t, flows, 1)
}

func TestGetFlowNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/flows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateFlow(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createFlow(t, app)

	payload := flowPayload()
	payload.Name = "renamed journey"

	resp := doJSON(t, app, http.MethodPut, "/flows/"+created.ID, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decode[models.Flow](t, resp)
	assert.Equal(t, "renamed journey", updated.Name)

	resp = doJSON(t, app, http.MethodPut, "/flows/missing", payload)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteFlow(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createFlow(t, app)

	resp := doJSON(t, app, http.MethodDelete, "/flows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/flows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActivateAndDeactivateFlow(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createFlow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.Flow](t, resp).Active)

	resp = doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.Flow](t, resp).Active)
}

func TestStartExecution(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createFlow(t, app)
	debtor := createDebtor(t, app)

	resp := doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/executions", web.StartExecutionRequest{DebtorID: debtor.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "inactive flow must refuse executions")

	doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/activate", nil)

	resp = doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/executions", web.StartExecutionRequest{DebtorID: debtor.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	execution := decode[models.Execution](t, resp)
	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	assert.NotNil(t, execution.NextRunAt)

	// The slot is occupied while the execution waits.
	resp = doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/executions", web.StartExecutionRequest{DebtorID: debtor.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStartExecutionUnknownDebtor(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createFlow(t, app)
	doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/activate", nil)

	resp := doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/executions", web.StartExecutionRequest{DebtorID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAndListExecutions(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createFlow(t, app)
	debtor := createDebtor(t, app)
	doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/activate", nil)

	resp := doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/executions", web.StartExecutionRequest{DebtorID: debtor.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	execution := decode[models.Execution](t, resp)

	resp = doJSON(t, app, http.MethodGet, "/executions/"+execution.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fetched := decode[models.Execution](t, resp)
	assert.Equal(t, execution.ID, fetched.ID)
	assert.NotEmpty(t, fetched.Log)

	resp = doJSON(t, app, http.MethodGet, "/executions/?flow_id="+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Execution](t, resp), 1)

	resp = doJSON(t, app, http.MethodGet, "/executions/?status=waiting", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Execution](t, resp), 1)
}

func TestResumeExecutionNotDue(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createFlow(t, app)
	debtor := createDebtor(t, app)
	doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/activate", nil)

	resp := doJSON(t, app, http.MethodPost, "/flows/"+created.ID+"/executions", web.StartExecutionRequest{DebtorID: debtor.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	execution := decode[models.Execution](t, resp)

	// The wait is 3 days; an immediate resume must be refused.
	resp = doJSON(t, app, http.MethodPost, "/executions/"+execution.ID+"/resume", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateDebtorValidation(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/debtors/", web.DebtorRequest{Phone: "+551100"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
