// Package web provides the REST API for flow management, debtor
// records and execution control.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/cobrex/cobrex/pkg/engine"
	"github.com/cobrex/cobrex/pkg/flow"
	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

type APIHandlers struct {
	flowService *flow.Service
	engine      *engine.Engine
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	flowService *flow.Service,
	eng *engine.Engine,
	persist persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService: flowService,
		engine:      eng,
		persistence: persist,
		validator:   validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(flows)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	f, err := h.flowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(f)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req FlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.flowService.Create(c.Context(), req.Model())
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req FlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.flowService.Update(c.Context(), id, req.Model())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	if err := h.flowService.Delete(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateFlow(c fiber.Ctx) error {
	f, err := h.flowService.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(f)
}

func (h *APIHandlers) DeactivateFlow(c fiber.Ctx) error {
	f, err := h.flowService.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(f)
}

func (h *APIHandlers) GetDebtors(c fiber.Ctx) error {
	debtors, err := h.persistence.Debtors().All(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(debtors)
}

func (h *APIHandlers) GetDebtor(c fiber.Ctx) error {
	debtor, err := h.persistence.Debtors().ByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(debtor)
}

func (h *APIHandlers) CreateDebtor(c fiber.Ctx) error {
	var req DebtorRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	debtor := req.Model()
	if err := h.persistence.Debtors().Save(c.Context(), debtor); err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(debtor)
}

// GetExecutions lists executions, filterable by flow or by status.
func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	ctx := c.Context()

	if flowID := c.Query("flow_id"); flowID != "" {
		executions, err := h.persistence.Executions().ByFlow(ctx, flowID)
		if err != nil {
			return handleError(c, err)
		}

		return c.JSON(executions)
	}

	status := models.ExecutionStatus(c.Query("status", string(models.ExecutionStatusRunning)))

	executions, err := h.persistence.Executions().ByStatus(ctx, status)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(executions)
}

// GetExecution returns one execution with its full evaluation log.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.persistence.Executions().ByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(execution)
}

// StartExecution starts the flow for one debtor, outside the trigger
// detectors. Used by operators to push a single debtor into a journey.
func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	flowID := c.Params("id")
	if flowID == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req StartExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.engine.Start(c.Context(), flowID, req.DebtorID)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

// ResumeExecution force-resumes one due execution, ahead of the
// scheduler.
func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	execution, err := h.engine.Resume(c.Context(), c.Params("id"))
	if err != nil {
		if persistence.IsConflict(err) {
			return conflict(c, "execution is not waiting or not due yet")
		}

		return handleError(c, err)
	}

	return c.JSON(execution)
}
