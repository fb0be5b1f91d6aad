package web

import (
	"time"

	"github.com/cobrex/cobrex/pkg/models"
)

// FlowRequest is the payload for creating or replacing a flow. Graph
// edits always arrive as the whole definition; the validator reasons
// about complete graphs only.
type FlowRequest struct {
	Name        string               `json:"name"        validate:"required,min=3"`
	Description string               `json:"description"`
	Channel     models.ChannelConfig `json:"channel"`
	Nodes       []*models.Node       `json:"nodes"       validate:"required,min=1"`
	Edges       []*models.Edge       `json:"edges"`
}

// Model converts the request into a flow definition.
func (r FlowRequest) Model() *models.Flow {
	return &models.Flow{
		Name:        r.Name,
		Description: r.Description,
		Channel:     r.Channel,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
	}
}

// DebtorRequest is the payload for creating or updating a debtor.
type DebtorRequest struct {
	Name      string              `json:"name"       validate:"required"`
	Phone     string              `json:"phone"`
	DebtValue float64             `json:"debt_value" validate:"min=0"`
	Score     float64             `json:"score"`
	DueDate   time.Time           `json:"due_date"`
	Status    models.DebtorStatus `json:"status"     validate:"omitempty,oneof=open paid broken negativado"`
}

// Model converts the request into a debtor record.
func (r DebtorRequest) Model() *models.Debtor {
	return &models.Debtor{
		Name:      r.Name,
		Phone:     r.Phone,
		DebtValue: r.DebtValue,
		Score:     r.Score,
		DueDate:   r.DueDate,
		Status:    r.Status,
	}
}

// StartExecutionRequest is the payload for starting an execution.
type StartExecutionRequest struct {
	DebtorID string `json:"debtor_id" validate:"required"`
}
