package models

import "time"

// DebtorStatus is the collection status of a debtor as tracked by the
// CRM. "negativado" mirrors the status applied when a debtor is
// reported to a credit bureau.
type DebtorStatus string

const (
	DebtorStatusOpen       DebtorStatus = "open"
	DebtorStatusPaid       DebtorStatus = "paid"
	DebtorStatusBroken     DebtorStatus = "broken"
	DebtorStatusNegativado DebtorStatus = "negativado"
)

// SettledStatuses are the statuses excluded from trigger detection.
var SettledStatuses = []DebtorStatus{DebtorStatusPaid, DebtorStatusBroken}

// Debtor is the CRM record the engine reads and, through status-update
// actions, writes back to.
type Debtor struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	Name          string       `json:"name"  validate:"required"`
	Phone         string       `json:"phone"`
	DebtValue     float64      `json:"debt_value"`
	Score         float64      `json:"score"`
	DueDate       time.Time    `json:"due_date"`
	Status        DebtorStatus `json:"status"`
	LastContactAt *time.Time   `json:"last_contact_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// DebtorSnapshot is the point-in-time read handed to condition
// evaluation and action calls. Conditions always branch on a snapshot
// fetched at evaluation time, never on data captured at start.
type DebtorSnapshot struct {
	DebtorID      string       `json:"debtor_id"`
	Name          string       `json:"name"`
	Phone         string       `json:"phone"`
	Score         float64      `json:"score"`
	DebtValue     float64      `json:"debt_value"`
	DueDate       time.Time    `json:"due_date"`
	Status        DebtorStatus `json:"status"`
	LastContactAt *time.Time   `json:"last_contact_at,omitempty"`
}

// Snapshot produces the point-in-time view of the debtor.
func (d *Debtor) Snapshot() *DebtorSnapshot {
	return &DebtorSnapshot{
		DebtorID:      d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		Score:         d.Score,
		DebtValue:     d.DebtValue,
		DueDate:       d.DueDate,
		Status:        d.Status,
		LastContactAt: d.LastContactAt,
	}
}

// Settled reports whether the debtor left collection entirely.
func (d *Debtor) Settled() bool {
	for _, status := range SettledStatuses {
		if d.Status == status {
			return true
		}
	}

	return false
}
