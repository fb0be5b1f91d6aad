package flow

import "github.com/cobrex/cobrex/pkg/models"

// configSchemas holds the JSON schema for each node kind's config bag.
// Validating configs here, at save time, is what lets the engine decode
// them without defensive checks during execution.
func configSchemas() map[models.NodeKind]map[string]any {
	return map[models.NodeKind]map[string]any{
		models.KindTrigger: {
			"type":     "object",
			"required": []any{"policy", "days"},
			"properties": map[string]any{
				"policy": map[string]any{
					"type": "string",
					"enum": []any{string(models.TriggerPolicyOverdue), string(models.TriggerPolicyNoContact)},
				},
				"days": map[string]any{
					"type":    "integer",
					"minimum": 0,
				},
			},
		},
		models.KindMessage: {
			"type":     "object",
			"required": []any{"template"},
			"properties": map[string]any{
				"template": map[string]any{
					"type":      "string",
					"minLength": 1,
				},
			},
		},
		models.KindWait: {
			"type":     "object",
			"required": []any{"days"},
			"properties": map[string]any{
				"days": map[string]any{
					"type":    "integer",
					"minimum": 1,
				},
			},
		},
		models.KindUpdateStatus: {
			"type":     "object",
			"required": []any{"status"},
			"properties": map[string]any{
				"status": map[string]any{
					"type": "string",
					"enum": []any{
						string(models.DebtorStatusOpen),
						string(models.DebtorStatusPaid),
						string(models.DebtorStatusBroken),
						string(models.DebtorStatusNegativado),
					},
				},
			},
		},
		models.KindNegotiate: {
			"type": "object",
			"properties": map[string]any{
				"objective": map[string]any{
					"type": "string",
				},
			},
		},
		models.KindCondition: {
			"type":     "object",
			"required": []any{"metric", "operator", "threshold"},
			"properties": map[string]any{
				"metric": map[string]any{
					"type": "string",
					"enum": []any{string(models.MetricDebtValue), string(models.MetricScore)},
				},
				"operator": map[string]any{
					"type": "string",
					"enum": []any{
						string(models.OperatorLT),
						string(models.OperatorLE),
						string(models.OperatorGT),
						string(models.OperatorGE),
						string(models.OperatorEQ),
					},
				},
				"threshold": map[string]any{
					"type": "number",
				},
			},
		},
	}
}
