package flow

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/cobrex/cobrex/pkg/models"
)

// Validator checks flow definitions before they are persisted. The
// engine relies on every invariant enforced here, so a flow that fails
// validation must never reach storage.
type Validator struct {
	structs *validator.Validate
	schemas map[models.NodeKind]map[string]any
}

// NewValidator creates a flow validator.
func NewValidator() *Validator {
	return &Validator{
		structs: validator.New(),
		schemas: configSchemas(),
	}
}

// Validate runs every check against the flow and returns a
// ValidationError listing all problems found, or nil.
func (v *Validator) Validate(flow *models.Flow) error {
	var problems []string

	if err := v.structs.Struct(flow); err != nil {
		problems = append(problems, err.Error())
	}

	problems = append(problems, v.checkNodes(flow)...)
	problems = append(problems, v.checkEdges(flow)...)
	problems = append(problems, v.checkTrigger(flow)...)
	problems = append(problems, v.checkBranching(flow)...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}

func (v *Validator) checkNodes(flow *models.Flow) []string {
	var problems []string

	if len(flow.Nodes) == 0 {
		return []string{"flow has no nodes"}
	}

	seen := make(map[string]bool, len(flow.Nodes))

	for _, node := range flow.Nodes {
		if node.ID == "" {
			problems = append(problems, "node with empty ID")

			continue
		}

		if seen[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node ID %q", node.ID))
		}

		seen[node.ID] = true

		if !node.Kind.Known() {
			problems = append(problems, fmt.Sprintf("node %q has unknown kind %q", node.ID, node.Kind))

			continue
		}

		problems = append(problems, v.checkConfig(node)...)
	}

	return problems
}

// checkConfig validates the node's config bag against the JSON schema
// of its kind and then confirms the typed accessor can decode it.
func (v *Validator) checkConfig(node *models.Node) []string {
	schema, ok := v.schemas[node.Kind]
	if !ok {
		return nil
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return []string{fmt.Sprintf("node %q config: %v", node.ID, err)}
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("node %q config: %s", node.ID, desc))
		}

		return problems
	}

	if err := v.decodeConfig(node); err != nil {
		return []string{fmt.Sprintf("node %q config: %v", node.ID, err)}
	}

	return nil
}

func (v *Validator) decodeConfig(node *models.Node) error {
	switch node.Kind {
	case models.KindTrigger:
		_, err := node.TriggerConfig()

		return err
	case models.KindMessage:
		_, err := node.MessageConfig()

		return err
	case models.KindWait:
		_, err := node.WaitConfig()

		return err
	case models.KindUpdateStatus:
		_, err := node.UpdateStatusConfig()

		return err
	case models.KindNegotiate:
		_, err := node.NegotiateConfig()

		return err
	case models.KindCondition:
		_, err := node.ConditionConfig()

		return err
	default:
		return nil
	}
}

func (v *Validator) checkEdges(flow *models.Flow) []string {
	var problems []string

	for _, edge := range flow.Edges {
		if flow.NodeByID(edge.SourceNodeID) == nil {
			problems = append(problems, fmt.Sprintf("edge %q references unknown source node %q", edge.ID, edge.SourceNodeID))
		}

		if flow.NodeByID(edge.TargetNodeID) == nil {
			problems = append(problems, fmt.Sprintf("edge %q references unknown target node %q", edge.ID, edge.TargetNodeID))
		}

		if edge.BranchLabel != "" && edge.BranchLabel != models.BranchYes && edge.BranchLabel != models.BranchNo {
			problems = append(problems, fmt.Sprintf("edge %q has unknown branch label %q", edge.ID, edge.BranchLabel))
		}
	}

	return problems
}

func (v *Validator) checkTrigger(flow *models.Flow) []string {
	var problems []string

	var triggers []*models.Node

	for _, node := range flow.Nodes {
		if node.Kind == models.KindTrigger {
			triggers = append(triggers, node)
		}
	}

	if len(triggers) != 1 {
		return append(problems, fmt.Sprintf("flow must have exactly one trigger node, found %d", len(triggers)))
	}

	trigger := triggers[0]

	if len(flow.IncomingEdges(trigger.ID)) > 0 {
		problems = append(problems, fmt.Sprintf("trigger node %q must not have incoming edges", trigger.ID))
	}

	if len(flow.OutgoingEdges(trigger.ID)) != 1 {
		problems = append(problems, fmt.Sprintf("trigger node %q must have exactly one outgoing edge", trigger.ID))
	}

	return problems
}

// checkBranching enforces the fan-out rules: condition nodes branch
// through labeled yes/no edges, at most one of each; every other node
// has at most one outgoing edge, unlabeled.
func (v *Validator) checkBranching(flow *models.Flow) []string {
	var problems []string

	for _, node := range flow.Nodes {
		outgoing := flow.OutgoingEdges(node.ID)

		if node.Kind == models.KindCondition {
			labels := make(map[string]int)

			for _, edge := range outgoing {
				if edge.BranchLabel == "" {
					problems = append(problems, fmt.Sprintf("condition node %q has unlabeled outgoing edge %q", node.ID, edge.ID))

					continue
				}

				labels[edge.BranchLabel]++
			}

			for label, count := range labels {
				if count > 1 {
					problems = append(problems, fmt.Sprintf("condition node %q has %d outgoing edges labeled %q", node.ID, count, label))
				}
			}

			continue
		}

		if len(outgoing) > 1 {
			problems = append(problems, fmt.Sprintf("node %q has %d outgoing edges, at most one is allowed", node.ID, len(outgoing)))
		}

		for _, edge := range outgoing {
			if edge.BranchLabel != "" {
				problems = append(problems, fmt.Sprintf("edge %q leaving non-condition node %q must not carry a branch label", edge.ID, node.ID))
			}
		}
	}

	return problems
}
