package workflow

import (
	"strconv"
	"strings"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
)

// evaluateCondition evaluates a decision node's routing condition — a
// simple "<field> <op> <value>" expression over WorkflowState's
// reducer-visible fields. An empty condition is always true (the
// unconditional/default edge).
func evaluateCondition(condition string, state entity.WorkflowState) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true
	}

	for _, op := range []string{"!=", "=="} {
		if idx := strings.Index(condition, op); idx >= 0 {
			field := strings.TrimSpace(condition[:idx])
			want := strings.Trim(strings.TrimSpace(condition[idx+len(op):]), `"'`)
			got := fieldValue(state, field)
			match := got == want
			if op == "!=" {
				match = !match
			}
			return match
		}
	}

	if idx := strings.Index(condition, "contains"); idx >= 0 {
		field := strings.TrimSpace(condition[:idx])
		needle := strings.Trim(strings.TrimSpace(condition[idx+len("contains"):]), `"'`)
		return strings.Contains(fieldValue(state, field), needle)
	}

	// Bare field name: true when non-empty.
	return fieldValue(state, condition) != ""
}

func fieldValue(state entity.WorkflowState, field string) string {
	switch field {
	case "Input":
		return state.Input
	case "Pattern":
		return state.Pattern
	case "Domain":
		return state.Domain
	case "ReasoningOutput":
		return state.ReasoningOutput
	case "Output":
		return state.Output
	case "NodesExecuted":
		return strconv.Itoa(state.Metadata.NodesExecuted)
	case "NodesFailed":
		return strconv.Itoa(state.Metadata.NodesFailed)
	case "LastToolSuccess":
		if len(state.ToolResults) == 0 {
			return ""
		}
		if state.ToolResults[len(state.ToolResults)-1].Success {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
