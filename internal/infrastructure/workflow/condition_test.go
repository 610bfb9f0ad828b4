package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
)

func TestEvaluateConditionEmptyIsAlwaysTrue(t *testing.T) {
	assert.True(t, evaluateCondition("", entity.WorkflowState{}))
	assert.True(t, evaluateCondition("   ", entity.WorkflowState{}))
}

func TestEvaluateConditionEquality(t *testing.T) {
	st := entity.WorkflowState{Domain: "code"}
	assert.True(t, evaluateCondition("Domain==code", st))
	assert.False(t, evaluateCondition("Domain==other", st))
	assert.True(t, evaluateCondition(`Domain == "code"`, st))
}

func TestEvaluateConditionInequality(t *testing.T) {
	st := entity.WorkflowState{Domain: "code"}
	assert.False(t, evaluateCondition("Domain!=code", st))
	assert.True(t, evaluateCondition("Domain!=other", st))
}

func TestEvaluateConditionContains(t *testing.T) {
	st := entity.WorkflowState{Output: "hello world"}
	assert.True(t, evaluateCondition("Output contains world", st))
	assert.False(t, evaluateCondition("Output contains bye", st))
}

func TestEvaluateConditionBareFieldTruthiness(t *testing.T) {
	assert.True(t, evaluateCondition("Output", entity.WorkflowState{Output: "x"}))
	assert.False(t, evaluateCondition("Output", entity.WorkflowState{}))
}

func TestFieldValueLastToolSuccess(t *testing.T) {
	st := entity.WorkflowState{}
	assert.Equal(t, "", fieldValue(st, "LastToolSuccess"))

	st.ToolResults = []entity.ToolResult{{Success: true}, {Success: false}}
	assert.Equal(t, "false", fieldValue(st, "LastToolSuccess"))
}
