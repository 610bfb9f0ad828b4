package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

func TestRuleBasedCommandPrefixIsCertain(t *testing.T) {
	r := NewRuleBased(DefaultRuleBasedConfig())
	res, err := r.Classify(context.Background(), `/model switch "gpt-4o"`, nil)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestCommand, res.Type)
	assert.Equal(t, 1.0, res.Confidence)
	require.NotNil(t, res.Command)
	assert.Equal(t, "model", res.Command.Name)
	assert.Equal(t, []string{"switch", "gpt-4o"}, res.Command.Argv)
}

func TestRuleBasedEmptyInputIsPromptZeroConfidence(t *testing.T) {
	r := NewRuleBased(DefaultRuleBasedConfig())
	res, err := r.Classify(context.Background(), "   ", nil)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestPrompt, res.Type)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestRuleBasedMultiStepLooksLikeWorkflow(t *testing.T) {
	r := NewRuleBased(DefaultRuleBasedConfig())
	text := `first run the build, then run the test suite, then deploy @service/main.go "release"`
	res, err := r.Classify(context.Background(), text, nil)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestWorkflow, res.Type)
	assert.Greater(t, res.Confidence, DefaultRuleBasedConfig().WorkflowThreshold)
}

func TestRuleBasedShortChatIsPrompt(t *testing.T) {
	r := NewRuleBased(DefaultRuleBasedConfig())
	res, err := r.Classify(context.Background(), "what time is it", nil)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestPrompt, res.Type)
	assert.GreaterOrEqual(t, res.Confidence, DefaultRuleBasedConfig().PromptConfMin)
	assert.LessOrEqual(t, res.Confidence, DefaultRuleBasedConfig().PromptConfMax)
}

func TestTokenizeHandlesQuotesAndEscapes(t *testing.T) {
	tokens := tokenize(`foo "bar baz" 'qux' esc\ aped`)
	assert.Equal(t, []string{"foo", "bar baz", "qux", "esc aped"}, tokens)
}
