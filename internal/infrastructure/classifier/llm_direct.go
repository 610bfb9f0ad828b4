package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// llmClassificationResponse is the structured-output shape requested from the
// provider; a malformed or non-JSON reply falls back to rule-based.
type llmClassificationResponse struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// LLMDirect asks the active provider to classify the input directly.
// Honors the caller's deadline and always falls back to RuleBased on
// timeout or a malformed response.
type LLMDirect struct {
	handler   service.PromptHandler
	fallback  *RuleBased
}

// NewLLMDirect builds an llm-direct method backed by handler, falling back
// to fallback on any failure.
func NewLLMDirect(handler service.PromptHandler, fallback *RuleBased) *LLMDirect {
	return &LLMDirect{handler: handler, fallback: fallback}
}

func (l *LLMDirect) Classify(ctx context.Context, text string, cc *service.ClassifierContext) (*entity.ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, service.DefaultClassifyDeadline)
	defer cancel()

	prompt := classificationPrompt(text, cc)
	raw, err := l.handler.Complete(ctx, prompt, service.CompletionOptions{Temperature: 0, MaxTokens: 200})
	if err != nil {
		return l.fallback.Classify(context.Background(), text, cc)
	}

	var parsed llmClassificationResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return l.fallback.Classify(context.Background(), text, cc)
	}

	kind := valueobject.RequestKind(parsed.Type)
	if kind != valueobject.RequestCommand && kind != valueobject.RequestPrompt && kind != valueobject.RequestWorkflow {
		return l.fallback.Classify(context.Background(), text, cc)
	}

	result := &entity.ClassificationResult{
		Type:       kind,
		Confidence: clamp(parsed.Confidence, 0, 1),
		Method:     valueobject.MethodLLMDirect,
		Reasoning:  parsed.Reasoning,
	}
	switch kind {
	case valueobject.RequestCommand:
		name, argv := parseCommandLine(strings.TrimPrefix(strings.TrimSpace(text), CommandPrefix))
		result.Command = &entity.CommandData{Name: name, Argv: argv}
	case valueobject.RequestWorkflow:
		result.Workflow = &entity.WorkflowData{Hint: text}
	default:
		result.Prompt = &entity.PromptData{NormalizedText: text}
	}
	return result, nil
}

func classificationPrompt(text string, cc *service.ClassifierContext) string {
	var sb strings.Builder
	sb.WriteString("Classify the following user input as exactly one of \"command\", \"prompt\", or \"workflow\". ")
	sb.WriteString("Respond with JSON: {\"type\": ..., \"confidence\": 0..1, \"reasoning\": ...}.\n\n")
	if cc != nil && len(cc.ActiveFiles) > 0 {
		sb.WriteString(fmt.Sprintf("Active files: %s\n", strings.Join(cc.ActiveFiles, ", ")))
	}
	sb.WriteString("Input: ")
	sb.WriteString(text)
	return sb.String()
}

// extractJSON trims leading/trailing prose a model sometimes wraps its JSON
// reply in, returning the first balanced-looking {...} span.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
