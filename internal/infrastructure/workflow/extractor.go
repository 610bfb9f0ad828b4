// Package workflow implements domain/service.WorkflowEngine: extracting a
// WorkflowSpec from natural language and executing it against a
// WorkflowState.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
)

// extractionDoc is the structured-output wire format a LLM completion is
// parsed into, bound by extractionSchemaJSON before conversion to
// entity.WorkflowSpec.
type extractionDoc struct {
	Name  string          `json:"name"`
	Nodes []extractedNode `json:"nodes"`
	Edges []extractedEdge `json:"edges"`
}

type extractedNode struct {
	ID           string                 `json:"id"`
	Kind         string                 `json:"kind"`
	RequiredTool string                 `json:"required_tool"`
	Dependencies []string               `json:"dependencies"`
	BestEffort   bool                   `json:"best_effort"`
	Parameters   map[string]interface{} `json:"parameters"`
}

type extractedEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition"`
}

// Extractor implements the Extract half of service.WorkflowEngine.
type Extractor struct {
	promptHandler service.PromptHandler
	schema        *jsonschema.Schema
	logger        *zap.Logger
}

// NewExtractor builds an Extractor. promptHandler may be nil — Extract then
// always falls back to the rule-based skeleton.
func NewExtractor(promptHandler service.PromptHandler, logger *zap.Logger) (*Extractor, error) {
	c := jsonschema.NewCompiler()
	var doc interface{}
	if err := json.Unmarshal([]byte(extractionSchemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("parse extraction schema: %w", err)
	}
	if err := c.AddResource("workflow-extraction.json", doc); err != nil {
		return nil, fmt.Errorf("add extraction schema resource: %w", err)
	}
	schema, err := c.Compile("workflow-extraction.json")
	if err != nil {
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	return &Extractor{promptHandler: promptHandler, schema: schema, logger: logger}, nil
}

// Extract builds a WorkflowSpec from hint via structured LLM output bound
// to the extraction schema, retrying once with a tighter prompt on
// malformed output, then falling back to a rule-based skeleton.
func (e *Extractor) Extract(ctx context.Context, hint string, cc *service.ClassifierContext) (*entity.WorkflowSpec, error) {
	if e.promptHandler != nil {
		if spec, err := e.tryLLMExtract(ctx, hint, cc, false); err == nil {
			return spec, nil
		}
		if spec, err := e.tryLLMExtract(ctx, hint, cc, true); err == nil {
			return spec, nil
		}
		e.logger.Warn("llm workflow extraction failed twice, falling back to rule-based skeleton")
	}

	spec := ruleBasedSkeleton(hint)
	if err := spec.Validate(); err != nil {
		return nil, apperrors.WrapSystem(apperrors.CodeExtractionFailed, "fallback skeleton failed validation", err)
	}
	return spec, nil
}

func (e *Extractor) tryLLMExtract(ctx context.Context, hint string, cc *service.ClassifierContext, tighter bool) (*entity.WorkflowSpec, error) {
	prompt := extractionPrompt(hint, cc, tighter)
	raw, err := e.promptHandler.Complete(ctx, prompt, service.CompletionOptions{Temperature: 0, MaxTokens: 1500})
	if err != nil {
		return nil, err
	}

	jsonText := extractJSONObject(raw)
	var doc interface{}
	if err := json.Unmarshal([]byte(jsonText), &doc); err != nil {
		return nil, apperrors.WrapSystem(apperrors.CodeExtractionFailed, "extraction response is not valid JSON", err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return nil, apperrors.WrapSystem(apperrors.CodeExtractionFailed, "extraction response failed schema validation", err)
	}

	var ed extractionDoc
	if err := json.Unmarshal([]byte(jsonText), &ed); err != nil {
		return nil, apperrors.WrapSystem(apperrors.CodeExtractionFailed, "extraction response decode failed", err)
	}

	spec := ed.toSpec()
	if err := spec.Validate(); err != nil {
		return nil, apperrors.WrapSystem(apperrors.CodeExtractionFailed, "extracted spec failed graph validation", err)
	}
	return spec, nil
}

func (ed extractionDoc) toSpec() *entity.WorkflowSpec {
	nodes := make([]*entity.WorkflowNode, 0, len(ed.Nodes))
	for _, n := range ed.Nodes {
		nodes = append(nodes, &entity.WorkflowNode{
			ID:           n.ID,
			Kind:         valueobject.NodeKind(n.Kind),
			Parameters:   n.Parameters,
			RequiredTool: n.RequiredTool,
			Dependencies: n.Dependencies,
			BestEffort:   n.BestEffort,
		})
	}
	edges := make([]*entity.WorkflowEdge, 0, len(ed.Edges))
	for _, e := range ed.Edges {
		edges = append(edges, &entity.WorkflowEdge{From: e.From, To: e.To, Condition: e.Condition})
	}
	name := ed.Name
	if name == "" {
		name = "extracted-workflow"
	}
	return &entity.WorkflowSpec{ID: name, Name: name, Nodes: nodes, Edges: edges}
}

func extractionPrompt(hint string, cc *service.ClassifierContext, tighter bool) string {
	var sb strings.Builder
	sb.WriteString("Produce a workflow spec as a single JSON object matching this schema:\n")
	sb.WriteString(extractionSchemaJSON)
	sb.WriteString("\n\nNode kinds: input (exactly one, first), processing, tool, reasoning, decision, validation, output (at least one).\n")
	if tighter {
		sb.WriteString("Your previous response was malformed or violated the graph invariants (no dangling edges, no cycles, exactly one input node, at least one output node reachable from it). Return ONLY the corrected JSON object, nothing else.\n")
	}
	sb.WriteString("\nUser request: ")
	sb.WriteString(hint)
	if cc != nil && len(cc.ActiveFiles) > 0 {
		sb.WriteString("\nActive files: ")
		sb.WriteString(strings.Join(cc.ActiveFiles, ", "))
	}
	return sb.String()
}

func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// ruleBasedSkeleton builds the fallback one-input/one-processing/one-output
// chain spec.md names for when LLM extraction is unavailable or fails twice.
func ruleBasedSkeleton(hint string) *entity.WorkflowSpec {
	return &entity.WorkflowSpec{
		ID:   "rule-based-skeleton",
		Name: "rule-based-skeleton",
		Nodes: []*entity.WorkflowNode{
			{ID: "in", Kind: valueobject.NodeInput},
			{ID: "process", Kind: valueobject.NodeProcessing, Dependencies: []string{"in"}},
			{ID: "out", Kind: valueobject.NodeOutput, Dependencies: []string{"process"}},
		},
		Edges: []*entity.WorkflowEdge{
			{From: "in", To: "process"},
			{From: "process", To: "out"},
		},
	}
}
