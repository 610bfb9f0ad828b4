package entity

import "github.com/qi-prompt/qi-prompt/internal/domain/valueobject"

// ClassificationResult is produced by the classifier for every line of
// input before it is routed to a handler.
type ClassificationResult struct {
	Type       valueobject.RequestKind
	Confidence float64
	Method     valueobject.ClassifierMethod
	Command    *CommandData
	Prompt     *PromptData
	Workflow   *WorkflowData
	Reasoning  string
}

// CommandData is the extracted data for a command classification.
type CommandData struct {
	Name string
	Argv []string
}

// PromptData is the extracted data for a prompt classification.
type PromptData struct {
	NormalizedText string
}

// WorkflowData is the extracted data for a workflow classification: either
// a fully-formed candidate spec or just a textual hint for the extractor.
type WorkflowData struct {
	Hint string
	Spec *WorkflowSpec
}
