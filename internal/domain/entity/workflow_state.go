package entity

import (
	"sync"
	"time"
)

// ToolResult is one append-only entry in a WorkflowState's tool-result
// list, produced by a tool node.
type ToolResult struct {
	NodeID    string
	ToolName  string
	Output    string
	Success   bool
	Error     string
	Timestamp time.Time
}

// WorkflowMetadata is the non-reducer bookkeeping carried alongside a
// running workflow: start time, current stage, the ordered list of
// processing steps taken, and simple performance counters. Timestamps are
// monotone non-decreasing as the workflow advances.
type WorkflowMetadata struct {
	StartTime      time.Time
	CurrentStage   string
	ProcessingSteps []string
	NodesExecuted  int
	NodesSkipped   int
	NodesFailed    int
	LastUpdated    time.Time
}

// WorkflowState is the execution state of a running workflow. The
// tool-result list is append-only via Reduce, which is the workflow
// engine's synchronisation point for parallel sibling nodes — it is
// commutative under concurrent append, so children may interleave safely.
type WorkflowState struct {
	mu              sync.Mutex
	Input           string
	Pattern         string
	Domain          string
	ReasoningOutput string
	Output          string
	ToolResults     []ToolResult
	Metadata        WorkflowMetadata
	Cancelled       bool
}

// NewWorkflowState seeds a fresh state with the normalized input text
// staged by the (mandatory, first) input node.
func NewWorkflowState(input string) *WorkflowState {
	now := time.Now()
	return &WorkflowState{
		Input: input,
		Metadata: WorkflowMetadata{
			StartTime:   now,
			LastUpdated: now,
		},
	}
}

// Reduce appends a tool result. Append-only and monotone: the list never
// shrinks and LastUpdated never moves backward, so concurrent calls from
// parallel sibling nodes are safe to interleave in any order.
func (s *WorkflowState) Reduce(r ToolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolResults = append(s.ToolResults, r)
	s.touch()
	if r.Success {
		s.Metadata.NodesExecuted++
	} else {
		s.Metadata.NodesFailed++
	}
}

// RecordStep appends to the ordered processing-step list and advances
// CurrentStage, used by processing/reasoning/decision/validation nodes that
// don't produce a ToolResult.
func (s *WorkflowState) RecordStep(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata.ProcessingSteps = append(s.Metadata.ProcessingSteps, nodeID)
	s.Metadata.CurrentStage = nodeID
	s.Metadata.NodesExecuted++
	s.touch()
}

// RecordSkip records a dependent-of-a-failed-node skip.
func (s *WorkflowState) RecordSkip(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata.NodesSkipped++
	s.touch()
}

func (s *WorkflowState) touch() {
	now := time.Now()
	if now.After(s.Metadata.LastUpdated) {
		s.Metadata.LastUpdated = now
	}
}

// SetReasoningOutput records the output of a reasoning node.
func (s *WorkflowState) SetReasoningOutput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReasoningOutput = text
	s.touch()
}

// SetOutput records the workflow's final output, produced by an output node.
func (s *WorkflowState) SetOutput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Output = text
	s.touch()
}

// Snapshot returns a value copy of the reducer-visible fields only — safe
// for a streaming consumer to read without risk of observing an
// inconsistent intermediate write.
func (s *WorkflowState) Snapshot() WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]ToolResult, len(s.ToolResults))
	copy(results, s.ToolResults)
	steps := make([]string, len(s.Metadata.ProcessingSteps))
	copy(steps, s.Metadata.ProcessingSteps)
	md := s.Metadata
	md.ProcessingSteps = steps
	return WorkflowState{
		Input:           s.Input,
		Pattern:         s.Pattern,
		Domain:          s.Domain,
		ReasoningOutput: s.ReasoningOutput,
		Output:          s.Output,
		ToolResults:     results,
		Metadata:        md,
		Cancelled:       s.Cancelled,
	}
}

// Cancel marks the workflow state cancelled, preserving the partial
// tool-result list already accumulated.
func (s *WorkflowState) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cancelled = true
	s.touch()
}

// IsCancelled reports whether Cancel has been called.
func (s *WorkflowState) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Cancelled
}
