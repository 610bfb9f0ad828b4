package service

import (
	"context"
	"time"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// ClassifierContext carries optional hints available to a classification
// method beyond the raw text (active file references, recent history).
type ClassifierContext struct {
	ActiveFiles []string
	RecentTurns []string
}

// Classifier performs the three-way command/prompt/workflow classification.
// At least the rule-based method must be registered at startup.
type Classifier interface {
	Classify(ctx context.Context, text string, method valueobject.ClassifierMethod, cc *ClassifierContext) (*entity.ClassificationResult, error)
}

// ClassifierMethodFunc is the shape every pluggable classification method
// implements. Optional (non-rule-based) methods must honor ctx's deadline
// and fall back to a rule-based result on timeout.
type ClassifierMethodFunc func(ctx context.Context, text string, cc *ClassifierContext) (*entity.ClassificationResult, error)

// DefaultClassifyDeadline bounds how long an optional classification method
// (llm-direct, hybrid) may run before the caller falls back to rule-based.
const DefaultClassifyDeadline = 3 * time.Second
