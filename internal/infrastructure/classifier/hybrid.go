package classifier

import (
	"context"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// Hybrid runs rule-based first (sub-millisecond) and only calls out to
// llm-direct when the rule-based confidence is low, honoring the caller's
// deadline for the llm-direct half and discarding it on timeout.
type Hybrid struct {
	rule     *RuleBased
	llm      *LLMDirect
	tieBand  float64
}

// NewHybrid builds the hybrid method from its two constituents.
func NewHybrid(rule *RuleBased, llm *LLMDirect, tieBand float64) *Hybrid {
	return &Hybrid{rule: rule, llm: llm, tieBand: tieBand}
}

func (h *Hybrid) Classify(ctx context.Context, text string, cc *service.ClassifierContext) (*entity.ClassificationResult, error) {
	ruleResult, err := h.rule.Classify(ctx, text, cc)
	if err != nil {
		return nil, err
	}

	// Command detection by prefix is authoritative; never escalate to the
	// model for something the rule-based method is certain about.
	if ruleResult.Type == valueobject.RequestCommand {
		return ruleResult, nil
	}

	// Confident enough; skip the round trip.
	if ruleResult.Confidence >= h.rule.cfg.WorkflowThreshold-h.tieBand {
		ruleResult.Method = valueobject.MethodHybrid
		return ruleResult, nil
	}

	llmResult, err := h.llm.Classify(ctx, text, cc)
	if err != nil {
		ruleResult.Method = valueobject.MethodHybrid
		return ruleResult, nil
	}

	// Disagreement: prefer the higher-confidence result, breaking ties in
	// favor of rule-based.
	chosen := ruleResult
	if llmResult.Confidence > ruleResult.Confidence+h.tieBand {
		chosen = llmResult
	}
	chosen.Method = valueobject.MethodHybrid
	return chosen, nil
}
