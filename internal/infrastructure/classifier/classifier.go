package classifier

import (
	"context"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// method is the common shape every registered classification method
// implements; RuleBased, LLMDirect, and Hybrid all satisfy it.
type method interface {
	Classify(ctx context.Context, text string, cc *service.ClassifierContext) (*entity.ClassificationResult, error)
}

// Dispatcher selects among registered methods by name, defaulting to the
// configured priority order when the caller names none. Rule-based must
// always be registered; it is also the universal timeout fallback.
type Dispatcher struct {
	methods        map[valueobject.ClassifierMethod]method
	methodPriority []valueobject.ClassifierMethod
	ruleBased      *RuleBased
}

// NewDispatcher builds a Dispatcher. ruleBased must be non-nil; methods
// absent from the map are simply unavailable, not an error, even when a
// caller names one explicitly: Classify then falls back to the priority
// order.
func NewDispatcher(ruleBased *RuleBased, llmDirect *LLMDirect, hybrid *Hybrid, priority []valueobject.ClassifierMethod) *Dispatcher {
	methods := map[valueobject.ClassifierMethod]method{
		valueobject.MethodRuleBased: ruleBased,
	}
	if llmDirect != nil {
		methods[valueobject.MethodLLMDirect] = llmDirect
	}
	if hybrid != nil {
		methods[valueobject.MethodHybrid] = hybrid
	}
	return &Dispatcher{methods: methods, methodPriority: priority, ruleBased: ruleBased}
}

var _ service.Classifier = (*Dispatcher)(nil)

// Classify implements service.Classifier. When method is empty, the
// dispatcher walks methodPriority in order, using the first one that is
// registered.
func (d *Dispatcher) Classify(ctx context.Context, text string, preferred valueobject.ClassifierMethod, cc *service.ClassifierContext) (*entity.ClassificationResult, error) {
	if preferred != "" {
		if m, ok := d.methods[preferred]; ok {
			return m.Classify(ctx, text, cc)
		}
	}

	for _, name := range d.methodPriority {
		if m, ok := d.methods[name]; ok {
			return m.Classify(ctx, text, cc)
		}
	}

	return d.ruleBased.Classify(ctx, text, cc)
}
