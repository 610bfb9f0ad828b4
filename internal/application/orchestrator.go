// Package application implements the orchestrator: the single consumer of
// the message queue, following a save-route-call-LLM-save pipeline shape
// generalized to the three-way command/prompt/workflow route.
package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/repository"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/queue"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
)

// UserInputPayload is the payload carried by a KindUserInput message.
type UserInputPayload struct {
	Text string
}

// CancelPayload is the payload carried by a KindCancel message; empty
// CorrelationID cancels whatever is currently in flight.
type CancelPayload struct {
	CorrelationID string
}

// ProgressPayload is the payload carried by Progress/PartialResult messages.
type ProgressPayload struct {
	Text  string
	State *entity.WorkflowState
}

// ResultPayload is the payload carried by FinalResult/Error messages.
type ResultPayload struct {
	Text string
	Err  error
}

// Orchestrator is the single consumer of the inbound queue described in
// section 4.8: classify, route, emit progress, publish result. Exactly one
// handler runs at a time; Cancel fires the in-flight handler's cancellation
// token.
type Orchestrator struct {
	inbound  *queue.MessageQueue
	outbound *queue.MessageQueue

	classifier service.Classifier
	commands   service.CommandRegistry
	prompt     service.PromptHandler
	context    service.ContextAssembler
	retriever  service.Retriever
	workflow   service.WorkflowEngine
	sessions   repository.SessionRepository

	appState *entity.AppState
	session  *entity.SessionState

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	inFlightID string

	logger *zap.Logger
}

// Deps aggregates every collaborator the orchestrator routes to. Only
// Inbound/Outbound/Classifier/Commands/Logger are required; the rest may be
// nil without panicking, following infrastructure/command/builtins.go's
// partial-Deps pattern: a nil Prompt turns the prompt route into an Error
// result, a nil Workflow sends workflow requests down the prompt route, a
// nil Context or Retriever skips context enrichment, and a nil Sessions
// skips snapshot writes.
type Deps struct {
	Inbound    *queue.MessageQueue
	Outbound   *queue.MessageQueue
	Classifier service.Classifier
	Commands   service.CommandRegistry
	Prompt     service.PromptHandler
	Context    service.ContextAssembler
	Retriever  service.Retriever
	Workflow   service.WorkflowEngine
	Sessions   repository.SessionRepository
	Session    *entity.SessionState
	Logger     *zap.Logger
}

// New builds an Orchestrator from deps.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		inbound:    deps.Inbound,
		outbound:   deps.Outbound,
		classifier: deps.Classifier,
		commands:   deps.Commands,
		prompt:     deps.Prompt,
		context:    deps.Context,
		retriever:  deps.Retriever,
		workflow:   deps.Workflow,
		sessions:   deps.Sessions,
		appState:   entity.NewAppState(),
		session:    deps.Session,
		logger:     deps.Logger,
	}
}

// AppState exposes the UI state machine for a CLI driver to read.
func (o *Orchestrator) AppState() *entity.AppState { return o.appState }

// PersistSession writes the current session's snapshot, best-effort, per
// the 30s auto-snapshot interval a caller (main.go) drives on a ticker.
// Failures are logged, never propagated — a snapshot write never blocks
// the orchestrator loop.
func (o *Orchestrator) PersistSession(ctx context.Context) {
	if o.sessions == nil || o.session == nil {
		return
	}
	res := o.sessions.Persist(ctx, o.session.ToSnapshot())
	if res.IsErr() {
		o.logger.Warn("session snapshot failed", zap.Error(res.Error()))
	}
}

// Run is the single consumer loop: dequeue, dispatch, repeat, until ctx is
// cancelled or the queue closes.
func (o *Orchestrator) Run(ctx context.Context) error {
	msgs, err := o.inbound.Iterate(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		o.dispatch(ctx, msg)
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, msg *entity.Message) {
	switch msg.Kind() {
	case valueobject.KindUserInput:
		o.handleUserInput(ctx, msg)
	case valueobject.KindCancel:
		o.handleCancel(msg)
	case valueobject.KindConfigReload, valueobject.KindSessionReset:
		o.handleSystem(msg)
	default:
		o.logger.Warn("orchestrator received unroutable message kind", zap.String("kind", string(msg.Kind())))
	}
}

func (o *Orchestrator) handleCancel(msg *entity.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	payload, _ := msg.Payload().(CancelPayload)
	if payload.CorrelationID != "" && payload.CorrelationID != o.inFlightID {
		return
	}
	if o.cancelFunc != nil {
		o.cancelFunc()
	}
}

func (o *Orchestrator) handleSystem(msg *entity.Message) {
	switch msg.Kind() {
	case valueobject.KindSessionReset:
		if fresh, err := entity.NewSessionState(o.session.ID()); err == nil {
			o.session = fresh
		}
	}
	o.publish(valueobject.KindStatusResponse, ResultPayload{Text: fmt.Sprintf("%s applied", msg.Kind())}, msg.ID())
}

func (o *Orchestrator) handleUserInput(ctx context.Context, msg *entity.Message) {
	payload, _ := msg.Payload().(UserInputPayload)
	text := payload.Text

	handlerCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancelFunc = cancel
	o.inFlightID = msg.ID()
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.cancelFunc = nil
		o.inFlightID = ""
		o.mu.Unlock()
		cancel()
	}()

	taskName := text
	if len(taskName) > 40 {
		taskName = taskName[:40] + "..."
	}
	_ = o.appState.Apply(entity.EventStartTask, taskName)

	var handlerErr error
	result, cls := o.classifyAndRoute(handlerCtx, text, msg.ID())
	if cls != nil {
		handlerErr = cls
	}

	if apperrors.IsCancelled(handlerErr) {
		o.publish(valueobject.KindError, ResultPayload{Err: handlerErr}, msg.ID())
		_ = o.appState.Apply(entity.EventTaskError, "")
	} else if handlerErr != nil {
		o.publish(valueobject.KindError, ResultPayload{Err: handlerErr}, msg.ID())
		_ = o.appState.Apply(entity.EventTaskError, "")
	} else {
		o.publish(valueobject.KindFinalResult, ResultPayload{Text: result}, msg.ID())
		_ = o.appState.Apply(entity.EventTaskComplete, "")
	}

	if o.session != nil {
		o.session.AddConversationEntry(entity.ConversationEntry{
			Role: "user", Content: text, Timestamp: time.Now(),
		})
		entryText := result
		if handlerErr != nil {
			entryText = handlerErr.Error()
		}
		o.session.AddConversationEntry(entity.ConversationEntry{
			Role: "assistant", Content: entryText, Timestamp: time.Now(),
		})
	}
}

func (o *Orchestrator) classifyAndRoute(ctx context.Context, text, correlationID string) (string, error) {
	var cc *service.ClassifierContext
	if o.session != nil {
		refs := o.session.FileReferences()
		files := make([]string, 0, len(refs))
		for _, r := range refs {
			files = append(files, r.Path)
		}
		cc = &service.ClassifierContext{ActiveFiles: files}
	}

	cr, err := o.classifier.Classify(ctx, text, "", cc)
	if err != nil {
		return "", apperrors.WrapSystem(apperrors.CodeInternal, "classification failed", err)
	}

	switch cr.Type {
	case valueobject.RequestCommand:
		return o.routeCommand(ctx, cr)
	case valueobject.RequestWorkflow:
		return o.routeWorkflow(ctx, cr, text, correlationID)
	default:
		return o.routePrompt(ctx, cr, text, correlationID)
	}
}

func (o *Orchestrator) routeCommand(ctx context.Context, cr *entity.ClassificationResult) (string, error) {
	if o.commands == nil || cr.Command == nil {
		return "", apperrors.NewBusiness(apperrors.CodeInternal, "no command registry configured")
	}
	res, err := o.commands.Execute(ctx, append([]string{cr.Command.Name}, cr.Command.Argv...))
	if err != nil {
		return "", err
	}
	if !res.Success {
		return res.Message, nil
	}
	return res.Message, nil
}

func (o *Orchestrator) routePrompt(ctx context.Context, cr *entity.ClassificationResult, text, correlationID string) (string, error) {
	if o.prompt == nil {
		return "", apperrors.NewSystem(apperrors.CodeInternal, "no prompt handler configured")
	}

	normalized := text
	if cr.Prompt != nil && cr.Prompt.NormalizedText != "" {
		normalized = cr.Prompt.NormalizedText
	}

	if o.context != nil {
		expanded, resolved, err := o.context.ExpandReferences(ctx, normalized)
		if err == nil {
			normalized = expanded
			if o.session != nil {
				refs := make([]entity.FileReference, 0, len(resolved))
				for _, r := range resolved {
					refs = append(refs, entity.FileReference{Path: r.Path, Resolved: true, Truncated: r.Truncated})
				}
				o.session.SetFileReferences(refs)
			}
			var hits []service.RetrievalHit
			if o.retriever != nil {
				if h, rerr := o.retriever.Search(ctx, normalized, 5); rerr == nil {
					hits = h
				} else {
					o.logger.Debug("retrieval search failed", zap.Error(rerr))
				}
			}

			assembled, err := o.context.AssembleContext(ctx, normalized, resolved, hits, 8000)
			if err == nil {
				var sb strings.Builder
				for _, f := range assembled.Fragments {
					sb.WriteString(f.Text)
					sb.WriteString("\n")
				}
				sb.WriteString(normalized)
				normalized = sb.String()
			}
		}
	}

	deltas, err := o.prompt.Stream(ctx, normalized, service.CompletionOptions{})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for delta := range deltas {
		if ctx.Err() != nil {
			return "", apperrors.NewCancelled("prompt cancelled")
		}
		if delta.Done {
			break
		}
		sb.WriteString(delta.Text)
		o.publish(valueobject.KindPartialResult, ProgressPayload{Text: delta.Text}, correlationID)
	}
	result := sb.String()

	if remember, ok := o.retriever.(memoryRemember); ok {
		if err := remember.Remember(ctx, result); err != nil {
			o.logger.Debug("memory remember failed", zap.Error(err))
		}
	}

	return result, nil
}

// memoryRemember is satisfied by retrievers that can also persist new
// exchanges (e.g. context.MemoryRetriever); plain lookup-only retrievers
// skip this step.
type memoryRemember interface {
	Remember(ctx context.Context, content string) error
}

func (o *Orchestrator) routeWorkflow(ctx context.Context, cr *entity.ClassificationResult, text, correlationID string) (string, error) {
	if o.workflow == nil {
		return o.routePrompt(ctx, cr, text, correlationID)
	}

	hint := text
	if cr.Workflow != nil && cr.Workflow.Hint != "" {
		hint = cr.Workflow.Hint
	}

	var spec *entity.WorkflowSpec
	if cr.Workflow != nil && cr.Workflow.Spec != nil {
		spec = cr.Workflow.Spec
	} else {
		var err error
		spec, err = o.workflow.Extract(ctx, hint, nil)
		if err != nil {
			o.logger.Warn("workflow extraction failed, falling back to prompt", zap.Error(err))
			return o.routePrompt(ctx, cr, text, correlationID)
		}
	}

	if o.session != nil {
		o.session.SetActiveWorkflow(spec)
		defer o.session.SetActiveWorkflow(nil)
	}

	state := entity.NewWorkflowState(text)
	progress, err := o.workflow.Execute(ctx, spec, state)
	if err != nil {
		return "", err
	}

	for tuple := range progress {
		if tuple.IsComplete {
			break
		}
		kind := valueobject.KindProgress
		if tuple.Err != nil {
			kind = valueobject.KindError
		}
		o.publish(kind, ProgressPayload{Text: tuple.NodeID, State: &tuple.State}, correlationID)
	}

	if ctx.Err() != nil || state.IsCancelled() {
		return "", apperrors.NewCancelled("workflow cancelled")
	}
	return state.Output, nil
}

func (o *Orchestrator) publish(kind valueobject.MessageKind, payload interface{}, correlationID string) {
	if o.outbound == nil {
		return
	}
	msg, err := queue.NewMessage(func() string { return fmt.Sprintf("%s-%d", kind, time.Now().UnixNano()) }, kind, payload, valueobject.PriorityNormal)
	if err != nil {
		o.logger.Error("failed to build outbound message", zap.Error(err))
		return
	}
	msg = msg.WithCorrelationID(correlationID)
	if res := o.outbound.Enqueue(msg); res.IsErr() {
		o.logger.Warn("failed to publish outbound message", zap.String("kind", string(kind)))
	}
}
