package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/queue"
)

type fakeClassifier struct {
	result *entity.ClassificationResult
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, text string, method valueobject.ClassifierMethod, cc *service.ClassifierContext) (*entity.ClassificationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCommandRegistry struct {
	result *service.CommandResult
}

func (f *fakeCommandRegistry) Register(spec service.CommandSpec) error { return nil }
func (f *fakeCommandRegistry) Execute(ctx context.Context, argv []string) (*service.CommandResult, error) {
	return f.result, nil
}
func (f *fakeCommandRegistry) List() []service.CommandSpec          { return nil }
func (f *fakeCommandRegistry) Get(name string) (service.CommandSpec, bool) { return service.CommandSpec{}, false }

type fakeOrchestratorPromptHandler struct {
	text string
}

func (f *fakeOrchestratorPromptHandler) Initialize(ctx context.Context, configPath, schemaPath string) error {
	return nil
}
func (f *fakeOrchestratorPromptHandler) Complete(ctx context.Context, text string, opts service.CompletionOptions) (string, error) {
	return f.text, nil
}
func (f *fakeOrchestratorPromptHandler) Stream(ctx context.Context, text string, opts service.CompletionOptions) (<-chan service.CompletionDelta, error) {
	out := make(chan service.CompletionDelta, 2)
	out <- service.CompletionDelta{Text: f.text}
	out <- service.CompletionDelta{Done: true}
	close(out)
	return out, nil
}
func (f *fakeOrchestratorPromptHandler) GetAvailableProviders() []service.ProviderInfo { return nil }
func (f *fakeOrchestratorPromptHandler) SetActiveProvider(name string) error           { return nil }

func newTestOrchestrator(t *testing.T, cls *entity.ClassificationResult, cmdResult *service.CommandResult, promptText string) (*Orchestrator, *queue.MessageQueue, *queue.MessageQueue) {
	t.Helper()
	logger := zap.NewNop()
	in := queue.New(logger, queue.Config{})
	out := queue.New(logger, queue.Config{})
	session, err := entity.NewSessionState("s1")
	require.NoError(t, err)

	o := New(Deps{
		Inbound:    in,
		Outbound:   out,
		Classifier: &fakeClassifier{result: cls},
		Commands:   &fakeCommandRegistry{result: cmdResult},
		Prompt:     &fakeOrchestratorPromptHandler{text: promptText},
		Session:    session,
		Logger:     logger,
	})
	return o, in, out
}

func enqueueUserInput(t *testing.T, q *queue.MessageQueue, text string) string {
	t.Helper()
	msg, err := entity.NewMessage("in-1", valueobject.KindUserInput, UserInputPayload{Text: text}, valueobject.PriorityNormal)
	require.NoError(t, err)
	res := q.Enqueue(msg)
	require.True(t, res.IsOk())
	id, _ := res.Value()
	return id
}

func TestOrchestratorRoutesPromptAndEmitsFinalResult(t *testing.T) {
	o, in, out := newTestOrchestrator(t, &entity.ClassificationResult{Type: valueobject.RequestPrompt}, nil, "hello there")
	enqueueUserInput(t, in, "say hi")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	outCh, err := out.Iterate(ctx)
	require.NoError(t, err)

	go func() {
		_ = o.Run(ctx)
	}()

	var final *entity.Message
	for msg := range outCh {
		if msg.Kind() == valueobject.KindFinalResult {
			final = msg
			in.Destroy()
			break
		}
	}
	require.NotNil(t, final)
	payload := final.Payload().(ResultPayload)
	assert.Equal(t, "hello there", payload.Text)
}

func TestOrchestratorRoutesCommand(t *testing.T) {
	o, in, out := newTestOrchestrator(t, &entity.ClassificationResult{
		Type:    valueobject.RequestCommand,
		Command: &entity.CommandData{Name: "help", Argv: nil},
	}, &service.CommandResult{Success: true, Message: "ok"}, "")
	enqueueUserInput(t, in, "/help")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outCh, err := out.Iterate(ctx)
	require.NoError(t, err)

	go func() { _ = o.Run(ctx) }()

	var final *entity.Message
	for msg := range outCh {
		if msg.Kind() == valueobject.KindFinalResult {
			final = msg
			in.Destroy()
			break
		}
	}
	require.NotNil(t, final)
	assert.Equal(t, "ok", final.Payload().(ResultPayload).Text)
}

func TestOrchestratorAppStateTransitionsBusyThenReady(t *testing.T) {
	o, in, _ := newTestOrchestrator(t, &entity.ClassificationResult{Type: valueobject.RequestPrompt}, nil, "done")
	var tops []entity.TopState
	o.AppState().OnTransition(func(from, to entity.AppStateSnapshot) {
		tops = append(tops, to.Top)
	})
	enqueueUserInput(t, in, "do it")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	in.Destroy()
	<-done

	assert.Equal(t, []entity.TopState{entity.TopBusy, entity.TopReady}, tops)
	snap := o.AppState().Snapshot()
	assert.Equal(t, entity.TopReady, snap.Top)
}
