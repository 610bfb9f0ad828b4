package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
)

type fakeProvider struct {
	name      string
	models    []string
	available bool
	content   string
	err       error
}

func (f *fakeProvider) Name() string            { return f.name }
func (f *fakeProvider) Models() []string         { return f.models }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeProvider) SupportsModel(model string) bool {
	for _, m := range f.models {
		if m == model {
			return true
		}
	}
	return model == ""
}

func (f *fakeProvider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.LLMResponse{Content: f.content, ModelUsed: f.name}, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req *service.LLMRequest, deltaCh chan<- service.StreamChunk) (*service.LLMResponse, error) {
	defer close(deltaCh)
	if f.err != nil {
		return nil, f.err
	}
	deltaCh <- service.StreamChunk{DeltaText: f.content}
	return &service.LLMResponse{Content: f.content, ModelUsed: f.name}, nil
}

func newTestHandler(t *testing.T, providers ...*fakeProvider) *PromptHandler {
	t.Helper()
	router := NewRouter(zap.NewNop())
	h := NewPromptHandler(router, zap.NewNop())
	for _, p := range providers {
		router.AddProvider(p)
		h.providerInfos[p.name] = service.ProviderInfo{Name: p.name, Models: p.models, Enabled: true}
	}
	if len(providers) > 0 {
		h.active = providers[0].name
	}
	return h
}

func TestCompleteReturnsProviderContent(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{name: "a", models: []string{"m1"}, available: true, content: "hello"})

	out, err := h.Complete(context.Background(), "hi", service.CompletionOptions{Model: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestCompleteSurfacesAllProvidersExhausted(t *testing.T) {
	h := newTestHandler(t) // no providers registered at all

	_, err := h.Complete(context.Background(), "hi", service.CompletionOptions{Model: "m1"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAllProvidersExhausted))
}

func TestStreamEmitsDeltasThenDone(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{name: "a", models: []string{"m1"}, available: true, content: "partial"})

	deltas, err := h.Stream(context.Background(), "hi", service.CompletionOptions{Model: "m1"})
	require.NoError(t, err)

	var texts []string
	var sawDone bool
	for d := range deltas {
		if d.Done {
			sawDone = true
			require.NotNil(t, d.Final)
			continue
		}
		texts = append(texts, d.Text)
	}
	assert.True(t, sawDone)
	assert.Equal(t, []string{"partial"}, texts)
}

func TestSetActiveProviderRejectsUnknown(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{name: "a", models: []string{"m1"}, available: true})

	err := h.SetActiveProvider("does-not-exist")
	require.Error(t, err)
}

func TestSetActiveProviderRejectsWhileInFlight(t *testing.T) {
	h := newTestHandler(t,
		&fakeProvider{name: "a", models: []string{"m1"}, available: true, content: "x"},
		&fakeProvider{name: "b", models: []string{"m1"}, available: true, content: "y"},
	)

	h.beginRequest()
	defer h.endRequest()

	err := h.SetActiveProvider("b")
	require.Error(t, err)
}

func TestGetAvailableProvidersReportsConfiguredSet(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{name: "a", models: []string{"m1"}, available: true})

	infos := h.GetAvailableProviders()
	require.Len(t, infos, 1)
	assert.Equal(t, "a", infos[0].Name)
}
