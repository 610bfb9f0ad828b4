package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
)

// providerFileConfig is one entry of the provider definitions file Initialize
// loads, independent of the application's own config.Config shape so the
// prompt handler can be pointed at a schema-validated file of its own.
type providerFileConfig struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	BaseURL string   `json:"base_url"`
	APIKey  string   `json:"api_key"`
	Models  []string `json:"models"`
	Enabled bool     `json:"enabled"`
}

// PromptHandler implements service.PromptHandler on top of Router's
// fallback chain. The active provider is switched only between requests —
// SetActiveProvider refuses to change it while a request is in flight.
type PromptHandler struct {
	router *Router
	logger *zap.Logger

	mu            sync.RWMutex
	inFlight      int
	active        string
	providerInfos map[string]service.ProviderInfo
}

// NewPromptHandler wraps an already-constructed Router.
func NewPromptHandler(router *Router, logger *zap.Logger) *PromptHandler {
	return &PromptHandler{
		router:        router,
		logger:        logger,
		providerInfos: make(map[string]service.ProviderInfo),
	}
}

var _ service.PromptHandler = (*PromptHandler)(nil)

// Initialize loads provider definitions from configPath, validates them
// against the schema at schemaPath when non-empty, and opens a Provider
// handle per entry marked enabled.
func (h *PromptHandler) Initialize(ctx context.Context, configPath, schemaPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return apperrors.WrapSystem(apperrors.CodeInvalidConfig, "failed to read provider config", err)
	}

	if schemaPath != "" {
		if err := validateAgainstSchema(data, schemaPath); err != nil {
			return apperrors.WrapSystem(apperrors.CodeInvalidConfig, "provider config failed schema validation", err)
		}
	}

	var entries []providerFileConfig
	if err := json.Unmarshal(data, &entries); err != nil {
		return apperrors.WrapSystem(apperrors.CodeInvalidConfig, "failed to parse provider config", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range entries {
		info := service.ProviderInfo{
			Name:    e.Name,
			Type:    e.Type,
			BaseURL: e.BaseURL,
			Models:  e.Models,
			Enabled: e.Enabled,
		}
		h.providerInfos[e.Name] = info

		if !e.Enabled {
			continue
		}
		provider, err := CreateProvider(ProviderConfig{
			Name:    e.Name,
			Type:    e.Type,
			BaseURL: e.BaseURL,
			APIKey:  e.APIKey,
			Models:  e.Models,
		}, h.logger)
		if err != nil {
			h.logger.Warn("failed to create provider, skipping", zap.String("provider", e.Name), zap.Error(err))
			continue
		}
		h.router.AddProvider(provider)
		if h.active == "" {
			h.active = e.Name
		}
	}

	return nil
}

func validateAgainstSchema(data []byte, schemaPath string) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	c := jsonschema.NewCompiler()
	schema, err := c.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return schema.Validate(doc)
}

// Complete implements service.PromptHandler. Neither it nor the router
// retries a provider: the router's fallback chain tries each distinct
// provider at most once per call.
func (h *PromptHandler) Complete(ctx context.Context, text string, opts service.CompletionOptions) (string, error) {
	h.beginRequest()
	defer h.endRequest()

	model := opts.Model
	if model == "" {
		model = h.activeModel()
	}

	resp, err := h.router.Generate(ctx, &service.LLMRequest{
		Messages:    []service.LLMMessage{{Role: "user", Content: text}},
		Model:       model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", apperrors.WrapSystem(apperrors.CodeAllProvidersExhausted, "all providers failed", err)
	}
	return resp.Content, nil
}

// Stream implements service.PromptHandler's streaming form: it adapts the
// router's StreamChunk channel into CompletionDelta values in emit order,
// terminated by a Done delta carrying the aggregate summary.
func (h *PromptHandler) Stream(ctx context.Context, text string, opts service.CompletionOptions) (<-chan service.CompletionDelta, error) {
	h.beginRequest()

	model := opts.Model
	if model == "" {
		model = h.activeModel()
	}

	raw := make(chan service.StreamChunk)
	out := make(chan service.CompletionDelta)
	drained := make(chan struct{})
	streamed := make(chan struct{})

	// Providers do not close raw, so the forwarder also stops once
	// GenerateStream has returned (every send on raw has completed by then).
	go func() {
		defer close(drained)
		for {
			select {
			case chunk, ok := <-raw:
				if !ok {
					return
				}
				out <- service.CompletionDelta{Text: chunk.DeltaText}
			case <-streamed:
				return
			}
		}
	}()

	go func() {
		defer h.endRequest()
		defer close(out)

		start := time.Now()
		resp, err := h.router.GenerateStream(ctx, &service.LLMRequest{
			Messages:    []service.LLMMessage{{Role: "user", Content: text}},
			Model:       model,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		}, raw)
		close(streamed)
		<-drained // wait until every delta from raw has been forwarded to out

		if err != nil {
			out <- service.CompletionDelta{Done: true, Final: &service.CompletionSummary{Model: model, Elapsed: time.Since(start).Seconds()}}
			return
		}
		out <- service.CompletionDelta{
			Done: true,
			Final: &service.CompletionSummary{
				Model:        resp.ModelUsed,
				OutputTokens: resp.TokensUsed,
				Elapsed:      time.Since(start).Seconds(),
			},
		}
	}()

	return out, nil
}

// GetAvailableProviders implements service.PromptHandler.
func (h *PromptHandler) GetAvailableProviders() []service.ProviderInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statuses := h.router.ListProviders(context.Background())
	circuitOpen := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		circuitOpen[s.Name] = s.CircuitState == "open"
	}

	infos := make([]service.ProviderInfo, 0, len(h.providerInfos))
	for _, info := range h.providerInfos {
		info.CircuitOpen = circuitOpen[info.Name]
		infos = append(infos, info)
	}
	return infos
}

// SetActiveProvider switches the active provider. Rejected while a request
// is in flight.
func (h *PromptHandler) SetActiveProvider(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inFlight > 0 {
		return apperrors.NewBusiness(apperrors.CodeInvalidInput, "cannot switch provider while a request is in flight")
	}
	if _, ok := h.providerInfos[name]; !ok {
		return apperrors.NewValidation(apperrors.CodeInvalidInput, "unknown provider "+name)
	}
	h.active = name
	return nil
}

func (h *PromptHandler) activeModel() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if info, ok := h.providerInfos[h.active]; ok && len(info.Models) > 0 {
		return info.Models[0]
	}
	return ""
}

func (h *PromptHandler) beginRequest() {
	h.mu.Lock()
	h.inFlight++
	h.mu.Unlock()
}

func (h *PromptHandler) endRequest() {
	h.mu.Lock()
	h.inFlight--
	h.mu.Unlock()
}
