// Command qi-prompt is the single entrypoint: it wires config, the
// interactive pipeline (queue, classifier, command registry, prompt
// handler, context assembler, tool provider, workflow engine) and one of
// the three CLI rendering backends, per section 6's external interface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/application"
	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/memory"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/tool"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/classifier"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/command"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/config"
	ctxassembler "github.com/qi-prompt/qi-prompt/internal/infrastructure/context"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/embedding"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/llm"
	_ "github.com/qi-prompt/qi-prompt/internal/infrastructure/llm/anthropic"
	_ "github.com/qi-prompt/qi-prompt/internal/infrastructure/llm/gemini"
	_ "github.com/qi-prompt/qi-prompt/internal/infrastructure/llm/openai"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/logger"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/queue"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/sandbox"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/session"
	infratool "github.com/qi-prompt/qi-prompt/internal/infrastructure/tool"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/vectorstore"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/workflow"
	infracli "github.com/qi-prompt/qi-prompt/internal/interfaces/cli"
	"github.com/qi-prompt/qi-prompt/pkg/safego"
)

const (
	appName    = "qi-prompt"
	appVersion = "0.1.0"
)

// exit codes per section 6.
const (
	exitOK        = 0
	exitFailure   = 1
	exitBadArgs   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		framework  string
		configPath string
		schemaPath string
		envPath    string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "qi-prompt — local AI coding assistant CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" || schemaPath == "" {
				return errBadArgs{fmt.Errorf("--config-path and --schema-path are required")}
			}
			return runInteractive(cmd.Context(), runOpts{
				framework:  framework,
				configPath: configPath,
				schemaPath: schemaPath,
				envPath:    envPath,
				debug:      debug,
			})
		},
	}

	rootCmd.Flags().StringVar(&framework, "framework", "hybrid", "rendering backend: readline|rich|hybrid")
	rootCmd.Flags().StringVar(&configPath, "config-path", "", "configuration file (required)")
	rootCmd.Flags().StringVar(&schemaPath, "schema-path", "", "provider-schema file (required)")
	rootCmd.Flags().StringVar(&envPath, "env-path", "", "environment-variable override file")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "verbose diagnostic output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "sanity-check that the config file and schema file exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(configPath, schemaPath)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		var bad errBadArgs
		if ok := asErrBadArgs(err, &bad); ok {
			fmt.Fprintln(os.Stderr, bad.err)
			return exitBadArgs
		}
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	return exitOK
}

// errBadArgs distinguishes a bad-arguments failure (exit 2) from every
// other unexpected failure (exit 1).
type errBadArgs struct{ err error }

func (e errBadArgs) Error() string { return e.err.Error() }

func asErrBadArgs(err error, target *errBadArgs) bool {
	if e, ok := err.(errBadArgs); ok {
		*target = e
		return true
	}
	return false
}

type runOpts struct {
	framework  string
	configPath string
	schemaPath string
	envPath    string
	debug      bool
}

func runInteractive(ctx context.Context, opts runOpts) error {
	if _, err := os.Stat(opts.configPath); err != nil {
		return errBadArgs{fmt.Errorf("config file not found: %s", opts.configPath)}
	}
	if _, err := os.Stat(opts.schemaPath); err != nil {
		return errBadArgs{fmt.Errorf("schema file not found: %s", opts.schemaPath)}
	}

	logLevel, logFormat := "info", "console"
	if opts.debug {
		logLevel = "debug"
	}
	log, err := logger.NewLogger(logger.Config{Level: logLevel, Format: logFormat, OutputPath: "stdout"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfgRes := config.Load(opts.configPath, opts.envPath)
	if cfgRes.IsErr() {
		return fmt.Errorf("config: %w", cfgRes.Error())
	}
	cfg, _ := cfgRes.Value()
	if opts.framework != "" {
		cfg.UI.Framework = opts.framework
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// --- session repository ---
	db, err := session.NewIndexDB(cfg.Session)
	if err != nil {
		return fmt.Errorf("session index: %w", err)
	}
	sessionRepo, err := session.NewRepository(db, cfg.Session.SnapshotDir, log)
	if err != nil {
		return fmt.Errorf("session repository: %w", err)
	}
	sessionState, err := entity.NewSessionState(fmt.Sprintf("session-%d", time.Now().UnixNano()))
	if err != nil {
		return fmt.Errorf("session state: %w", err)
	}

	// --- LLM router / prompt handler ---
	router := llm.NewRouter(log)
	for _, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		router.AddProvider(llm.NewOpenAIBuiltinProvider(llm.ProviderConfig{
			Name: p.Name, BaseURL: p.BaseURL, APIKey: p.APIKey, Models: p.Models,
		}, log))
	}
	promptHandler := llm.NewPromptHandler(router, log)
	if err := promptHandler.Initialize(ctx, opts.configPath, opts.schemaPath); err != nil {
		log.Warn("prompt handler initialize skipped", zap.Error(err))
	}

	// --- classifier ---
	ruleCfg := classifier.RuleBasedConfig{
		WorkflowThreshold: cfg.Classifier.WorkflowThreshold,
		TieBand:           cfg.Classifier.TieBand,
		PromptConfMin:     cfg.Classifier.PromptConfMin,
		PromptConfMax:     cfg.Classifier.PromptConfMax,
	}
	ruleBased := classifier.NewRuleBased(ruleCfg)
	llmDirect := classifier.NewLLMDirect(promptHandler, ruleBased)
	hybrid := classifier.NewHybrid(ruleBased, llmDirect, cfg.Classifier.TieBand)
	methodPriority := make([]valueobject.ClassifierMethod, 0, len(cfg.Classifier.MethodPriority))
	for _, m := range cfg.Classifier.MethodPriority {
		methodPriority = append(methodPriority, valueobject.ClassifierMethod(m))
	}
	dispatcher := classifier.NewDispatcher(ruleBased, llmDirect, hybrid, methodPriority)

	// --- tool layer ---
	sandboxCfg := sandbox.DefaultConfig()
	workspace, _ := os.Getwd()
	sandboxCfg.WorkDir = workspace
	procSandbox, err := sandbox.NewProcessSandbox(sandboxCfg, log)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	toolRegistry := tool.NewInMemoryRegistry()
	toolExecutor := infratool.NewExecutor(toolRegistry, &tool.Policy{Profile: "coding"}, log)
	registered := infratool.RegisterAllTools(infratool.ToolLayerDeps{
		Registry:  toolRegistry,
		Logger:    log,
		Sandbox:   procSandbox,
		Workspace: workspace,
	})
	log.Info("tool layer ready", zap.Int("tools_registered", registered))
	toolProvider := infratool.NewProvider(toolRegistry, toolExecutor, log)

	// --- context assembler ---
	assembler := ctxassembler.NewAssembler(workspace, "", log)

	// --- optional long-term memory retrieval backend ---
	var retriever service.Retriever
	if cfg.Memory.Enabled {
		r, err := buildRetriever(cfg.Memory, sessionState, log)
		if err != nil {
			log.Warn("memory retrieval backend disabled", zap.Error(err))
		} else {
			retriever = r
		}
	}

	// --- workflow engine ---
	extractor, err := workflow.NewExtractor(promptHandler, log)
	if err != nil {
		return fmt.Errorf("workflow extractor: %w", err)
	}
	concurrentCap := cfg.Workflow.ConcurrentToolCap
	engine := workflow.NewEngine(extractor, toolProvider, assembler, concurrentCap, log)

	// --- command registry ---
	cmdRegistry := command.NewRegistry()
	if err := command.RegisterBuiltins(cmdRegistry, command.Deps{
		Registry:      cmdRegistry,
		PromptHandler: promptHandler,
		ToolProvider:  toolProvider,
		Session:       func() *entity.SessionState { return sessionState },
	}); err != nil {
		return fmt.Errorf("command registry: %w", err)
	}

	// --- queues + orchestrator ---
	inbound := queue.New(log, queue.Config{})
	outbound := queue.New(log, queue.Config{})
	orch := application.New(application.Deps{
		Inbound:    inbound,
		Outbound:   outbound,
		Classifier: dispatcher,
		Commands:   cmdRegistry,
		Prompt:     promptHandler,
		Context:    assembler,
		Retriever:  retriever,
		Workflow:   engine,
		Sessions:   sessionRepo,
		Session:    sessionState,
		Logger:     log,
	})

	// --- config watcher: ConfigReload system message ---
	watcher, err := config.NewWatcher(opts.configPath, opts.envPath, log, func(*config.Config) {
		msg, err := queue.NewMessage(func() string { return fmt.Sprintf("reload-%d", time.Now().UnixNano()) },
			valueobject.KindConfigReload, nil, valueobject.PriorityHigh)
		if err == nil {
			inbound.Enqueue(msg)
		}
	})
	if err == nil {
		safego.Go(log, "config-watcher", func() { watcher.Start(ctx) })
	} else {
		log.Warn("config watcher disabled", zap.Error(err))
	}

	// --- session auto-snapshot ticker ---
	safego.Go(log, "session-snapshot-ticker", func() {
		ticker := time.NewTicker(cfg.Session.AutoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				orch.PersistSession(context.Background())
				return
			case <-ticker.C:
				orch.PersistSession(ctx)
			}
		}
	})

	orchErrCh := make(chan error, 1)
	safego.Go(log, "orchestrator-run", func() { orchErrCh <- orch.Run(ctx) })

	driver := infracli.NewDriver(inbound, outbound, orch.AppState(), log)
	backend, err := selectBackend(cfg.UI.Framework)
	if err != nil {
		return errBadArgs{err}
	}

	runErr := backend.Run(ctx, driver)
	cancel()
	<-orchErrCh
	return runErr
}

// buildRetriever assembles the optional memory.MemoryManager backend named
// by cfg.Backend and wraps it as a service.Retriever scoped to session.
// The lancedb backend requires the native liblancedb_go shared library on
// the build/runtime library path; the memory backend never does.
func buildRetriever(cfg config.MemoryConfig, sess *entity.SessionState, log *zap.Logger) (service.Retriever, error) {
	var store memory.VectorStore
	switch cfg.Backend {
	case "lancedb":
		s, err := vectorstore.NewLanceDBVectorStore(cfg.StorePath, cfg.Dimension, log)
		if err != nil {
			return nil, fmt.Errorf("lancedb store: %w", err)
		}
		store = s
	case "memory", "":
		store = memory.NewInMemoryVectorStore()
	default:
		return nil, fmt.Errorf("unknown memory.backend: %s", cfg.Backend)
	}

	var embedder memory.EmbeddingProvider
	switch cfg.Embedder {
	case "ollama":
		e, err := embedding.NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel, log)
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		embedder = e
	case "simple", "":
		embedder = memory.NewSimpleEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown memory.embedder: %s", cfg.Embedder)
	}

	manager := memory.NewMemoryManager(store, embedder)
	sessionID := ""
	if sess != nil {
		sessionID = sess.ID()
	}
	return ctxassembler.NewMemoryRetriever(manager, sessionID), nil
}

func selectBackend(framework string) (infracli.Backend, error) {
	info := infracli.BannerInfo{Model: "qi-prompt", ToolCount: 0}
	switch framework {
	case "readline":
		return &infracli.ReadlineBackend{Info: info}, nil
	case "rich":
		return &infracli.RichBackend{Info: info}, nil
	case "hybrid", "":
		return &infracli.HybridBackend{Info: info}, nil
	default:
		return nil, fmt.Errorf("unknown --framework: %s", framework)
	}
}

func runDoctor(configPath, schemaPath string) error {
	fmt.Printf("qi-prompt doctor v%s\n\n", appVersion)
	ok := true
	check := func(name, path string) {
		if path == "" {
			fmt.Printf("  ✗ %s: not provided\n", name)
			ok = false
			return
		}
		if _, err := os.Stat(path); err != nil {
			fmt.Printf("  ✗ %s: %s not found\n", name, path)
			ok = false
			return
		}
		fmt.Printf("  ✓ %s: %s\n", name, path)
	}
	check("config file", configPath)
	check("schema file", schemaPath)
	if !ok {
		return errBadArgs{fmt.Errorf("doctor checks failed")}
	}
	fmt.Println("\nall checks passed")
	return nil
}
