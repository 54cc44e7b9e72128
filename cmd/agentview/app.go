package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/classify"
	"github.com/rahul/agentview/internal/docs"
	"github.com/rahul/agentview/internal/gateway"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/prompts"
	"github.com/rahul/agentview/internal/store"
	"github.com/rahul/agentview/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// app is the fully wired set of components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	steps    *observability.StepRecorder
	db       *store.Store
	book     *prompts.Book
	capture  *capture.Client
	policy   *governance.ContentPolicy
	notifier gateway.Notifier
	telegram *gateway.TelegramGateway
	deps     *agent.Deps
	apiKey   string
}

func newApp(cfgPath string, printSteps bool) (*app, error) {
	if cfgPath == "" {
		if _, err := os.Stat("agentview.yaml"); err == nil {
			cfgPath = "agentview.yaml"
		}
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	if observability.IsTerminal() {
		// Keep log lines from splitting timeline output.
		log.SetOutput(observability.NewTermWriter())
	}

	logger := observability.NewLogger(os.Stderr, cfg.App.LogDir)
	if !verbose {
		logger = observability.NewLogger(io.Discard, cfg.App.LogDir)
	}

	db, err := store.Open(cfg.Memory.Path)
	if err != nil {
		return nil, err
	}

	sinks := []observability.StepSink{db}
	if printSteps {
		sinks = append(sinks, observability.NewTimelinePrinter(os.Stdout))
	}
	steps := observability.NewStepRecorder(sinks...)

	book, err := prompts.Load(cfg.App.Prompts)
	if err != nil {
		db.Close()
		return nil, err
	}

	policy := governance.NewDefaultContentPolicy(cfg.Pipeline.ExcludedWindows...)
	for _, pattern := range cfg.Pipeline.ExcludedApps {
		if err := policy.DenyApp(pattern); err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid pipeline.excluded_apps pattern %q: %w", pattern, err)
		}
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		steps:   steps,
		db:      db,
		book:    book,
		capture: capture.NewClient(cfg.Capture.BaseURL),
		policy:  policy,
	}
	_, provider := cfg.GetDefaultProvider()
	a.apiKey = provider.APIKey

	notifiers := gateway.Multi{gateway.LogNotifier{}}
	if cfg.Capture.NotifyURL != "" {
		notifiers = append(notifiers, gateway.NewDesktop(cfg.Capture.NotifyURL))
	}
	if tg, ok := cfg.GetTelegramConfig(); ok {
		a.telegram, err = gateway.NewTelegramGateway(tg.Token, tg.ChatID, nil)
		if err != nil {
			log.Printf("telegram disabled: %v", err)
		} else {
			notifiers = append(notifiers, a.telegram)
		}
	}
	a.notifier = notifiers

	a.deps = &agent.Deps{
		Prompts:  book,
		Steps:    steps,
		Logger:   logger,
		Capture:  a.capture,
		Policy:   policy,
		Finance:  db,
		Notifier: a.notifier,
		Pipeline: cfg.Pipeline,
	}
	return a, nil
}

// Close releases the store. The telegram gateway stops with its Start context.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Printf("failed to close store: %v", err)
	}
}

// newInference binds the default provider to apiKey.
func (a *app) newInference(apiKey string) (inference.Service, error) {
	name, p := a.cfg.GetDefaultProvider()
	if name == "" {
		return nil, config.ErrNoProvider
	}
	if apiKey == "" {
		apiKey = p.APIKey
	}
	model, err := newModel(name, p, apiKey)
	if err != nil {
		return nil, err
	}
	return inference.NewLLM(model, p.Model, a.logger), nil
}

// financeInference uses the configured finance provider, which may be a
// local model, falling back to the default provider.
func (a *app) financeInference() (inference.Service, error) {
	name := a.cfg.Pipeline.FinanceProvider
	if name == "" {
		return a.newInference("")
	}
	p, ok := a.cfg.GetProvider(name)
	if !ok {
		return nil, fmt.Errorf("finance provider %q is not enabled", name)
	}
	model, err := newModel(name, p, p.APIKey)
	if err != nil {
		return nil, err
	}
	return inference.NewLLM(model, p.Model, a.logger), nil
}

func newModel(name string, p config.ProviderConfig, apiKey string) (llms.Model, error) {
	switch name {
	case "openai", "openrouter":
		if apiKey == "" {
			return nil, errors.New("API key is required")
		}
		opts := []openai.Option{
			openai.WithToken(apiKey),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(p.Model)}
		if p.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(p.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("provider %s not yet implemented", name)
	}
}

func (a *app) orchestrator() *agent.Orchestrator {
	o := agent.NewOrchestrator(a.deps, a.newInference)
	o.APIKey = a.apiKey
	return o
}

func (a *app) financeWorker() *agent.FinanceWorker {
	return &agent.FinanceWorker{Deps: a.deps}
}

func (a *app) docsManager() *docs.Manager {
	return &docs.Manager{
		Prompts:  a.book,
		Steps:    a.steps,
		Logger:   a.logger,
		Capture:  a.capture,
		Store:    a.db,
		Notifier: a.notifier,
		Policy:   a.policy,
		Lookback: a.cfg.Pipeline.DefaultLookback,
	}
}

func (a *app) classifier() *classify.Classifier {
	checker := classify.NewDuplicateChecker(a.db, a.book, a.steps, a.logger,
		a.cfg.Pipeline.DuplicateSimilarity, a.cfg.Pipeline.DuplicateWindow)
	c := classify.NewClassifier(a.book, a.steps, a.logger, a.db, checker)
	c.Policy = a.policy
	return c
}
