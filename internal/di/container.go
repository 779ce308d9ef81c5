package di

import (
	"context"
	"fmt"

	httpadapter "browser-pilot/internal/adapter/http"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/application/service"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/browser/rod"
	"browser-pilot/internal/infrastructure/config"
	"browser-pilot/internal/infrastructure/llm/openrouter"
	"browser-pilot/internal/infrastructure/logger"
	"browser-pilot/internal/infrastructure/prompts"
	"browser-pilot/internal/infrastructure/tabs"
	"browser-pilot/internal/usecase/actobserve"
	"browser-pilot/internal/usecase/backend"
	"browser-pilot/internal/usecase/observer"
	"browser-pilot/internal/usecase/orchestrator"
	"browser-pilot/internal/usecase/resolver"
)

type Container struct {
	Config   *config.Config
	Logger   output.LoggerPort
	Engine   *rod.Engine
	LLM      output.LLMPort
	Tabs     *tabs.Tracker
	Events   *service.EventBus
	Acts     *actobserve.Executor
	Backend  *backend.UseCase
	Tasks    *orchestrator.UseCase
	Server   *httpadapter.Server
	Resolver *resolver.Resolver
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter("pilot", logger.Options{
		Name:       "pilot",
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Dir:        cfg.Logger.Dir,
		MaxSizeMB:  cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	engine, err := rod.NewEngine(ctx, browserConfig(cfg.Browser), log.WithField("component", "browser"))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	if cfg.Browser.StartURL != "" {
		if _, err := engine.NewPage(ctx, cfg.Browser.StartURL); err != nil {
			log.Warn("Start page failed to open", "url", cfg.Browser.StartURL, "error", err)
		}
	}

	llmCfg := openrouter.DefaultConfig(cfg.LLM.APIKey, cfg.LLM.Model)
	if cfg.LLM.BaseURL != "" {
		llmCfg.BaseURL = cfg.LLM.BaseURL
	}
	llmCfg.RequestsPerMinute = cfg.LLM.RequestsPerMinute
	if cfg.LLM.Timeout > 0 {
		llmCfg.Timeout = cfg.LLM.Timeout
	}
	llm := openrouter.NewOpenRouterAdapter(llmCfg, log.WithField("component", "llm"))

	tracker := tabs.NewTracker(engine, log)
	res := resolver.New(log.WithField("component", "resolver"), resolver.Options{
		InternalSegments: cfg.Resolver.InternalSegments,
		Attempts:         cfg.Resolver.Attempts,
		Delay:            cfg.Resolver.Delay,
	})

	obs := observer.New(llm, log.WithField("component", "observer"), prompts.ObservePrompt, cfg.LLM.ObserveRetries)
	acts := actobserve.New(obs, func(ctx context.Context) (output.Page, error) {
		return res.ResolveWithRetry(ctx, engine, tracker.ActiveTabURL(ctx))
	}, log.WithField("component", "act"))

	reasoning := backend.New(llm, acts, log.WithField("component", "backend"), backend.Options{
		SettleDelay:    cfg.Task.SettleDelay,
		NavigationIdle: cfg.Task.NavigationIdle,
		MaxLLMErrors:   cfg.Task.MaxLLMErrors,
	})

	events := service.NewEventBus(log)
	tasks := orchestrator.New(engine, res, tracker, reasoning, acts, events, log.WithField("component", "orchestrator"), entity.TaskConfig{
		MaxTurns:   cfg.Task.MaxTurns,
		MaxRetries: cfg.Task.MaxRetries,
		Timeout:    cfg.Task.Timeout,
	})

	server := httpadapter.NewServer(tasks, tracker, events, log.WithField("component", "http"), httpadapter.Options{
		RequestLogs: true,
	})

	return &Container{
		Config:   cfg,
		Logger:   log,
		Engine:   engine,
		LLM:      llm,
		Tabs:     tracker,
		Events:   events,
		Acts:     acts,
		Backend:  reasoning,
		Tasks:    tasks,
		Server:   server,
		Resolver: res,
	}, nil
}

func browserConfig(c config.BrowserConfig) rod.Config {
	bc := rod.DefaultConfig()
	bc.Headless = c.Headless
	bc.NoSandbox = c.NoSandbox
	bc.SlowMotion = c.SlowMotion
	bc.ControlURL = c.ControlURL
	bc.Bin = c.Bin
	if c.Timeout > 0 {
		bc.Timeout = c.Timeout
	}
	if c.ViewportWidth > 0 && c.ViewportHeight > 0 {
		bc.ViewportWidth = c.ViewportWidth
		bc.ViewportHeight = c.ViewportHeight
	}
	if c.MaxScreenshotWidth > 0 {
		bc.MaxScreenshotWidth = c.MaxScreenshotWidth
	}
	return bc
}

func (c *Container) Close() {
	if c.Engine != nil {
		c.Engine.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
