package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/research-team/config"
	"github.com/dshills/research-team/workflow"
	"github.com/dshills/research-team/workflow/emit"
	"github.com/dshills/research-team/workflow/model"
	"github.com/dshills/research-team/workflow/model/anthropic"
	"github.com/dshills/research-team/workflow/model/google"
	"github.com/dshills/research-team/workflow/model/openai"
	"github.com/dshills/research-team/workflow/store"
	"github.com/dshills/research-team/workflow/tool"
	"github.com/dshills/research-team/workflow/worker"
)

// app is a wired engine plus everything that has to be released with it.
type app struct {
	cfg      *config.Config
	engine   *workflow.Engine
	registry *prometheus.Registry
	tracer   *sdktrace.TracerProvider
	closers  []func(context.Context) error
}

// newApp validates cfg and wires the engine. Events are logged to logOut.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	if issues := cfg.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s (run 'research-team config validate')", issues[0])
	}

	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}

	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	emitters := []emit.Emitter{emit.NewLogEmitter(logOut, cfg.LogFormat == "json")}
	if cfg.TracingEnabled {
		tp, err := newTracerProvider(logOut)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		a.tracer = tp
		a.closers = append(a.closers, tp.Shutdown)
		emitters = append(emitters, emit.NewOTelEmitter(tp.Tracer("research-team")))
	}
	emitter := emit.NewMultiEmitter(emitters...)

	wc := cfg.WorkerConfig()
	team := worker.NewTeamFactory(worker.Deps{
		Generator: gen,
		Searcher:  newSearcher(cfg),
		Emitter:   emitter,
	}, wc)

	opts := []workflow.Option{
		workflow.WithEmitter(emitter),
		workflow.WithMetrics(workflow.NewPrometheusMetrics(a.registry)),
		workflow.WithDefaultOptions(cfg.RunDefaults()),
		workflow.WithRequestValidator(worker.ValidateRequest(wc)),
		workflow.WithRegistryTTL(cfg.RegistryTTL),
	}
	if st != nil {
		opts = append(opts, workflow.WithStore(st))
	}

	a.engine, err = workflow.New(team, opts...)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return a, nil
}

// Close releases the store and flushes traces.
func (a *app) Close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// openStore returns nil for the memory driver; the engine keeps runs in its
// registry either way.
func (a *app) openStore(ctx context.Context) (store.Store[workflow.WorkflowRecord], error) {
	switch a.cfg.StoreDriver {
	case config.StoreSQLite:
		st, err := store.NewSQLiteStore[workflow.WorkflowRecord](a.cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
		return st, nil
	case config.StoreMySQL:
		st, err := store.NewMySQLStore[workflow.WorkflowRecord](a.cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
		return st, nil
	case config.StorePostgres:
		st, err := store.NewPostgresStore[workflow.WorkflowRecord](ctx, a.cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
		return st, nil
	default:
		return nil, nil
	}
}

func newGenerator(cfg *config.Config) (model.Generator, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return google.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	case config.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			Temperature: cfg.OpenAITemperature,
		})
	case config.ProviderAnthropic:
		return anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case config.ProviderMock:
		return offlineGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newSearcher(cfg *config.Config) tool.Searcher {
	if cfg.SearchURL != "" {
		return tool.NewHTTPSearch(cfg.SearchURL)
	}
	return &tool.MockSearch{}
}

func newTracerProvider(out io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp, nil
}
