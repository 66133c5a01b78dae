package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/research-team/workflow/emit"
	"github.com/dshills/research-team/workflow/store"
)

// Option configures an Engine.
//
//	engine, err := workflow.New(team,
//	    workflow.WithEmitter(emit.NewLogEmitter(os.Stderr, true)),
//	    workflow.WithStore(store.NewMemStore[workflow.WorkflowRecord]()),
//	    workflow.WithStageTimeout(2*time.Minute),
//	)
type Option func(*engineConfig) error

type engineConfig struct {
	emitter      emit.Emitter
	store        store.Store[WorkflowRecord]
	metrics      *PrometheusMetrics
	stageTimeout time.Duration
	registryTTL  time.Duration
	validate     func(Request) error
	defaults     RunOptions
	now          func() time.Time
	newID        func() string
}

func defaultConfig() engineConfig {
	return engineConfig{
		emitter:  emit.NewNullEmitter(),
		defaults: DefaultOptions(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// WithEmitter sets the event sink. Default: emit.NullEmitter.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		if emitter == nil {
			return &EngineError{Message: "emitter cannot be nil", Code: CodeInvalidRequest}
		}
		cfg.emitter = emitter
		return nil
	}
}

// WithStore archives a snapshot of every record after each stage and when
// the run ends. Store failures are emitted as store_error events and never
// fail the run. Status and Result fall back to the store for runs the
// registry no longer holds.
func WithStore(st store.Store[WorkflowRecord]) Option {
	return func(cfg *engineConfig) error {
		cfg.store = st
		return nil
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = metrics
		return nil
	}
}

// WithStageTimeout bounds each worker invocation. A worker that runs out of
// time reports the failure in its result like any other generation error.
// Default: 0 (no stage bound; generators carry their own call timeout).
func WithStageTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return &EngineError{Message: "stage timeout must be >= 0", Code: CodeInvalidRequest}
		}
		cfg.stageTimeout = d
		return nil
	}
}

// WithRegistryTTL evicts finished runs from the registry d after they end.
// Default: 0 (keep for the life of the process).
func WithRegistryTTL(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return &EngineError{Message: "registry TTL must be >= 0", Code: CodeInvalidRequest}
		}
		cfg.registryTTL = d
		return nil
	}
}

// WithRequestValidator adds a check run on every request after defaults are
// applied, typically the team's own option tables. A non-nil error rejects
// the request with CodeInvalidRequest.
func WithRequestValidator(fn func(Request) error) Option {
	return func(cfg *engineConfig) error {
		cfg.validate = fn
		return nil
	}
}

// WithDefaultOptions replaces the options used for fields a request leaves
// empty.
func WithDefaultOptions(opts RunOptions) Option {
	return func(cfg *engineConfig) error {
		cfg.defaults = opts.WithDefaults(DefaultOptions())
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cfg *engineConfig) error {
		if now == nil {
			return &EngineError{Message: "clock cannot be nil", Code: CodeInvalidRequest}
		}
		cfg.now = now
		return nil
	}
}

// WithIDGenerator replaces the UUID generator used for requests without a
// WorkflowID.
func WithIDGenerator(fn func() string) Option {
	return func(cfg *engineConfig) error {
		if fn == nil {
			return &EngineError{Message: "ID generator cannot be nil", Code: CodeInvalidRequest}
		}
		cfg.newID = fn
		return nil
	}
}
