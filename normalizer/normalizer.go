// Package normalizer runs configured filter pipelines over text, caching the output of
// named pipelines.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeychilson/textfilter/cache"
	"github.com/joeychilson/textfilter/config"
	"github.com/joeychilson/textfilter/filter"
	"github.com/joeychilson/textfilter/logger"
	"github.com/joeychilson/textfilter/rules"
)

var (
	// ErrUnknownPipeline is returned when no pipeline has the requested name.
	ErrUnknownPipeline = errors.New("unknown pipeline")
	// ErrInvalidSteps is returned when ad hoc steps fail validation.
	ErrInvalidSteps = errors.New("invalid steps")
)

// Normalizer holds the compiled pipelines of a configuration.
type Normalizer struct {
	config    *config.Config
	pipelines map[string]filter.Pipeline
	cache     cache.Cache
	logger    logger.Logger
}

// Result is the output of one normalization.
type Result struct {
	Output   string
	Pipeline string
	Cached   bool
	CachedAt time.Time
}

// Pipeline describes a configured pipeline.
type Pipeline struct {
	Name        string
	Description string
	Steps       []config.StepConfig
}

// New validates cfg and compiles its pipelines. Caching uses an in-memory cache when
// cfg enables it; replace it with WithCache.
func New(cfg *config.Config) (*Normalizer, error) {
	if cfg == nil {
		cfg = config.New()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	n := &Normalizer{
		config:    cfg,
		pipelines: make(map[string]filter.Pipeline, len(cfg.Pipelines)),
		logger:    logger.Noop(),
	}

	for name, p := range cfg.Pipelines {
		compiled, err := n.Compile(p.Steps)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", name, err)
		}
		n.pipelines[name] = compiled
	}

	if cfg.Cache.IsEnabled() {
		n.cache = cache.NewMemoryCache(cache.Config{TTL: cfg.Cache.TTL})
	}

	return n, nil
}

// NewFromFile creates a Normalizer by loading configuration from a YAML file.
func NewFromFile(path string) (*Normalizer, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(cfg)
}

// WithCache replaces the cache. A nil cache disables caching.
func (n *Normalizer) WithCache(c cache.Cache) *Normalizer {
	if n.cache != nil && n.cache != c {
		n.cache.Close()
	}
	n.cache = c
	return n
}

// WithLogger sets the logger for the normalizer.
func (n *Normalizer) WithLogger(log logger.Logger) *Normalizer {
	if log == nil {
		log = logger.Noop()
	}
	n.logger = log
	return n
}

// Close releases the cache.
func (n *Normalizer) Close() error {
	if n.cache == nil {
		return nil
	}
	return n.cache.Close()
}

// Config returns the configuration the normalizer was built from.
func (n *Normalizer) Config() *config.Config {
	return n.config
}

// Pipelines returns the configured pipeline names in sorted order.
func (n *Normalizer) Pipelines() []string {
	return n.config.PipelineNames()
}

// Describe returns the named pipeline's configuration.
func (n *Normalizer) Describe(name string) (Pipeline, bool) {
	p, ok := n.config.Pipelines[name]
	if !ok {
		return Pipeline{}, false
	}
	return Pipeline{Name: name, Description: p.Description, Steps: p.Steps}, true
}

// Compile validates steps and builds them into a pipeline.
func (n *Normalizer) Compile(steps []config.StepConfig) (filter.Pipeline, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidSteps)
	}

	pipeline := make(filter.Pipeline, 0, len(steps))
	for i, step := range steps {
		if err := n.config.ValidateStep(step); err != nil {
			return nil, fmt.Errorf("%w: steps[%d]: %w", ErrInvalidSteps, i, err)
		}
		compiled, err := n.compileStep(step)
		if err != nil {
			return nil, fmt.Errorf("%w: steps[%d]: %w", ErrInvalidSteps, i, err)
		}
		pipeline = append(pipeline, compiled)
	}
	return pipeline, nil
}

func (n *Normalizer) compileStep(step config.StepConfig) (filter.Step, error) {
	timeout := n.config.Rules.GetMatchTimeout()

	pre, post, err := step.BuildGuards(timeout)
	if err != nil {
		return nil, err
	}
	guarded := pre != nil || post != nil

	if step.IsFilter() {
		opts := n.config.FilterOptions(step)
		if !guarded {
			s, ok := filter.Lookup(step.Filter, opts...)
			if !ok {
				return nil, fmt.Errorf("%w: %q", filter.ErrUnknownFilter, step.Filter)
			}
			return s, nil
		}
		rule, err := filter.NewRule(step.Filter, pre, post, opts...)
		if err != nil {
			return nil, err
		}
		return rule.ApplyWithGuards, nil
	}

	rule, err := step.Rule.Build(timeout)
	if err != nil {
		return nil, err
	}
	if !guarded {
		return rule.ApplyWithGuards, nil
	}
	wrapped, err := rules.NewFunc("rule", rule.ApplyWithGuards, rules.WithPreRule(pre), rules.WithPostRule(post))
	if err != nil {
		return nil, err
	}
	return wrapped.ApplyWithGuards, nil
}

// Normalize runs text through the named pipeline, serving repeated inputs from the cache.
func (n *Normalizer) Normalize(ctx context.Context, name, text string) (*Result, error) {
	log := n.logger.WithContext(ctx).With("pipeline", name)
	log.Debug("normalize started", "length", len(text))

	pipeline, ok := n.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, name)
	}

	key := cache.Key(name, text)
	if n.cache != nil {
		entry, err := n.cache.Get(ctx, key)
		if err != nil {
			log.Warn("cache get failed", "error", err)
		} else if entry != nil {
			log.Debug("cache hit")
			return &Result{
				Output:   entry.Output,
				Pipeline: name,
				Cached:   true,
				CachedAt: entry.StoredAt,
			}, nil
		} else {
			log.Debug("cache miss")
		}
	}

	output, err := pipeline.RunContext(ctx, text)
	if err != nil {
		log.Error("normalize failed", "error", err)
		return nil, fmt.Errorf("pipeline %s: %w", name, err)
	}

	if n.cache != nil {
		entry := &cache.Entry{
			Key:      key,
			Pipeline: name,
			Output:   output,
			StoredAt: time.Now(),
			TTL:      n.config.Cache.TTL,
		}
		if err := n.cache.Set(ctx, entry); err != nil {
			log.Warn("cache set failed", "error", err)
		}
	}

	log.Debug("normalize completed")
	return &Result{Output: output, Pipeline: name}, nil
}

// NormalizeSteps compiles steps and runs text through them. Results are not cached.
func (n *Normalizer) NormalizeSteps(ctx context.Context, steps []config.StepConfig, text string) (*Result, error) {
	log := n.logger.WithContext(ctx)

	pipeline, err := n.Compile(steps)
	if err != nil {
		log.Debug("invalid steps", "error", err)
		return nil, err
	}

	output, err := pipeline.RunContext(ctx, text)
	if err != nil {
		log.Error("normalize failed", "error", err)
		return nil, err
	}
	return &Result{Output: output}, nil
}
