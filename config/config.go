package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/joeychilson/textfilter/filter"
	"github.com/joeychilson/textfilter/rules"
)

const (
	DefaultMatchTimeout      = time.Second
	DefaultCacheTTL          = time.Hour
	DefaultCachePrefix       = "textfilter:cache:"
	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = time.Minute
	DefaultMaxTextLength     = 1 << 20
)

// ErrInvalidStep is returned for a step that is neither a filter nor a rule.
var ErrInvalidStep = errors.New("step must set exactly one of 'filter' or 'rule'")

// Config represents the top-level configuration of the normalization service.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Cache     CacheConfig               `yaml:"cache"`
	Rules     RulesConfig               `yaml:"rules"`
	Default   DefaultConfig             `yaml:"default"`
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

// New returns a new Config with sensible defaults.
func New() *Config {
	return &Config{
		Cache: CacheConfig{
			TTL: DefaultCacheTTL,
		},
		Pipelines: map[string]PipelineConfig{},
	}
}

// ServerConfig defines the HTTP surface limits.
type ServerConfig struct {
	RateLimitRequests int           `yaml:"rate_limit_requests,omitempty"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window,omitempty"`
	MaxTextLength     int           `yaml:"max_text_length,omitempty"`
}

// GetRateLimitRequests returns the requests allowed per window with a default of 100
func (s *ServerConfig) GetRateLimitRequests() int {
	if s.RateLimitRequests > 0 {
		return s.RateLimitRequests
	}
	return DefaultRateLimitRequests
}

// GetRateLimitWindow returns the rate limit window with a default of 1 minute
func (s *ServerConfig) GetRateLimitWindow() time.Duration {
	if s.RateLimitWindow > 0 {
		return s.RateLimitWindow
	}
	return DefaultRateLimitWindow
}

// GetMaxTextLength returns the largest accepted input in bytes with a default of 1 MiB
func (s *ServerConfig) GetMaxTextLength() int {
	if s.MaxTextLength > 0 {
		return s.MaxTextLength
	}
	return DefaultMaxTextLength
}

// CacheConfig defines caching of normalized output.
type CacheConfig struct {
	TTL    time.Duration `yaml:"ttl,omitempty"`
	Prefix string        `yaml:"prefix,omitempty"`
	Retry  RetryConfig   `yaml:"retry,omitempty"`
}

// IsEnabled returns true if caching is enabled
func (c *CacheConfig) IsEnabled() bool {
	return c.TTL > 0
}

// GetPrefix returns the redis key prefix with a default of "textfilter:cache:"
func (c *CacheConfig) GetPrefix() string {
	if c.Prefix != "" {
		return c.Prefix
	}
	return DefaultCachePrefix
}

// RetryConfig defines retries of failed cache operations against a shared backend.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64       `yaml:"multiplier,omitempty"`
}

// IsEnabled returns true if retries are configured
func (r *RetryConfig) IsEnabled() bool {
	return r.MaxRetries > 0
}

// GetMaxRetries returns the max retries with a default of 0 (no retries)
func (r *RetryConfig) GetMaxRetries() int {
	if r.MaxRetries < 0 {
		return 0
	}
	return r.MaxRetries
}

// GetInitialDelay returns the initial delay with a default of 50 milliseconds
func (r *RetryConfig) GetInitialDelay() time.Duration {
	if r.InitialDelay > 0 {
		return r.InitialDelay
	}
	return 50 * time.Millisecond
}

// GetMaxDelay returns the max delay with a default of 1 second
func (r *RetryConfig) GetMaxDelay() time.Duration {
	if r.MaxDelay > 0 {
		return r.MaxDelay
	}
	return time.Second
}

// GetMultiplier returns the backoff multiplier with a default of 2.0
func (r *RetryConfig) GetMultiplier() float64 {
	if r.Multiplier > 0 {
		return r.Multiplier
	}
	return 2.0
}

// RulesConfig defines limits applied to every configured rule.
type RulesConfig struct {
	MatchTimeout time.Duration `yaml:"match_timeout,omitempty"`
}

// GetMatchTimeout returns the per-substitution match timeout with a default of 1 second
func (r *RulesConfig) GetMatchTimeout() time.Duration {
	if r.MatchTimeout > 0 {
		return r.MatchTimeout
	}
	return DefaultMatchTimeout
}

// DefaultConfig holds filter settings applied to every step unless the step overrides them.
type DefaultConfig struct {
	Threshold  *int                `yaml:"threshold,omitempty"`
	Exceptions map[string][]string `yaml:"exceptions,omitempty"`
}

// PipelineConfig is a named, ordered list of steps.
type PipelineConfig struct {
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []StepConfig `yaml:"steps" json:"steps"`
}

// StepConfig is one pipeline step: a named filter or a rule.
type StepConfig struct {
	Filter     string     `yaml:"filter,omitempty" json:"filter,omitempty"`
	Threshold  *int       `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Exceptions []string   `yaml:"exceptions,omitempty" json:"exceptions,omitempty"`
	Rule       RuleConfig `yaml:"rule,omitempty" json:"rule,omitempty"`
	PreRule    RuleConfig `yaml:"pre_rule,omitempty" json:"pre_rule,omitempty"`
	PostRule   RuleConfig `yaml:"post_rule,omitempty" json:"post_rule,omitempty"`
}

// IsFilter returns true if the step runs a named filter
func (s *StepConfig) IsFilter() bool {
	return s.Filter != ""
}

// RuleConfig holds rule fields by name: pattern, replacement, preRule and postRule.
// Guards are nested RuleConfigs.
type RuleConfig map[string]any

// UnmarshalYAML decodes nested guards into string-keyed maps so a RuleConfig read
// from YAML also encodes as JSON.
func (rc *RuleConfig) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	for key, value := range raw {
		converted, err := stringKeys(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		raw[key] = converted
	}
	*rc = raw
	return nil
}

func stringKeys(value any) (any, error) {
	m, ok := value.(map[any]any)
	if !ok {
		return value, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: key %v is not a string", rules.ErrInvalidValue, k)
		}
		converted, err := stringKeys(v)
		if err != nil {
			return nil, err
		}
		out[key] = converted
	}
	return out, nil
}

// Build creates the rule, assigning every field through rules.Rule.Set so unknown
// keys fail with rules.ErrInvalidAttribute.
func (rc RuleConfig) Build(timeout time.Duration) (*rules.Rule, error) {
	r := new(rules.Rule)
	r.SetTimeout(timeout)

	keys := make([]string, 0, len(rc))
	for k := range rc {
		keys = append(keys, k)
	}
	// fixed order for reproducible errors
	slices.Sort(keys)

	for _, key := range keys {
		value := rc[key]
		if key == rules.FieldPreRule || key == rules.FieldPostRule {
			guard, err := buildGuard(value, timeout)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			value = guard
		}
		if err := r.Set(key, value); err != nil {
			return nil, err
		}
	}

	if r.Pattern() == "" {
		return nil, fmt.Errorf("%w: pattern", rules.ErrMissingField)
	}
	if _, ok := r.Replacement(); !ok {
		return nil, fmt.Errorf("%w: replacement", rules.ErrMissingField)
	}
	return r, nil
}

func buildGuard(value any, timeout time.Duration) (*rules.Rule, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case RuleConfig:
		return v.Build(timeout)
	case map[string]any:
		return RuleConfig(v).Build(timeout)
	case map[any]any:
		converted, err := stringKeys(v)
		if err != nil {
			return nil, err
		}
		return RuleConfig(converted.(map[string]any)).Build(timeout)
	}
	return nil, fmt.Errorf("%w: guard must be a mapping, got %T", rules.ErrInvalidValue, value)
}

// BuildGuards creates the step's pre and post guards; unset guards are nil.
func (s *StepConfig) BuildGuards(timeout time.Duration) (pre, post *rules.Rule, err error) {
	if len(s.PreRule) > 0 {
		if pre, err = s.PreRule.Build(timeout); err != nil {
			return nil, nil, fmt.Errorf("pre_rule: %w", err)
		}
	}
	if len(s.PostRule) > 0 {
		if post, err = s.PostRule.Build(timeout); err != nil {
			return nil, nil, fmt.Errorf("post_rule: %w", err)
		}
	}
	return pre, post, nil
}

// FilterOptions returns the filter options for a step, the step's own settings taking
// precedence over the defaults.
func (c *Config) FilterOptions(step StepConfig) []filter.Option {
	var opts []filter.Option
	if c.Default.Threshold != nil {
		opts = append(opts, filter.WithThreshold(*c.Default.Threshold))
	}
	for name, words := range c.Default.Exceptions {
		opts = append(opts, filter.WithExceptions(name, words...))
	}
	if step.Threshold != nil {
		opts = append(opts, filter.WithThreshold(*step.Threshold))
	}
	if step.Exceptions != nil {
		opts = append(opts, filter.WithExceptions(step.Filter, step.Exceptions...))
	}
	return opts
}

// PipelineNames returns the configured pipeline names in sorted order.
func (c *Config) PipelineNames() []string {
	names := make([]string, 0, len(c.Pipelines))
	for name := range c.Pipelines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors and conflicts
func (c *Config) Validate() error {
	if err := c.validateServer(c.Server); err != nil {
		return err
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache: 'ttl' must be >= 0")
	}
	if c.Cache.Retry.MaxRetries < 0 || c.Cache.Retry.InitialDelay < 0 || c.Cache.Retry.MaxDelay < 0 {
		return fmt.Errorf("cache.retry: values must be >= 0")
	}
	if c.Cache.Retry.Multiplier != 0 && c.Cache.Retry.Multiplier < 1 {
		return fmt.Errorf("cache.retry: 'multiplier' must be >= 1")
	}
	if c.Rules.MatchTimeout < 0 {
		return fmt.Errorf("rules: 'match_timeout' must be >= 0")
	}
	if err := validateThreshold("default", c.Default.Threshold); err != nil {
		return err
	}
	for name := range c.Default.Exceptions {
		if !hasExceptions(name) {
			return fmt.Errorf("default.exceptions: filter %q takes no exceptions", name)
		}
	}

	for _, name := range c.PipelineNames() {
		if name == "" {
			return fmt.Errorf("pipelines: name cannot be empty")
		}
		pipeline := c.Pipelines[name]
		if len(pipeline.Steps) == 0 {
			return fmt.Errorf("pipelines[%s]: 'steps' cannot be empty", name)
		}
		for i, step := range pipeline.Steps {
			if err := c.ValidateStep(step); err != nil {
				return fmt.Errorf("pipelines[%s].steps[%d]: %w", name, i, err)
			}
		}
	}

	return nil
}

// ValidateStep checks a single step, building its rules to catch bad patterns and fields.
func (c *Config) ValidateStep(step StepConfig) error {
	hasRule := len(step.Rule) > 0
	if step.IsFilter() == hasRule {
		return ErrInvalidStep
	}

	timeout := c.Rules.GetMatchTimeout()
	if hasRule {
		if step.Threshold != nil || step.Exceptions != nil {
			return fmt.Errorf("rule: 'threshold' and 'exceptions' apply to filters only")
		}
		if _, err := step.Rule.Build(timeout); err != nil {
			return fmt.Errorf("rule: %w", err)
		}
	} else {
		if _, ok := filter.Lookup(step.Filter); !ok {
			return fmt.Errorf("%w: %q", filter.ErrUnknownFilter, step.Filter)
		}
		if step.Threshold != nil && step.Filter != filter.NameLowPercentUp {
			return fmt.Errorf("filter %s: 'threshold' applies to %s only", step.Filter, filter.NameLowPercentUp)
		}
		if err := validateThreshold("filter "+step.Filter, step.Threshold); err != nil {
			return err
		}
		if step.Exceptions != nil && !hasExceptions(step.Filter) {
			return fmt.Errorf("filter %s: takes no exceptions", step.Filter)
		}
	}

	if _, _, err := step.BuildGuards(timeout); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer(s ServerConfig) error {
	if s.RateLimitRequests < 0 {
		return fmt.Errorf("server: 'rate_limit_requests' must be >= 0")
	}
	if s.RateLimitWindow < 0 {
		return fmt.Errorf("server: 'rate_limit_window' must be >= 0")
	}
	if s.MaxTextLength < 0 {
		return fmt.Errorf("server: 'max_text_length' must be >= 0")
	}
	return nil
}

func validateThreshold(ctx string, threshold *int) error {
	if threshold == nil {
		return nil
	}
	if *threshold < 0 || *threshold > 100 {
		return fmt.Errorf("%s: 'threshold' must be between 0 and 100 (got %d)", ctx, *threshold)
	}
	return nil
}

func hasExceptions(name string) bool {
	switch name {
	case filter.NameTitleCase, filter.NameSentenceCase, filter.NameLocation:
		return true
	}
	return false
}
