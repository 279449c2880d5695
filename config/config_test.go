package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeychilson/textfilter/filter"
	"github.com/joeychilson/textfilter/rules"
)

const testConfig = `
server:
  rate_limit_requests: 10
  rate_limit_window: 30s
cache:
  ttl: 10m
  prefix: "test:"
  retry:
    max_retries: 2
    initial_delay: 20ms
rules:
  match_timeout: 250ms
default:
  threshold: 60
  exceptions:
    titleCase: [of, the]
pipelines:
  title:
    description: Book titles
    steps:
      - filter: whitespace
      - filter: lowPercentUp
        threshold: 80
      - filter: titleCase
        pre_rule:
          pattern: '/\bdel\b/m'
          replacement: "@@@DEL@@@"
        post_rule:
          pattern: '/@@@DEL@@@/mi'
          replacement: del
  swap:
    steps:
      - rule:
          pattern: '/(\w+)@(\w+)/'
          replacement: '\2 at \1'
          preRule:
            pattern: '/\s+/'
            replacement: ' '
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := cfg.Server.GetRateLimitRequests(); got != 10 {
		t.Errorf("rate limit requests = %d, want 10", got)
	}
	if got := cfg.Server.GetRateLimitWindow(); got != 30*time.Second {
		t.Errorf("rate limit window = %v, want 30s", got)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("cache TTL = %v, want 10m", cfg.Cache.TTL)
	}
	if got := cfg.Cache.GetPrefix(); got != "test:" {
		t.Errorf("cache prefix = %q, want %q", got, "test:")
	}
	if !cfg.Cache.Retry.IsEnabled() || cfg.Cache.Retry.GetMaxRetries() != 2 {
		t.Errorf("cache retries = %d, want 2", cfg.Cache.Retry.GetMaxRetries())
	}
	if got := cfg.Cache.Retry.GetInitialDelay(); got != 20*time.Millisecond {
		t.Errorf("retry initial delay = %v, want 20ms", got)
	}
	if got := cfg.Cache.Retry.GetMaxDelay(); got != time.Second {
		t.Errorf("retry max delay = %v, want 1s", got)
	}
	if got := cfg.Rules.GetMatchTimeout(); got != 250*time.Millisecond {
		t.Errorf("match timeout = %v, want 250ms", got)
	}

	names := cfg.PipelineNames()
	if len(names) != 2 || names[0] != "swap" || names[1] != "title" {
		t.Fatalf("PipelineNames() = %v, want [swap title]", names)
	}

	title := cfg.Pipelines["title"]
	if title.Description != "Book titles" {
		t.Errorf("description = %q", title.Description)
	}
	if len(title.Steps) != 3 {
		t.Fatalf("title steps = %d, want 3", len(title.Steps))
	}
	if th := title.Steps[1].Threshold; th == nil || *th != 80 {
		t.Errorf("threshold = %v, want 80", th)
	}

	pre, post, err := title.Steps[2].BuildGuards(cfg.Rules.GetMatchTimeout())
	if err != nil {
		t.Fatalf("BuildGuards() error = %v", err)
	}
	if pre == nil || post == nil {
		t.Fatal("BuildGuards() should return both guards")
	}
	if pre.Pattern() != `/\bdel\b/m` {
		t.Errorf("pre pattern = %q", pre.Pattern())
	}

	if _, err := json.Marshal(cfg.Pipelines["swap"]); err != nil {
		t.Errorf("nested guards should encode as JSON: %v", err)
	}
	swapRule := cfg.Pipelines["swap"].Steps[0].Rule
	if _, ok := swapRule["preRule"].(map[string]any); !ok {
		t.Errorf("preRule = %T, want map[string]any", swapRule["preRule"])
	}
}

func TestNewDefaults(t *testing.T) {
	cfg := New()

	if !cfg.Cache.IsEnabled() {
		t.Error("cache should be enabled by default")
	}
	if cfg.Cache.GetPrefix() != DefaultCachePrefix {
		t.Errorf("prefix = %q, want %q", cfg.Cache.GetPrefix(), DefaultCachePrefix)
	}
	if cfg.Rules.GetMatchTimeout() != DefaultMatchTimeout {
		t.Errorf("match timeout = %v, want %v", cfg.Rules.GetMatchTimeout(), DefaultMatchTimeout)
	}
	if cfg.Server.GetRateLimitRequests() != DefaultRateLimitRequests {
		t.Errorf("rate limit = %d", cfg.Server.GetRateLimitRequests())
	}
	if cfg.Server.GetMaxTextLength() != DefaultMaxTextLength {
		t.Errorf("max text length = %d", cfg.Server.GetMaxTextLength())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRuleConfigBuild(t *testing.T) {
	t.Run("nested guards from yaml", func(t *testing.T) {
		rc := RuleConfig{
			"pattern":     "/that/",
			"replacement": "this",
			"preRule": map[any]any{
				"pattern":     "/this/",
				"replacement": "@@@THIS@@@",
			},
			"postRule": map[string]any{
				"pattern":     "/@@@THIS@@@/",
				"replacement": "that",
			},
		}

		r, err := rc.Build(time.Second)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		got, err := r.ApplyWithGuards("this and that")
		if err != nil {
			t.Fatalf("ApplyWithGuards() error = %v", err)
		}
		if got != "that and this" {
			t.Errorf("got %q, want %q", got, "that and this")
		}
	})

	tests := []struct {
		name    string
		rc      RuleConfig
		wantErr error
	}{
		{
			name:    "unknown field",
			rc:      RuleConfig{"pattern": "a", "replacement": "b", "flags": "i"},
			wantErr: rules.ErrInvalidAttribute,
		},
		{
			name:    "wrong type",
			rc:      RuleConfig{"pattern": 42, "replacement": "b"},
			wantErr: rules.ErrInvalidValue,
		},
		{
			name:    "missing pattern",
			rc:      RuleConfig{"replacement": "b"},
			wantErr: rules.ErrMissingField,
		},
		{
			name:    "missing replacement",
			rc:      RuleConfig{"pattern": "a"},
			wantErr: rules.ErrMissingField,
		},
		{
			name:    "bad pattern",
			rc:      RuleConfig{"pattern": "/(/", "replacement": "b"},
			wantErr: rules.ErrPattern,
		},
		{
			name:    "guard not a mapping",
			rc:      RuleConfig{"pattern": "a", "replacement": "b", "preRule": "x"},
			wantErr: rules.ErrInvalidValue,
		},
		{
			name: "bad nested guard",
			rc: RuleConfig{"pattern": "a", "replacement": "b", "postRule": map[string]any{
				"pattern": "a", "replacement": "b", "name": "x",
			}},
			wantErr: rules.ErrInvalidAttribute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rc.Build(time.Second)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	threshold := func(n int) *int { return &n }

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name: "filter and rule",
			cfg: &Config{Pipelines: map[string]PipelineConfig{
				"p": {Steps: []StepConfig{{Filter: "whitespace", Rule: RuleConfig{"pattern": "a", "replacement": "b"}}}},
			}},
			wantErr: "pipelines[p].steps[0]: step must set exactly one",
		},
		{
			name: "empty step",
			cfg: &Config{Pipelines: map[string]PipelineConfig{
				"p": {Steps: []StepConfig{{Filter: "whitespace"}, {}}},
			}},
			wantErr: "pipelines[p].steps[1]",
		},
		{
			name:    "no steps",
			cfg:     &Config{Pipelines: map[string]PipelineConfig{"p": {}}},
			wantErr: "pipelines[p]: 'steps' cannot be empty",
		},
		{
			name: "unknown filter",
			cfg: &Config{Pipelines: map[string]PipelineConfig{
				"p": {Steps: []StepConfig{{Filter: "shout"}}},
			}},
			wantErr: "unknown filter",
		},
		{
			name: "threshold out of range",
			cfg: &Config{Pipelines: map[string]PipelineConfig{
				"p": {Steps: []StepConfig{{Filter: "lowPercentUp", Threshold: threshold(120)}}},
			}},
			wantErr: "'threshold' must be between 0 and 100",
		},
		{
			name: "threshold on other filter",
			cfg: &Config{Pipelines: map[string]PipelineConfig{
				"p": {Steps: []StepConfig{{Filter: "titleCase", Threshold: threshold(50)}}},
			}},
			wantErr: "applies to lowPercentUp only",
		},
		{
			name: "exceptions on filter without exceptions",
			cfg: &Config{Pipelines: map[string]PipelineConfig{
				"p": {Steps: []StepConfig{{Filter: "whitespace", Exceptions: []string{"x"}}}},
			}},
			wantErr: "takes no exceptions",
		},
		{
			name: "threshold on rule",
			cfg: &Config{Pipelines: map[string]PipelineConfig{
				"p": {Steps: []StepConfig{{Rule: RuleConfig{"pattern": "a", "replacement": "b"}, Threshold: threshold(50)}}},
			}},
			wantErr: "apply to filters only",
		},
		{
			name: "bad guard",
			cfg: &Config{Pipelines: map[string]PipelineConfig{
				"p": {Steps: []StepConfig{{Filter: "titleCase", PreRule: RuleConfig{"pattern": "a"}}}},
			}},
			wantErr: "pipelines[p].steps[0]: pre_rule: rule field not set",
		},
		{
			name:    "default threshold",
			cfg:     &Config{Default: DefaultConfig{Threshold: threshold(-1)}},
			wantErr: "default: 'threshold'",
		},
		{
			name:    "default exceptions",
			cfg:     &Config{Default: DefaultConfig{Exceptions: map[string][]string{"punctuation": {"x"}}}},
			wantErr: "default.exceptions",
		},
		{
			name:    "negative ttl",
			cfg:     &Config{Cache: CacheConfig{TTL: -time.Second}},
			wantErr: "cache: 'ttl'",
		},
		{
			name:    "negative retries",
			cfg:     &Config{Cache: CacheConfig{Retry: RetryConfig{MaxRetries: -1}}},
			wantErr: "cache.retry",
		},
		{
			name:    "shrinking backoff",
			cfg:     &Config{Cache: CacheConfig{Retry: RetryConfig{Multiplier: 0.5}}},
			wantErr: "'multiplier' must be >= 1",
		},
		{
			name:    "negative rate limit",
			cfg:     &Config{Server: ServerConfig{RateLimitRequests: -1}},
			wantErr: "server: 'rate_limit_requests'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	t.Run("unknown filter is errors.Is", func(t *testing.T) {
		err := (&Config{}).ValidateStep(StepConfig{Filter: "shout"})
		if !errors.Is(err, filter.ErrUnknownFilter) {
			t.Errorf("ValidateStep() error = %v", err)
		}
	})
}

func TestFilterOptions(t *testing.T) {
	def, step := 60, 90
	cfg := &Config{Default: DefaultConfig{
		Threshold:  &def,
		Exceptions: map[string][]string{"titleCase": {"and"}},
	}}

	run := func(s StepConfig, text string) string {
		t.Helper()
		f := filter.Input(text, cfg.FilterOptions(s)...).Named(s.Filter)
		if f.Err() != nil {
			t.Fatalf("Named(%s) error = %v", s.Filter, f.Err())
		}
		return f.Output()
	}

	if got := run(StepConfig{Filter: "lowPercentUp"}, "ABCDEFghij"); got != "abcdefghij" {
		t.Errorf("default threshold not applied: %q", got)
	}
	if got := run(StepConfig{Filter: "lowPercentUp", Threshold: &step}, "ABCDEFGHIj"); got != "abcdefghij" {
		t.Errorf("step threshold not applied: %q", got)
	}
	if got := run(StepConfig{Filter: "lowPercentUp", Threshold: &step}, "ABCDEFGHij"); got != "ABCDEFGHij" {
		t.Errorf("step threshold should override default: %q", got)
	}
	if got := run(StepConfig{Filter: "titleCase"}, "war and the peace"); got != "War and The Peace" {
		t.Errorf("default exceptions not applied: %q", got)
	}
	if got := run(StepConfig{Filter: "titleCase", Exceptions: []string{"the"}}, "war and the peace"); got != "War And the Peace" {
		t.Errorf("step exceptions should override default: %q", got)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Pipelines) != 2 {
		t.Errorf("pipelines = %d, want 2", len(cfg.Pipelines))
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig() should fail for a missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("pipelines:\n  p:\n    steps:\n      - filter: shout\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = LoadConfig(bad)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("LoadConfig() error = %v, want invalid configuration", err)
	}
}

func TestExampleConfig(t *testing.T) {
	cfg, err := LoadConfig("../config.example.yaml")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Pipelines) == 0 {
		t.Error("example config should define pipelines")
	}
}
