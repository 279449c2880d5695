package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

var (
	// ErrInvalidAttribute is returned when setting a field outside pattern, replacement, preRule and postRule.
	ErrInvalidAttribute = errors.New("invalid rule attribute")
	// ErrInvalidValue is returned when a field is set to a value of the wrong type.
	ErrInvalidValue = errors.New("invalid rule value")
	// ErrMissingField is returned when a rule is applied before its pattern or replacement is set.
	ErrMissingField = errors.New("rule field not set")
	// ErrPattern is returned for patterns that fail to compile or to match.
	ErrPattern = errors.New("invalid rule pattern")
)

// Field names accepted by Set.
const (
	FieldPattern     = "pattern"
	FieldReplacement = "replacement"
	FieldPreRule     = "preRule"
	FieldPostRule    = "postRule"
)

// Func is a whole-text transformation used as the primary step of a filter rule.
type Func func(text string) (string, error)

// Rule is a regex substitution with optional guard rules applied before and after it.
//
// The zero value is usable: set the pattern and replacement before applying it.
// A rule must not be modified while it is being applied.
type Rule struct {
	expr        string
	re          *regexp2.Regexp
	delimited   bool
	replacement string
	hasRepl     bool

	name string
	fn   Func

	preRule  *Rule
	postRule *Rule

	flags   Flags
	timeout time.Duration
}

// Option configures a Rule at construction.
type Option func(*Rule)

// WithPreRule sets the rule applied before the primary substitution.
func WithPreRule(pre *Rule) Option {
	return func(r *Rule) {
		r.preRule = pre
	}
}

// WithPostRule sets the rule applied after the primary substitution.
func WithPostRule(post *Rule) Option {
	return func(r *Rule) {
		r.postRule = post
	}
}

// WithFlags adds regex flags to the ones given in a delimited pattern.
func WithFlags(flags Flags) Option {
	return func(r *Rule) {
		r.flags |= flags
	}
}

// WithTimeout bounds the time a single substitution may spend matching.
func WithTimeout(d time.Duration) Option {
	return func(r *Rule) {
		r.timeout = d
	}
}

// New creates a substitution rule.
// The pattern is either a bare expression or a delimited one such as `/\bdel\b/mi`.
func New(pattern, replacement string, opts ...Option) (*Rule, error) {
	r := &Rule{}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.SetPattern(pattern); err != nil {
		return nil, err
	}
	r.SetReplacement(replacement)
	return r, nil
}

// MustNew is like New but panics if the pattern does not compile.
func MustNew(pattern, replacement string, opts ...Option) *Rule {
	r, err := New(pattern, replacement, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// NewFunc creates a filter rule: fn replaces the substitution, guards still apply around it.
func NewFunc(name string, fn Func, opts ...Option) (*Rule, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: filter rule %q has no function", ErrMissingField, name)
	}
	r := &Rule{name: name, fn: fn}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Pattern returns the pattern as it was given.
func (r *Rule) Pattern() string {
	return r.expr
}

// Replacement returns the replacement and whether it has been set.
func (r *Rule) Replacement() (string, bool) {
	return r.replacement, r.hasRepl
}

// PreRule returns the guard applied before the substitution, or nil.
func (r *Rule) PreRule() *Rule {
	return r.preRule
}

// PostRule returns the guard applied after the substitution, or nil.
func (r *Rule) PostRule() *Rule {
	return r.postRule
}

// Name returns the filter name of a filter rule, or the pattern otherwise.
func (r *Rule) Name() string {
	if r.fn != nil {
		return r.name
	}
	return r.expr
}

// SetPattern compiles and sets the pattern. On error the rule keeps its previous pattern.
// Setting a pattern turns a filter rule back into a substitution rule.
func (r *Rule) SetPattern(pattern string) error {
	expr, flags, delimited, err := parsePattern(pattern)
	if err != nil {
		return err
	}

	re, err := regexp2.Compile(expr, (flags | r.flags).options())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPattern, pattern, err)
	}
	if r.timeout > 0 {
		re.MatchTimeout = r.timeout
	}

	r.expr = pattern
	r.re = re
	r.delimited = delimited
	r.fn = nil
	r.name = ""
	return nil
}

// SetReplacement sets the replacement. An empty replacement deletes matches.
func (r *Rule) SetReplacement(replacement string) {
	r.replacement = replacement
	r.hasRepl = true
}

// SetTimeout bounds matching time for the current and any later pattern.
func (r *Rule) SetTimeout(d time.Duration) {
	r.timeout = d
	if r.re != nil && d > 0 {
		r.re.MatchTimeout = d
	}
}

// SetPreRule sets or clears the guard applied before the substitution.
func (r *Rule) SetPreRule(pre *Rule) {
	r.preRule = pre
}

// SetPostRule sets or clears the guard applied after the substitution.
func (r *Rule) SetPostRule(post *Rule) {
	r.postRule = post
}

// Set assigns a field by name. Only pattern, replacement, preRule and postRule exist;
// any other name returns ErrInvalidAttribute and leaves the rule untouched.
func (r *Rule) Set(field string, value any) error {
	switch field {
	case FieldPattern:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidValue, field, value)
		}
		return r.SetPattern(s)
	case FieldReplacement:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidValue, field, value)
		}
		r.SetReplacement(s)
		return nil
	case FieldPreRule, FieldPostRule:
		var guard *Rule
		switch v := value.(type) {
		case *Rule:
			guard = v
		case nil:
		default:
			return fmt.Errorf("%w: %s must be a rule, got %T", ErrInvalidValue, field, value)
		}
		if field == FieldPreRule {
			r.SetPreRule(guard)
		} else {
			r.SetPostRule(guard)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAttribute, field)
	}
}

// Apply performs one global substitution over text.
func (r *Rule) Apply(text string) (string, error) {
	if r.fn != nil {
		out, err := r.fn(text)
		if err != nil {
			return text, fmt.Errorf("filter %s: %w", r.name, err)
		}
		return out, nil
	}

	if r.re == nil {
		return text, fmt.Errorf("%w: pattern", ErrMissingField)
	}
	if !r.hasRepl {
		return text, fmt.Errorf("%w: replacement", ErrMissingField)
	}

	replacement := r.replacement
	if r.delimited {
		replacement = translateBackrefs(replacement)
	}

	out, err := r.re.Replace(text, replacement, -1, -1)
	if err != nil {
		return text, fmt.Errorf("%w: %s: %v", ErrPattern, r.expr, err)
	}
	return out, nil
}

// ApplyWithGuards applies the pre rule, the rule itself and the post rule, in that order,
// each over the whole text. Unset guards are skipped. On error the input is returned unchanged.
func (r *Rule) ApplyWithGuards(text string) (string, error) {
	out := text
	var err error

	if r.preRule != nil {
		if out, err = r.preRule.Apply(out); err != nil {
			return text, fmt.Errorf("pre rule: %w", err)
		}
	}

	if out, err = r.Apply(out); err != nil {
		return text, err
	}

	if r.postRule != nil {
		if out, err = r.postRule.Apply(out); err != nil {
			return text, fmt.Errorf("post rule: %w", err)
		}
	}
	return out, nil
}
