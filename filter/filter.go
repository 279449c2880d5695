// Package filter turns raw strings into their canonical form through chained
// transformations.
//
//	pretty := filter.Input("  dissen am teutoburger wald ").Location().Output()
//
// Each method consumes the current text and stores the result for the next call.
// The first failing step stops the chain: the text stays at its last good value and
// Err reports the failure.
package filter

import (
	"github.com/joeychilson/textfilter/rules"
)

// Filter holds the text being normalized. It is not safe for concurrent use.
type Filter struct {
	text string
	err  error
	opts *options
}

type options struct {
	threshold          int
	titleExceptions    []string
	sentenceExceptions []string
	particles          []string
}

// Option configures a Filter or a looked-up step.
type Option func(*options)

// WithThreshold sets the lowPercentUp threshold used by named steps.
func WithThreshold(percent int) Option {
	return func(o *options) {
		o.threshold = percent
	}
}

// WithTitleExceptions replaces the words TitleCase leaves alone.
func WithTitleExceptions(words ...string) Option {
	return func(o *options) {
		o.titleExceptions = words
	}
}

// WithSentenceExceptions replaces the tokens SentenceCase leaves alone.
func WithSentenceExceptions(tokens ...string) Option {
	return func(o *options) {
		o.sentenceExceptions = tokens
	}
}

// WithLocationParticles replaces the particles Location keeps lower-case.
func WithLocationParticles(words ...string) Option {
	return func(o *options) {
		o.particles = words
	}
}

// WithExceptions sets the exception list of the named case filter.
// Names without an exception list are ignored.
func WithExceptions(name string, words ...string) Option {
	switch name {
	case NameTitleCase:
		return WithTitleExceptions(words...)
	case NameSentenceCase:
		return WithSentenceExceptions(words...)
	case NameLocation:
		return WithLocationParticles(words...)
	}
	return func(*options) {}
}

func newOptions(opts []Option) *options {
	o := &options{
		threshold:          DefaultThreshold,
		titleExceptions:    DefaultTitleExceptions,
		sentenceExceptions: DefaultSentenceExceptions,
		particles:          DefaultLocationParticles,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New creates a Filter over text.
func New(text string, opts ...Option) *Filter {
	return &Filter{
		text: text,
		opts: newOptions(opts),
	}
}

// Input is New, for reading left to right: filter.Input(s).Whitespace().Output().
func Input(text string, opts ...Option) *Filter {
	return New(text, opts...)
}

// Output returns the current text.
func (f *Filter) Output() string {
	return f.text
}

// Err returns the error of the step that stopped the chain, if any.
func (f *Filter) Err() error {
	return f.err
}

// Result returns the current text and error.
func (f *Filter) Result() (string, error) {
	return f.text, f.err
}

// Apply runs a custom step.
func (f *Filter) Apply(step Step) *Filter {
	if f.err != nil || step == nil {
		return f
	}
	out, err := step(f.text)
	if err != nil {
		f.err = err
		return f
	}
	f.text = out
	return f
}

// Whitespace collapses and trims whitespace.
func (f *Filter) Whitespace() *Filter {
	return f.Apply(Whitespace)
}

// Punctuation normalizes sentence punctuation.
func (f *Filter) Punctuation() *Filter {
	return f.Apply(Punctuation)
}

// NoFullStop removes a trailing period.
func (f *Filter) NoFullStop() *Filter {
	return f.Apply(NoFullStop)
}

// LowPercentUp lower-cases text that is at least DefaultThreshold percent upper-case.
func (f *Filter) LowPercentUp() *Filter {
	return f.Apply(LowPercentUp(DefaultThreshold))
}

// LowPercentUpAt lower-cases text that is at least percent upper-case.
func (f *Filter) LowPercentUpAt(percent int) *Filter {
	return f.Apply(LowPercentUp(percent))
}

// TitleCase capitalizes every word except the configured exceptions.
func (f *Filter) TitleCase() *Filter {
	return f.Apply(TitleCase(f.opts.titleExceptions))
}

// SentenceCase capitalizes the first letter.
func (f *Filter) SentenceCase() *Filter {
	return f.Apply(SentenceCase(f.opts.sentenceExceptions))
}

// Location formats a place name.
func (f *Filter) Location() *Filter {
	return f.Apply(Location(f.opts.particles))
}

// Brackets tidies spacing around brackets.
func (f *Filter) Brackets() *Filter {
	return f.Apply(Brackets)
}

// Markup strips HTML.
func (f *Filter) Markup() *Filter {
	return f.Apply(Markup)
}

// Unicode applies NFC normalization.
func (f *Filter) Unicode() *Filter {
	return f.Apply(Unicode)
}

// Fold removes diacritics.
func (f *Filter) Fold() *Filter {
	return f.Apply(Fold)
}

// Named runs a registered filter by name, configured with the Filter's options.
func (f *Filter) Named(name string) *Filter {
	if f.err != nil {
		return f
	}
	build, ok := registry[name]
	if !ok {
		f.err = unknownFilter(name)
		return f
	}
	return f.Apply(build(f.opts))
}

// Rules applies rules in order, each with its guards.
func (f *Filter) Rules(list ...*rules.Rule) *Filter {
	return f.Apply(rules.NewChain(list...).Apply)
}
