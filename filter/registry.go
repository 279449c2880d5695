package filter

import (
	"errors"
	"fmt"
	"slices"

	"github.com/joeychilson/textfilter/rules"
)

// ErrUnknownFilter is returned when a filter name is not registered.
var ErrUnknownFilter = errors.New("unknown filter")

// Registered filter names.
const (
	NameWhitespace   = "whitespace"
	NamePunctuation  = "punctuation"
	NameNoFullStop   = "noFullStop"
	NameLowPercentUp = "lowPercentUp"
	NameTitleCase    = "titleCase"
	NameSentenceCase = "sentenceCase"
	NameLocation     = "location"
	NameBrackets     = "brackets"
	NameMarkup       = "markup"
	NameUnicode      = "unicode"
	NameFold         = "fold"
)

var registry = map[string]func(o *options) Step{
	NameWhitespace:   func(*options) Step { return Whitespace },
	NamePunctuation:  func(*options) Step { return Punctuation },
	NameNoFullStop:   func(*options) Step { return NoFullStop },
	NameLowPercentUp: func(o *options) Step { return LowPercentUp(o.threshold) },
	NameTitleCase:    func(o *options) Step { return TitleCase(o.titleExceptions) },
	NameSentenceCase: func(o *options) Step { return SentenceCase(o.sentenceExceptions) },
	NameLocation:     func(o *options) Step { return Location(o.particles) },
	NameBrackets:     func(*options) Step { return Brackets },
	NameMarkup:       func(*options) Step { return Markup },
	NameUnicode:      func(*options) Step { return Unicode },
	NameFold:         func(*options) Step { return Fold },
}

// Lookup returns the named filter configured with opts.
func Lookup(name string, opts ...Option) (Step, bool) {
	build, ok := registry[name]
	if !ok {
		return nil, false
	}
	return build(newOptions(opts)), true
}

// Names returns the registered filter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewRule creates a filter rule running the named filter between the pre and post
// guards, e.g. protecting "del" from titleCase.
func NewRule(name string, pre, post *rules.Rule, opts ...Option) (*rules.Rule, error) {
	step, ok := Lookup(name, opts...)
	if !ok {
		return nil, unknownFilter(name)
	}
	return rules.NewFunc(name, rules.Func(step), rules.WithPreRule(pre), rules.WithPostRule(post))
}

func unknownFilter(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownFilter, name)
}
