package rules

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// Private use area scanned for placeholder delimiters.
const (
	privateUseFirst = '\uE000'
	privateUseLast  = '\uF8FF'
)

// ProtectOptions controls where Protect shields words.
type ProtectOptions struct {
	// IgnoreCase matches the words case-insensitively.
	IgnoreCase bool
	// SkipLeading protects a word only after whitespace or a hyphen, so a word that
	// opens the text still receives the casing applied to the first word.
	SkipLeading bool
}

// Placeholders returns two distinct private-use runes that do not occur in text.
// Protected spans are wrapped in them, which no real content can collide with.
func Placeholders(text string) (open, close rune) {
	for r := privateUseFirst; r <= privateUseLast; r++ {
		if strings.ContainsRune(text, r) {
			continue
		}
		if open == 0 {
			open = r
			continue
		}
		return open, r
	}
	return open, 0
}

// Protect builds the guard pair shielding words in text: the pre rule wraps every
// whole-word occurrence in placeholder runes and the post rule unwraps them again.
// Callers put a transformation between them that leaves tokens opening with a
// non-letter alone.
func Protect(text string, words []string, opts ProtectOptions) (pre, post *Rule, err error) {
	if len(words) == 0 {
		return nil, nil, fmt.Errorf("%w: no words to protect", ErrMissingField)
	}

	open, close := Placeholders(text)
	if close == 0 {
		return nil, nil, fmt.Errorf("%w: no free placeholder runes", ErrPattern)
	}

	alternatives := make([]string, 0, len(words))
	for _, word := range words {
		if word == "" {
			continue
		}
		alternatives = append(alternatives, regexp2.Escape(word))
	}
	if len(alternatives) == 0 {
		return nil, nil, fmt.Errorf("%w: no words to protect", ErrMissingField)
	}

	lead := `(?<![\p{L}\p{N}])`
	if opts.SkipLeading {
		lead = `(?<=[\s\-])`
	}
	expr := lead + `(` + strings.Join(alternatives, "|") + `)(?![\p{L}\p{N}])`

	var flags Flags
	if opts.IgnoreCase {
		flags = IgnoreCase
	}

	pre, err = New(expr, string(open)+"$1"+string(close), WithFlags(flags))
	if err != nil {
		return nil, nil, err
	}

	o, c := regexp2.Escape(string(open)), regexp2.Escape(string(close))
	post, err = New(o+`([^`+c+`]*)`+c, "$1")
	if err != nil {
		return nil, nil, err
	}
	return pre, post, nil
}
