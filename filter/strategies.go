package filter

import (
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joeychilson/textfilter/rules"
)

var (
	whitespaceRules = rules.NewChain(
		// horizontal runs to one space
		rules.MustNew(`[^\S\r\n]+`, " "),
		rules.MustNew(` ?(\r?\n) ?`, "$1"),
		rules.MustNew(`\A\s+|\s+\z`, ""),
	)

	punctuationRules = rules.NewChain(
		rules.MustNew(`\.{2,}`, "."),
		rules.MustNew(`([!?])\1+`, "$1"),
		rules.MustNew(`([.!?])[,;:]+`, "$1"),
		rules.MustNew(`\s+(?=[.,;:!?])`, ""),
		rules.MustNew(`\A[\s.,;:!?]+`, ""),
		rules.MustNew(`(?<=[.,;:!?])[^\S\r\n]+(?=\S)`, " "),
		// "foo.Bar" but not "U.S.A"
		rules.MustNew(`(?<=\p{Ll}{2}[.!?])(?=\p{Lu})`, " "),
		rules.MustNew(`[\s,;:]+\z`, ""),
		rules.MustNew(`(?<=\S)(?<![.!?…]["'”’»)\]]*)\z`, "."),
	)

	noFullStopRule = rules.MustNew(`(?<!\.)\.\s*\z`, "")

	bracketRules = rules.NewChain(
		rules.MustNew(`([(\[{])[^\S\r\n]+`, "$1"),
		rules.MustNew(`[^\S\r\n]+([)\]}])`, "$1"),
		rules.MustNew(`(?<=[\p{L}\p{N}])([(\[{])`, " $1"),
	)

	markupPolicy = bluemonday.StrictPolicy()
)

// Whitespace collapses runs of horizontal whitespace into single spaces, drops spaces
// around line breaks and trims the text.
func Whitespace(text string) (string, error) {
	return whitespaceRules.Apply(text)
}

// Punctuation normalizes sentence punctuation: repeated terminators collapse, stray
// spaces before punctuation go, leading punctuation is stripped and the text ends with
// a terminator.
func Punctuation(text string) (string, error) {
	return punctuationRules.Apply(text)
}

// NoFullStop removes a single trailing period. An ellipsis is left alone.
func NoFullStop(text string) (string, error) {
	return noFullStopRule.ApplyWithGuards(text)
}

// Brackets removes padding just inside brackets and separates an opening bracket from
// a preceding word.
func Brackets(text string) (string, error) {
	return bracketRules.Apply(text)
}

// Markup strips HTML tags and decodes entities.
func Markup(text string) (string, error) {
	return html.UnescapeString(markupPolicy.Sanitize(text)), nil
}

// Unicode converts the text to Unicode normalization form C.
func Unicode(text string) (string, error) {
	return norm.NFC.String(text), nil
}

// Fold removes combining diacritics, turning "Zürich" into "Zurich".
func Fold(text string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text, err
	}
	return out, nil
}
