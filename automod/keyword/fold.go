package keyword

import (
	"log/slog"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Case-folds text and strips combining marks, so that "SPÄM" and "spam" compare equal.
func FoldText(text string) string {
	// transformers are stateful, and need to be re-created for every call
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(normFunc, text)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		out = text
	}
	return cases.Fold().String(out)
}
