package utils

import (
	"strings"

	"golang.org/x/text/cases"
)

// NameKey returns the comparison key for a habit name: trimmed, inner
// whitespace collapsed and Unicode case-folded, so "Read  Books" and
// "read books" collide. A Caser is stateful, so one is built per call.
func NameKey(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}
