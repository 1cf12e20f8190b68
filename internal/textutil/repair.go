// Package textutil repairs text artifacts left behind by the listing markup.
package textutil

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// duplicatePhrase matches a word or short phrase immediately followed by one
// or more repetitions of itself, e.g. "ActionAction" or "Award Winning Award Winning".
// The phrase starts on a word character so the space before it is never
// consumed. Words made of two equal halves ("Bebe") collapse too.
// RE2 has no backreferences, hence regexp2.
var duplicatePhrase = regexp2.MustCompile(`\b(\w[\w\s-]*?)(?:\s*\1)+\b`, regexp2.IgnoreCase)

// RepairDuplicates collapses immediately repeated phrases into one occurrence
// and trims the result.
func RepairDuplicates(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	out, err := duplicatePhrase.ReplaceFunc(s, func(m regexp2.Match) string {
		return m.GroupByNumber(1).String()
	}, -1, -1)
	if err != nil {
		// Only a match timeout can fail here; keep the input untouched.
		return s
	}
	return strings.TrimSpace(out)
}

// RepairList repairs every item and drops the ones left empty. Nil or empty
// input yields nil.
func RepairList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if fixed := RepairDuplicates(item); fixed != "" {
			out = append(out, fixed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SplitTags splits a comma separated tag string and repairs each segment.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return RepairList(strings.Split(s, ","))
}

// Repair is the optional form used on aggregated cells: nil or blank input
// yields nil, anything else a one-element repaired list.
func Repair(s *string) []string {
	if s == nil {
		return nil
	}
	if fixed := RepairDuplicates(*s); fixed != "" {
		return []string{fixed}
	}
	return nil
}
