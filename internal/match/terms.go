// Package match decides whether a resource's identifying string belongs to
// the target application. Every sweeper uses the same Terms value so "what
// counts as a match" is a single policy.
package match

import "strings"

// Terms is the immutable, ordered set of lower-cased target terms.
type Terms struct {
	terms []string
}

// NewTerms normalises raw terms: trims space, lower-cases, drops empties and
// duplicates, and keeps first-seen order.
func NewTerms(raw ...string) Terms {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := strings.ToLower(strings.TrimSpace(r))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return Terms{terms: out}
}

// Match reports whether candidate contains any term, ignoring case.
func (t Terms) Match(candidate string) bool {
	if candidate == "" || len(t.terms) == 0 {
		return false
	}
	lower := strings.ToLower(candidate)
	for _, term := range t.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// MatchAny reports whether any candidate matches.
func (t Terms) MatchAny(candidates ...string) bool {
	for _, c := range candidates {
		if t.Match(c) {
			return true
		}
	}
	return false
}

// Len returns the number of terms.
func (t Terms) Len() int {
	return len(t.terms)
}

// List returns a copy of the terms.
func (t Terms) List() []string {
	return append([]string(nil), t.terms...)
}

// Shortest returns the length of the shortest term, or 0 when empty.
func (t Terms) Shortest() int {
	n := 0
	for i, term := range t.terms {
		if i == 0 || len(term) < n {
			n = len(term)
		}
	}
	return n
}

func (t Terms) String() string {
	quoted := make([]string, len(t.terms))
	for i, term := range t.terms {
		quoted[i] = `"` + term + `"`
	}
	return strings.Join(quoted, " ")
}
