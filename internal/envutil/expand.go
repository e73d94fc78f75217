// Package envutil expands environment references in strings read from the
// registry, where REG_EXPAND_SZ data uses the Windows %VAR% form.
package envutil

import (
	"os"
	"strings"
)

// ExpandWindowsEnv resolves %VAR% references (case-insensitive, as Windows
// does) and then Unix-style $VAR / ${VAR} references. Unknown %VAR%
// references are left untouched so a half-resolved path never collapses
// into a shorter, wrong one.
func ExpandWindowsEnv(s string) string {
	return ExpandWith(s, os.LookupEnv)
}

// ExpandWith is ExpandWindowsEnv with a custom lookup function.
func ExpandWith(s string, lookup func(string) (string, bool)) string {
	if strings.Contains(s, "%") {
		s = expandPercent(s, lookup)
	}
	if strings.Contains(s, "$") {
		s = os.Expand(s, func(name string) string {
			if v, ok := lookupFold(name, lookup); ok {
				return v
			}
			return "$" + name
		})
	}
	return s
}

func expandPercent(s string, lookup func(string) (string, bool)) string {
	var b strings.Builder
	b.Grow(len(s))
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start + 1
		name := s[start+1 : end]
		b.WriteString(s[:start])
		if v, ok := lookupFold(name, lookup); ok && name != "" {
			b.WriteString(v)
			s = s[end+1:]
			continue
		}
		// Keep the opening % and resume at the closing one, which may start
		// the next reference.
		b.WriteString(s[start:end])
		s = s[end:]
	}
	return b.String()
}

func lookupFold(name string, lookup func(string) (string, bool)) (string, bool) {
	if v, ok := lookup(name); ok {
		return v, true
	}
	if v, ok := lookup(strings.ToUpper(name)); ok {
		return v, true
	}
	return "", false
}
