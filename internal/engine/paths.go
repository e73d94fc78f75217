package engine

import (
	"strings"

	"github.com/lakshaymaurya-felt/winreclaim/internal/config"
	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
)

// pathSet is an insertion-ordered, case-insensitive set of directories.
// It is only touched by the sequential phases.
type pathSet struct {
	seen  map[string]bool
	paths []string
}

func (s *pathSet) add(paths ...string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	for _, p := range paths {
		p = core.CleanPath(p)
		if len(p) <= 3 {
			continue
		}
		key := strings.ToLower(p)
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		s.paths = append(s.paths, p)
	}
}

func (s *pathSet) list() []string {
	return append([]string(nil), s.paths...)
}

// normKey lower-cases p and uses backslashes with a trailing separator, so
// that "c:\acme" is not mistaken for a parent of "c:\acme2".
func normKey(p string) string {
	n := strings.ToLower(strings.ReplaceAll(p, "/", `\`))
	if !strings.HasSuffix(n, `\`) {
		n += `\`
	}
	return n
}

// depthBelow returns how many levels child lies below parent, or -1 when
// it is not inside it.
func depthBelow(parent, child string) int {
	pk, ck := normKey(parent), normKey(child)
	if pk == ck {
		return 0
	}
	if !strings.HasPrefix(ck, pk) {
		return -1
	}
	return strings.Count(strings.TrimSuffix(ck[len(pk):], `\`), `\`) + 1
}

// collapsePaths drops every path that lies inside another one. Removing the
// outer directory removes the inner one too.
func collapsePaths(paths []string) []string {
	var out []string
	for i, p := range paths {
		nested := false
		for j, q := range paths {
			if i == j {
				continue
			}
			d := depthBelow(q, p)
			if d > 0 || (d == 0 && j < i) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, p)
		}
	}
	return out
}

// collapseRoots drops scan roots that another root already covers: the
// nested root lies inside it and the outer walk reaches at least as deep.
// A shallow drive-root scan therefore never hides a deeper Program Files
// scan.
func collapseRoots(roots []config.ScanRoot) []config.ScanRoot {
	var out []config.ScanRoot
	for i, r := range roots {
		covered := false
		for j, o := range roots {
			if i == j {
				continue
			}
			d := depthBelow(o.Path, r.Path)
			if d < 0 {
				continue
			}
			if d == 0 && o.Depth == r.Depth && j > i {
				continue
			}
			if o.Depth >= r.Depth+d {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, r)
		}
	}
	return out
}

// nestedRoots returns the paths of the roots that lie strictly inside
// roots[i].
func nestedRoots(roots []config.ScanRoot, i int) []string {
	var out []string
	for j, r := range roots {
		if j != i && depthBelow(roots[i].Path, r.Path) > 0 {
			out = append(out, r.Path)
		}
	}
	return out
}
