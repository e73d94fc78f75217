// Package protect implements the single decision function that guards
// OS-critical and out-of-scope resources from every sweeper.
package protect

import (
	"strings"

	"github.com/IGLOU-EU/go-wildcard"

	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
)

// Oracle answers "may this resource be touched?". It is a pure function of
// its inputs and the wall clock, safe for concurrent use.
type Oracle struct {
	terms    match.Terms
	deadline core.Deadline

	fragments   []string
	conditional []string
	roots       map[string]struct{}
	globs       []string
	processes   map[string]struct{}
	services    map[string]struct{}
	names       map[string]struct{}
	env         map[string]struct{}
	taskFolders []string
}

// New builds an oracle for one run.
func New(rules Rules, terms match.Terms, deadline core.Deadline) *Oracle {
	o := &Oracle{
		terms:     terms,
		deadline:  deadline,
		roots:     make(map[string]struct{}, len(rules.Roots)),
		processes: lowerSet(rules.Processes),
		services:  lowerSet(rules.Services),
		names:     lowerSet(rules.Names),
		env:       lowerSet(rules.Env),
	}
	for _, f := range rules.Fragments {
		if f = normalizeFragment(f); f != "" {
			o.fragments = append(o.fragments, f)
		}
	}
	for _, c := range rules.Conditional {
		if c = normalizeFragment(c); c != "" {
			o.conditional = append(o.conditional, c)
		}
	}
	for _, r := range rules.Roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		o.roots[Normalize(r)] = struct{}{}
	}
	for _, g := range rules.Globs {
		if g = normalizeFragment(g); g != "" {
			o.globs = append(o.globs, g)
		}
	}
	for _, tf := range rules.TaskFolders {
		tf = normalizeFragment(tf)
		if tf == "" {
			continue
		}
		if !strings.HasPrefix(tf, `\`) {
			tf = `\` + tf
		}
		o.taskFolders = append(o.taskFolders, tf)
	}
	return o
}

// Normalize lower-cases p, converts separators to backslashes and ensures a
// trailing separator so that directory fragments match the directory itself.
func Normalize(p string) string {
	n := strings.ToLower(strings.ReplaceAll(p, "/", `\`))
	if !strings.HasSuffix(n, `\`) {
		n += `\`
	}
	return n
}

func normalizeFragment(f string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(f), "/", `\`))
}

// IsProtected reports whether path must not be descended into or deleted.
// An elapsed deadline makes every path protected, which is how traversals
// learn they have run out of time.
func (o *Oracle) IsProtected(path string) bool {
	if o.deadline.Expired() {
		return true
	}
	return o.Denies(path)
}

// MayDescend reports whether a traversal may enter path. It differs from
// IsProtected only for exact never-delete roots, which are protected from
// removal but whose contents are still scanned.
func (o *Oracle) MayDescend(path string) bool {
	if o.deadline.Expired() {
		return false
	}
	if strings.TrimSpace(path) == "" {
		return false
	}
	return !o.deniesSubtree(Normalize(path))
}

// Denies applies the path rules without the deadline. It is used for
// resources that are identified by a path but are not being traversed, such
// as a process executable or a service binary.
func (o *Oracle) Denies(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	n := Normalize(path)
	if _, ok := o.roots[n]; ok {
		return true
	}
	if isVolumeRoot(n) {
		return true
	}
	return o.deniesSubtree(n)
}

// deniesSubtree applies the rules that cover a path and everything below
// it. n is already normalised.
func (o *Oracle) deniesSubtree(n string) bool {
	for _, f := range o.fragments {
		if strings.Contains(n, f) {
			return true
		}
	}

	if len(o.globs) > 0 {
		bare := strings.TrimSuffix(n, `\`)
		for _, g := range o.globs {
			if wildcard.Match(g, bare) || wildcard.Match(g, n) {
				return true
			}
		}
	}

	for _, c := range o.conditional {
		if strings.Contains(n, c) {
			return !o.terms.Match(n)
		}
	}

	return false
}

// isVolumeRoot reports drive roots ("c:\") and the filesystem root.
func isVolumeRoot(n string) bool {
	if n == `\` {
		return true
	}
	return len(n) == 3 && n[1] == ':' && n[2] == '\\'
}

// IsProtectedProcess reports whether a process must never be terminated,
// either by name or because its executable lives in a protected location.
func (o *Oracle) IsProtectedProcess(name, exe string) bool {
	lower := strings.ToLower(name)
	if _, ok := o.processes[lower]; ok {
		return true
	}
	if _, ok := o.processes[lower+".exe"]; ok {
		return true
	}
	return exe != "" && o.Denies(exe)
}

// IsProtectedService reports whether a service must never be stopped or
// deleted.
func (o *Oracle) IsProtectedService(name, binaryPath string) bool {
	if _, ok := o.services[strings.ToLower(name)]; ok {
		return true
	}
	return binaryPath != "" && o.Denies(binaryPath)
}

// IsProtectedName reports whether a key or directory name must never be
// deleted as a whole, regardless of term matches.
func (o *Oracle) IsProtectedName(name string) bool {
	_, ok := o.names[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// IsProtectedEnv reports whether an environment value must not be deleted.
func (o *Oracle) IsProtectedEnv(name string) bool {
	_, ok := o.env[strings.ToLower(name)]
	return ok
}

// IsProtectedTask reports whether a scheduled task path lies in a
// protected folder.
func (o *Oracle) IsProtectedTask(taskPath string) bool {
	n := normalizeFragment(taskPath)
	if !strings.HasPrefix(n, `\`) {
		n = `\` + n
	}
	for _, tf := range o.taskFolders {
		if strings.HasPrefix(n, tf) {
			return true
		}
	}
	return false
}

func lowerSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			m[it] = struct{}{}
		}
	}
	return m
}
