package core

import "strings"

// Dir returns the parent directory of a Windows or slash-separated path
// independent of the host OS, so paths read from the registry or a process
// table can be handled in tests on any platform. Drive roots keep their
// trailing separator.
func Dir(p string) string {
	p = strings.TrimRight(p, `\/`)
	i := strings.LastIndexAny(p, `\/`)
	if i < 0 {
		return ""
	}
	dir := p[:i]
	if dir == "" {
		return p[:1]
	}
	if len(dir) == 2 && dir[1] == ':' {
		return dir + p[i:i+1]
	}
	return dir
}

// Base returns the last element of a Windows or slash-separated path.
func Base(p string) string {
	p = strings.TrimRight(p, `\/`)
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// CleanPath trims quotes and whitespace and drops a trailing separator
// (except on drive roots).
func CleanPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, `"`)
	p = strings.TrimSpace(p)
	if len(p) > 3 || (len(p) > 1 && p[1] != ':') {
		p = strings.TrimRight(p, `\/`)
	}
	return p
}
