package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Progress tags written by the engine.
const (
	TagPhase    = "PHASE"
	TagKill     = "KILL"
	TagFound    = "FOUND"
	TagDelete   = "DELETE"
	TagNuke     = "NUKE"
	TagUnlock   = "UNLOCK"
	TagPending  = "PENDING"
	TagService  = "SERVICE"
	TagTask     = "TASK"
	TagFirewall = "FIREWALL"
	TagShortcut = "SHORTCUT"
	TagReg      = "REG"
	TagEnv      = "ENV"
	TagMatch    = "MATCH"
	TagSkip     = "SKIP"
	TagFail     = "FAIL"
)

var tagColors = map[string]lipgloss.TerminalColor{
	TagPhase:    ColorPrimary,
	TagKill:     ColorDanger,
	TagFound:    ColorInfo,
	TagDelete:   ColorSuccess,
	TagNuke:     ColorDanger,
	TagUnlock:   ColorWarning,
	TagPending:  ColorWarning,
	TagService:  ColorSuccess,
	TagTask:     ColorSuccess,
	TagFirewall: ColorSuccess,
	TagShortcut: ColorSuccess,
	TagReg:      ColorSuccess,
	TagEnv:      ColorSuccess,
	TagMatch:    ColorInfo,
	TagSkip:     ColorMuted,
	TagFail:     ColorDanger,
}

// Reporter writes one tagged line per event. Lines from concurrent workers
// never interleave. A nil *Reporter discards everything.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewReporter writes to out, coloured when out is a terminal.
func NewReporter(out io.Writer) *Reporter {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{out: out, color: color}
}

// Tag writes "[TAG] message".
func (r *Reporter) Tag(tag, format string, args ...any) {
	if r == nil || r.out == nil {
		return
	}
	label := "[" + tag + "]"
	if r.color {
		style := lipgloss.NewStyle().Bold(true)
		if c, ok := tagColors[tag]; ok {
			style = style.Foreground(c)
		}
		label = style.Render(label)
	}
	line := label + " " + fmt.Sprintf(format, args...) + "\n"

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, line)
}

// Println writes an untagged line.
func (r *Reporter) Println(s string) {
	if r == nil || r.out == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, s+"\n")
}

// Colored reports whether styles are rendered.
func (r *Reporter) Colored() bool {
	return r != nil && r.color
}
