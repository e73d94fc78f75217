// Package ui renders progress lines, the final report and the
// confirmation prompt.
package ui

import "github.com/charmbracelet/lipgloss"

// ─── Palette ─────────────────────────────────────────────────────────────────

var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#7c3aed", Dark: "#a78bfa"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	ColorText    = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#f3f4f6"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#16a34a", Dark: "#4ade80"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#ca8a04", Dark: "#facc15"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#dc2626", Dark: "#f87171"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0891b2", Dark: "#22d3ee"}
)

// ─── Icons ───────────────────────────────────────────────────────────────────

const (
	IconBullet  = "•"
	IconCheck   = "✓"
	IconWarning = "!"
	IconArrow   = "›"
)
