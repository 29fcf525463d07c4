package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/wpgraph/wpgraph/internal/types"
)

// Ayu palette, adaptive to light and dark terminals.
var (
	colorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMute = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorAcc  = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	passStyle     = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle     = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle     = lipgloss.NewStyle().Foreground(colorFail)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMute)
	accentStyle   = lipgloss.NewStyle().Foreground(colorAcc)
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAcc)
)

const (
	iconPass = "✓"
	iconWarn = "⚠"
	iconFail = "✗"
	iconSkip = "-"

	treeLast = "└─ "
)

func renderPass(s string) string     { return passStyle.Render(s) }
func renderWarn(s string) string     { return warnStyle.Render(s) }
func renderFail(s string) string     { return failStyle.Render(s) }
func renderMuted(s string) string    { return mutedStyle.Render(s) }
func renderAccent(s string) string   { return accentStyle.Render(s) }
func renderCategory(s string) string { return categoryStyle.Render(s) }

// renderStatus colors a status id: closed statuses are muted, the rest
// use the accent color.
func renderStatus(s *types.Status, id string) string {
	if s != nil && s.IsClosed {
		return renderMuted(id)
	}
	return renderAccent(id)
}
