package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/stemtouch/internal/audio"
	"github.com/audiolibrelab/stemtouch/internal/confine"
	"github.com/audiolibrelab/stemtouch/internal/console"
	"github.com/audiolibrelab/stemtouch/internal/fader"
	"github.com/audiolibrelab/stemtouch/internal/zone"
)

const defaultWidth = 80

func (m Model) View() string {
	var out strings.Builder

	if m.mode == modeBrowse {
		out.WriteString(m.songs.View())
	} else {
		out.WriteString(m.mixView())
	}

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(m.styles.warn.Render(m.status))
	}
	return out.String()
}

func (m Model) mixView() string {
	s := m.snap
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	header := m.styles.header.Render(fmt.Sprintf("stemtouch  %s  %s / %s  %s",
		transportLabel(s.Transport), formatClock(s.Position), formatClock(s.Length), s.Song))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	out.WriteString(zoneStrip(s.Zones, s.Faders, width, s.HoverZone))
	out.WriteString("\n\n")

	labelWidth := 0
	for _, f := range s.Faders {
		labelWidth = max(labelWidth, lipgloss.Width(f.Label))
	}
	barWidth := max(10, width-labelWidth-24)
	for _, f := range s.Faders {
		out.WriteString(m.faderLine(f, labelWidth, barWidth))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(m.styles.label.Render(valuesLine(s.Faders)))
	out.WriteString("\n")
	out.WriteString(m.lockLine(s))
	out.WriteString("\n")
	out.WriteString(m.inputLine(s))
	if s.LastError != "" {
		out.WriteString("\n")
		out.WriteString(m.styles.warn.Render(s.LastError))
	}
	out.WriteString("\n\n")
	out.WriteString(m.help.View(mixKeys{m.keys}))
	return out.String()
}

func (m Model) faderLine(f fader.Snapshot, labelWidth, barWidth int) string {
	label := fmt.Sprintf("%d %-*s", f.Index+1, labelWidth, f.Label)
	bar := renderBar(f.Gain, barWidth)
	value := fmt.Sprintf("%5.2f", f.Value)

	switch {
	case f.Muted:
		return m.styles.muted.Render(label+" ["+renderBar(f.Value, barWidth)+"] "+value) + m.styles.dim.Render("  muted")
	case f.Active:
		return m.styles.active.Render(label+" ["+bar+"] "+value) + m.styles.dim.Render("  touch")
	default:
		return m.styles.label.Render(label + " [" + bar + "] " + value)
	}
}

func (m Model) lockLine(s console.Snapshot) string {
	switch s.Lock {
	case confine.LockEngaged:
		return m.styles.active.Render(s.CursorLock)
	case confine.LockUnavailable:
		return m.styles.warn.Render(s.CursorLock)
	default:
		return m.styles.dim.Render(s.CursorLock)
	}
}

func (m Model) inputLine(s console.Snapshot) string {
	if !s.InputReady {
		msg := "Touch input unavailable, faders inert"
		if s.InputError != "" {
			msg += ": " + s.InputError
		}
		return m.styles.warn.Render(msg)
	}
	line := fmt.Sprintf("Touch ready, %d hovering", len(s.Hovers))
	if s.Dropped > 0 {
		line += fmt.Sprintf(", %d events dropped", s.Dropped)
	}
	return m.styles.dim.Render(line)
}

func transportLabel(s audio.State) string {
	switch s {
	case audio.StatePlaying:
		return "> PLAYING"
	case audio.StatePaused:
		return "| PAUSED "
	default:
		return "# STOPPED"
	}
}

// renderBar draws [=====|----] for a normalized value
func renderBar(norm float64, width int) string {
	if width < 1 {
		return ""
	}
	if math.IsNaN(norm) {
		norm = 0
	}
	norm = math.Max(0, math.Min(1, norm))
	pos := int(math.Round(norm * float64(width-1)))
	return strings.Repeat("=", pos) + "|" + strings.Repeat("-", width-pos-1)
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// valuesLine is the one-line readout of every fader
func valuesLine(faders []fader.Snapshot) string {
	if len(faders) == 0 {
		return "No song loaded"
	}
	parts := make([]string, len(faders))
	for i, f := range faders {
		parts[i] = fmt.Sprintf("%s %.2f", f.Label, f.Value)
		if f.Muted {
			parts[i] += " (muted)"
		}
	}
	return "Values: " + strings.Join(parts, " | ")
}

// zoneStrip draws the zone partition of the surface scaled to width, with the
// hovered zone highlighted
func zoneStrip(zones []zone.Zone, faders []fader.Snapshot, width, hover int) string {
	if len(zones) == 0 {
		return ""
	}

	cells := make([]string, len(zones))
	used := 0
	for i, z := range zones {
		w := int(math.Round(z.End*float64(width))) - used
		if i == len(zones)-1 {
			w = width - used
		}
		w = max(w, 2)
		used += w

		name := fmt.Sprintf("%d", i+1)
		if i < len(faders) {
			name = faders[i].Label
		}
		if i == hover {
			name = "*" + name
		}
		inner := w - 1
		if lipgloss.Width(name) > inner {
			name = truncate(name, inner)
		}
		cells[i] = lipgloss.PlaceHorizontal(inner, lipgloss.Center, name) + "|"
	}
	return "|" + strings.Join(cells, "")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
