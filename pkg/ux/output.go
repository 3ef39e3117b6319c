// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders styled terminal output for the screenplay CLI.
//
// All output goes through a Printer bound to one writer and one Mode, so
// commands can be pointed at a buffer in tests and at a pipe in scripts.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorInk       = lipgloss.Color("#E8E3D9") // Paper white - primary text
	ColorAccent    = lipgloss.Color("#F2B134") // Marquee amber - titles, highlights
	ColorHighlight = lipgloss.Color("#F7D488") // Pale amber - emphasis
	ColorFrame     = lipgloss.Color("#6C5B7B") // Curtain plum - borders
	ColorSlate     = lipgloss.Color("#4A4E69") // Slate - muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorHighlight),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorFrame).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconSkipped Icon = "–"
	IconBullet  Icon = "•"
)

// style returns the style an icon renders with.
func (i Icon) style() lipgloss.Style {
	switch i {
	case IconSuccess:
		return Styles.Success
	case IconWarning:
		return Styles.Warning
	case IconError:
		return Styles.Error
	case IconPending, IconSkipped:
		return Styles.Muted
	default:
		return lipgloss.NewStyle()
	}
}

// Printer writes styled lines to one writer.
//
// Description:
//
//	In ModeRich every helper styles its text with lipgloss. ModePlain keeps
//	icons and layout but drops colour. ModeMachine emits tab separated or
//	prefixed lines that are stable for scripts; decorative output such as
//	titles is suppressed.
//
// Thread Safety:
//
//	Not safe for concurrent use. A Spinner writing to the same writer must
//	be stopped before the Printer is used again.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter returns a Printer for w in the given mode.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode reports the printer's output mode.
func (p *Printer) Mode() Mode { return p.mode }

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Render applies s to text in ModeRich and returns text unchanged otherwise.
func (p *Printer) Render(s lipgloss.Style, text string) string {
	if p.mode != ModeRich {
		return text
	}
	return s.Render(text)
}

// Icon renders an icon for the printer's mode.
func (p *Printer) Icon(i Icon) string {
	return p.Render(i.style(), string(i))
}

// Title prints a styled title.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.w, p.Render(Styles.Title, text))
}

// Success prints a success message with a checkmark.
func (p *Printer) Success(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "OK: %s\n", text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", p.Icon(IconSuccess), p.Render(Styles.Success, text))
	}
}

// Warning prints a warning message.
func (p *Printer) Warning(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "WARN: %s\n", text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", p.Icon(IconWarning), p.Render(Styles.Warning, text))
	}
}

// Error prints an error message.
func (p *Printer) Error(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", p.Icon(IconError), p.Render(Styles.Error, text))
	}
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintln(p.w, text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", p.Render(Styles.Muted, "│"), text)
	}
}

// KeyValue prints an aligned label and value.
func (p *Printer) KeyValue(key, value string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s\t%s\n", key, value)
		return
	}
	fmt.Fprintf(p.w, "  %s %s\n", p.Render(Styles.Muted, fmt.Sprintf("%-18s", key+":")), value)
}

// Status prints one item with a status icon and an optional reason.
func (p *Printer) Status(icon Icon, label, reason string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s\t%s\t%s\n", icon, label, reason)
		return
	}
	if reason == "" {
		fmt.Fprintf(p.w, "%s %s\n", p.Icon(icon), label)
		return
	}
	fmt.Fprintf(p.w, "%s %s %s\n", p.Icon(icon), label, p.Render(Styles.Muted, "("+reason+")"))
}

// List prints bulleted items under a heading. Nothing is printed for an
// empty list.
func (p *Printer) List(heading string, items []string) {
	if len(items) == 0 {
		return
	}
	if p.mode == ModeMachine {
		for _, it := range items {
			fmt.Fprintf(p.w, "%s\t%s\n", heading, it)
		}
		return
	}
	fmt.Fprintln(p.w, p.Render(Styles.Subtitle, heading))
	for _, it := range items {
		fmt.Fprintf(p.w, "  %s %s\n", p.Icon(IconBullet), it)
	}
}

// Box prints content in a rounded box under a title.
func (p *Printer) Box(title, content string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s: %s\n", title, strings.ReplaceAll(content, "\n", " "))
	case ModePlain:
		fmt.Fprintf(p.w, "%s\n%s\n", title, content)
	default:
		fmt.Fprintln(p.w, Styles.Box.Width(72).Render(Styles.Title.Render(title)+"\n"+content))
	}
}

// ScoreBar renders a 0-100 score as a bar of the given width followed by
// the value. Scores outside the range are clamped.
func (p *Printer) ScoreBar(score float64, width int) string {
	score = min(max(score, 0), 100)
	if p.mode == ModeMachine {
		return fmt.Sprintf("%.2f", score)
	}
	filled := int(score / 100 * float64(width))
	style := Styles.Success
	switch {
	case score < 50:
		style = Styles.Error
	case score < 70:
		style = Styles.Warning
	}
	bar := p.Render(style, strings.Repeat("█", filled)) +
		p.Render(Styles.Muted, strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %6.2f", bar, score)
}
