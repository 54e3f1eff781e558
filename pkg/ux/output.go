// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders datavalidate's terminal output.
//
// Output adapts to the personality level: styled for terminals, plain
// tab-separated lines in machine mode so reports can be piped to other
// tools.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with its style.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// machineTag is the first column of a status line in machine mode.
func (i Icon) machineTag() string {
	switch i {
	case IconSuccess:
		return "OK"
	case IconWarning:
		return "WARN"
	case IconError:
		return "FAIL"
	case IconPending:
		return "PENDING"
	default:
		return "INFO"
	}
}

// Printer writes styled output for one personality level.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	out   io.Writer
	level PersonalityLevel
}

// NewPrinter creates a Printer for w at the current personality level.
// A nil writer means stdout.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, level: GetPersonality().Level}
}

// WithLevel returns a copy of the printer using level.
func (p *Printer) WithLevel(level PersonalityLevel) *Printer {
	return &Printer{out: p.out, level: level}
}

// Machine reports whether the printer emits machine output.
func (p *Printer) Machine() bool {
	return p.level == PersonalityMachine
}

// Title prints a styled title. Omitted in machine mode.
func (p *Printer) Title(text string) {
	switch p.level {
	case PersonalityMachine:
	case PersonalityMinimal:
		fmt.Fprintln(p.out, text)
	default:
		fmt.Fprintln(p.out, Styles.Title.Render(text))
	}
}

// Success prints a success message.
func (p *Printer) Success(text string) {
	p.message(IconSuccess, text, Styles.Success)
}

// Warning prints a warning message.
func (p *Printer) Warning(text string) {
	p.message(IconWarning, text, Styles.Warning)
}

// Error prints an error message.
func (p *Printer) Error(text string) {
	p.message(IconError, text, Styles.Error)
}

func (p *Printer) message(icon Icon, text string, style lipgloss.Style) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.out, "%s: %s\n", icon.machineTag(), text)
	case PersonalityMinimal:
		fmt.Fprintf(p.out, "%s %s\n", icon, text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", icon.Render(), style.Render(text))
	}
}

// Muted prints secondary text. Omitted in machine mode.
func (p *Printer) Muted(text string) {
	switch p.level {
	case PersonalityMachine:
	case PersonalityMinimal:
		fmt.Fprintln(p.out, text)
	default:
		fmt.Fprintln(p.out, Styles.Muted.Render(text))
	}
}

// StatusLine prints one item with its status.
//
// Description:
//
//	Machine mode prints "TAG\tlabel\tdetail". Other modes print the icon,
//	the label, and the detail in muted text when present.
func (p *Printer) StatusLine(status Icon, label, detail string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.out, "%s\t%s\t%s\n", status.machineTag(), label, detail)
	case PersonalityMinimal:
		if detail != "" {
			fmt.Fprintf(p.out, "%s %s (%s)\n", status, label, detail)
		} else {
			fmt.Fprintf(p.out, "%s %s\n", status, label)
		}
	default:
		if detail != "" {
			fmt.Fprintf(p.out, "%s %s %s\n", status.Render(), label, Styles.Muted.Render("("+detail+")"))
		} else {
			fmt.Fprintf(p.out, "%s %s\n", status.Render(), label)
		}
	}
}

// Detail prints an indented line under a status line. Machine mode
// prefixes it with a tab so it stays attached to the item.
func (p *Printer) Detail(text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.out, "\t%s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.out, "    %s\n", text)
	default:
		fmt.Fprintf(p.out, "    %s %s\n", Styles.Muted.Render(string(IconArrow)), text)
	}
}

// Box prints text in a rounded box. errorStyle selects the error border.
func (p *Printer) Box(title, content string, errorStyle bool) {
	if p.level != PersonalityStandard {
		fmt.Fprintf(p.out, "%s: %s\n", title, content)
		return
	}
	style := Styles.Box
	titleLine := Styles.Title.Render(title)
	if errorStyle {
		style = Styles.ErrorBox
		titleLine = Styles.Error.Bold(true).Render(title)
	}
	fmt.Fprintln(p.out, style.Width(60).Render(titleLine+"\n"+content))
}

// Count is one labelled number in a summary line.
type Count struct {
	Label string
	Value int
	Icon  Icon
}

// Summary prints a one-line summary of counts.
func (p *Printer) Summary(counts ...Count) {
	if p.level == PersonalityMachine {
		parts := make([]string, len(counts))
		for i, c := range counts {
			parts[i] = fmt.Sprintf("%s=%d", strings.ToLower(c.Label), c.Value)
		}
		fmt.Fprintf(p.out, "SUMMARY: %s\n", strings.Join(parts, " "))
		return
	}

	parts := make([]string, len(counts))
	for i, c := range counts {
		value := fmt.Sprintf("%d", c.Value)
		if p.level == PersonalityStandard {
			switch c.Icon {
			case IconSuccess:
				value = Styles.Success.Render(value)
			case IconError:
				value = Styles.Error.Render(value)
			case IconWarning:
				value = Styles.Warning.Render(value)
			default:
				value = Styles.Bold.Render(value)
			}
			parts[i] = value + " " + Styles.Muted.Render(c.Label)
		} else {
			parts[i] = value + " " + c.Label
		}
	}
	fmt.Fprintf(p.out, "\n%s\n", strings.Join(parts, "  "))
}
