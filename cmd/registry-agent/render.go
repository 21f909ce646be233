package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tailored-agentic-units/registry-agent/admission"
	"github.com/tailored-agentic-units/registry-agent/compress"
	"github.com/tailored-agentic-units/registry-agent/kernel"
	"github.com/tailored-agentic-units/registry-agent/normalize"
	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/window"
)

const resultPreview = 200

var styles = struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	box     lipgloss.Style
}{
	title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	label:   lipgloss.NewStyle().Bold(true).Width(14),
	muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
}

var titleCase = cases.Title(language.English)

// label turns a snake_case field name into a display label.
func label(field string) string {
	return titleCase.String(strings.ReplaceAll(field, "_", " "))
}

func row(field, value string) string {
	if value == "" {
		return ""
	}
	return styles.label.Render(label(field)) + value + "\n"
}

func renderResult(r *kernel.Result) string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Research") + "\n")
	b.WriteString(row("session", r.SessionID))
	b.WriteString(row("steps", fmt.Sprint(r.Steps)))
	if len(r.Dropped) > 0 {
		b.WriteString(row("dropped_calls", fmt.Sprint(len(r.Dropped))))
	}

	if len(r.ToolCalls) > 0 {
		b.WriteString("\n" + styles.title.Render("Tool Calls") + "\n")
		for i, tc := range r.ToolCalls {
			fmt.Fprintf(&b, "  [%d] %s(%s) %s\n", i+1, tc.Name, tc.Arguments, styles.muted.Render(tc.Duration.Round(1e6).String()))
			preview := tc.Result
			if len(preview) > resultPreview {
				preview = preview[:resultPreview] + "..."
			}
			if tc.IsError {
				b.WriteString("      " + styles.failure.Render(preview) + "\n")
			} else {
				b.WriteString("      " + styles.muted.Render("-> "+preview) + "\n")
			}
		}
	}

	if r.Response != "" {
		b.WriteString("\n" + styles.box.Render(r.Response) + "\n")
	}
	return b.String()
}

func renderRecord(s *kernel.Synthesis) string {
	rec := s.Record
	var b strings.Builder

	b.WriteString("\n" + styles.title.Render("Manufacturer") + "\n")
	b.WriteString(row("name", rec.Manufacturer.Name))
	b.WriteString(row("country", rec.Manufacturer.Country))
	if rec.Manufacturer.FoundedYear > 0 {
		b.WriteString(row("founded_year", fmt.Sprint(rec.Manufacturer.FoundedYear)))
	}
	b.WriteString(row("website", rec.Manufacturer.Website))
	b.WriteString(row("notes", rec.Manufacturer.Notes))

	b.WriteString("\n" + styles.title.Render("Model") + "\n")
	for _, f := range [][2]string{
		{"name", rec.Model.Name},
		{"year", rec.Model.Year},
		{"body_wood", rec.Model.BodyWood},
		{"neck_wood", rec.Model.NeckWood},
		{"fretboard", rec.Model.Fretboard},
		{"pickups", rec.Model.Pickups},
		{"scale_length", rec.Model.ScaleLength},
		{"finish", rec.Model.Finish},
		{"msrp", rec.Model.MSRP},
	} {
		b.WriteString(row(f[0], f[1]))
	}

	if item := rec.Item; item.SerialNumber != "" || item.Condition != "" || item.Price != "" || item.Notes != "" {
		b.WriteString("\n" + styles.title.Render("Item") + "\n")
		b.WriteString(row("serial_number", item.SerialNumber))
		b.WriteString(row("condition", item.Condition))
		b.WriteString(row("price", item.Price))
		b.WriteString(row("notes", item.Notes))
	}

	if len(rec.Sources) > 0 {
		b.WriteString("\n" + styles.title.Render("Sources") + "\n")
		for _, src := range rec.Sources {
			b.WriteString("  " + src.URL + "\n")
			for _, claim := range src.Claims {
				b.WriteString("    " + styles.muted.Render("- "+claim) + "\n")
			}
		}
	}

	if ev := s.Evaluation; ev != nil {
		status := styles.success.Render("criteria met")
		if !ev.SuccessCriteriaMet {
			status = styles.failure.Render("criteria not met")
		}
		b.WriteString("\n" + styles.title.Render("Evaluation") + " " + status + "\n")
		b.WriteString(row("feedback", ev.Feedback))
		if ev.UserInputNeeded {
			b.WriteString(styles.muted.Render("more input from you would help") + "\n")
		}
	}
	return b.String()
}

func renderMatch(m normalize.Match) string {
	var b strings.Builder
	if m.Matched {
		b.WriteString(styles.success.Render(m.Name) + styles.muted.Render(fmt.Sprintf(" (score %d)", m.Score)) + "\n")
	} else {
		b.WriteString(m.Name + styles.muted.Render(fmt.Sprintf(" (no match, best score %d)", m.Score)) + "\n")
	}
	if m.Record != nil {
		b.WriteString(row("country", m.Record.Country))
		if m.Record.FoundedYear > 0 {
			b.WriteString(row("founded_year", fmt.Sprint(m.Record.FoundedYear)))
		}
		b.WriteString(row("website", m.Record.Website))
	}
	return b.String()
}

func renderMatches(query string, matches []normalize.Match) string {
	if len(matches) == 0 {
		return styles.muted.Render(fmt.Sprintf("no manufacturers match %q", query)) + "\n"
	}

	var b strings.Builder
	for _, m := range matches {
		country := ""
		if m.Record != nil {
			country = m.Record.Country
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			styles.label.Render(m.Name),
			styles.muted.Render(fmt.Sprintf("%3d", m.Score)),
			country)
	}
	return b.String()
}

// renderSummary counts selected runtime events recorded during the run.
// Nothing is printed for a run without any of them.
func renderSummary(rec *observability.Recorder) string {
	counts := []struct {
		field string
		typ   observability.EventType
	}{
		{"calls_dropped", admission.EventDropped},
		{"names_unmatched", normalize.EventFallback},
		{"summary_fallbacks", compress.EventFallback},
		{"window_fits", window.EventFit},
	}

	var b strings.Builder
	for _, c := range counts {
		if n := len(rec.OfType(c.typ)); n > 0 {
			b.WriteString(row(c.field, fmt.Sprint(n)))
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "\n" + styles.muted.Render("Runtime") + "\n" + b.String()
}
