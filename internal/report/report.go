// Package report turns a finished marking session into the record handed to
// the submission step: the total plus the ordered selection trail.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/imark/internal/marking"
	"github.com/kingrea/imark/internal/scheme"
)

// Meta identifies what was marked.
type Meta struct {
	Scheme   string `yaml:"scheme"`
	Course   string `yaml:"course"`
	Session  string `yaml:"session"`
	Endpoint string `yaml:"endpoint"`
}

// Entry is one line of the selection trail.
type Entry struct {
	Criterion string        `yaml:"criterion"`
	Choice    string        `yaml:"choice"`
	Points    scheme.Points `yaml:"points"`
}

// Report is the serialized outcome of a marking session.
type Report struct {
	RunID       string        `yaml:"run_id"`
	CompletedAt time.Time     `yaml:"completed_at"`
	Meta        Meta          `yaml:",inline"`
	Total       scheme.Points `yaml:"total"`
	Max         scheme.Points `yaml:"max"`
	Selections  []Entry       `yaml:"selections"`
}

// New builds a report for res, stamped with a fresh run id.
func New(meta Meta, res marking.Result) Report {
	r := Report{
		RunID:       uuid.NewString(),
		CompletedAt: time.Now().UTC().Truncate(time.Second),
		Meta:        meta,
		Total:       res.Total,
		Max:         res.Max,
		Selections:  make([]Entry, 0, len(res.Selections)),
	}
	for _, sel := range res.Selections {
		r.Selections = append(r.Selections, Entry{
			Criterion: sel.Criterion.Prompt,
			Choice:    sel.Choice.Label,
			Points:    sel.Choice.Points,
		})
	}
	return r
}

// WriteYAML encodes the report to w.
func (r Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the report to path, creating parent directories.
func (r Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: ensure dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	return nil
}

var (
	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	summaryTotal = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	summaryMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// Summary renders a short human readable summary.
func (r Report) Summary() string {
	var b strings.Builder
	title := "Marking complete"
	if r.Meta.Course != "" {
		title = fmt.Sprintf("%s · %s %s", title, r.Meta.Course, r.Meta.Session)
	}
	b.WriteString(summaryTitle.Render(title))
	b.WriteString("\n")
	width := 0
	for _, e := range r.Selections {
		if len(e.Criterion) > width {
			width = len(e.Criterion)
		}
	}
	for _, e := range r.Selections {
		fmt.Fprintf(&b, "  %-*s  %s (%s)\n", width, e.Criterion, e.Choice, e.Points)
	}
	b.WriteString(summaryTotal.Render(fmt.Sprintf("Total: %s / %s", r.Total, r.Max)))
	b.WriteString("\n")
	if r.Meta.Endpoint != "" {
		b.WriteString(summaryMuted.Render("Endpoint: " + r.Meta.Endpoint))
		b.WriteString("\n")
	}
	b.WriteString(summaryMuted.Render("Run: " + r.RunID))
	b.WriteString("\n")
	return b.String()
}
