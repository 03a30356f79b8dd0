package marking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/imark/internal/scheme"
	"github.com/kingrea/imark/internal/tmux"
)

const paneCleanupTimeout = 5 * time.Second

// PaneOpener opens and closes context panes. *tmux.Client satisfies it.
type PaneOpener interface {
	OpenPane(ctx context.Context, spec tmux.PaneSpec) (tmux.PaneID, error)
	ClosePane(ctx context.Context, id tmux.PaneID) error
}

// PaneOptions controls context pane layout.
type PaneOptions struct {
	Split tmux.Split
	Size  int
	// Pager displays context output, e.g. "less -R".
	Pager string
}

// paneLister is implemented by openers that can report which panes still
// exist. *tmux.Client satisfies it.
type paneLister interface {
	ListPanes(ctx context.Context) ([]tmux.PaneID, error)
}

var (
	_ PaneOpener = (*tmux.Client)(nil)
	_ paneLister = (*tmux.Client)(nil)
)

// paneScope is the pane held for one criterion. release is safe to call more
// than once and only ever closes the pane this scope opened. A failed close
// leaves the scope unreleased so it can be retried.
type paneScope struct {
	criterion int
	id        tmux.PaneID
	released  bool
}

func (p *paneScope) release(ctx context.Context, panes PaneOpener) error {
	if p == nil || p.released {
		return nil
	}
	if p.id == "" || panes == nil {
		p.released = true
		return nil
	}
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := panes.ClosePane(cctx, p.id); err != nil {
		return err
	}
	p.released = true
	return nil
}

// cleanupContext must still allow work when the marker's context was cancelled.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), paneCleanupTimeout)
}

// paneGone reports whether id is known to no longer exist, e.g. because the
// marker closed it by hand. Openers that cannot list panes never report gone.
func paneGone(ctx context.Context, panes PaneOpener, id tmux.PaneID) bool {
	lister, ok := panes.(paneLister)
	if !ok {
		return false
	}
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	ids, err := lister.ListPanes(cctx)
	if err != nil {
		return false
	}
	for _, existing := range ids {
		if existing == id {
			return false
		}
	}
	return true
}

// paneSpec builds the command for a criterion's context pane. Notes are
// written as a scratch file under workDir.
func paneSpec(workDir string, idx int, crit scheme.Criterion, opts PaneOptions) (tmux.PaneSpec, error) {
	pager := strings.TrimSpace(opts.Pager)
	if pager == "" {
		pager = "less -R"
	}
	spec := tmux.PaneSpec{Dir: workDir, Split: opts.Split, Size: opts.Size}
	switch {
	case strings.TrimSpace(crit.Context) != "":
		spec.Command = fmt.Sprintf("( %s ) 2>&1 | %s", crit.Context, pager)
	case strings.TrimSpace(crit.Notes) != "":
		if workDir == "" {
			return tmux.PaneSpec{}, fmt.Errorf("marking: no work directory for notes")
		}
		path := filepath.Join(workDir, fmt.Sprintf("criterion-%02d.txt", idx+1))
		body := crit.Prompt + "\n\n" + crit.Notes + "\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			return tmux.PaneSpec{}, fmt.Errorf("marking: write notes: %w", err)
		}
		spec.Command = fmt.Sprintf("%s %s", pager, shellQuote(path))
	default:
		return tmux.PaneSpec{}, fmt.Errorf("marking: criterion %d has no context", idx+1)
	}
	return spec, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
