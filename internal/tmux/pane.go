package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// PaneID is a tmux pane id such as "%7".
type PaneID string

// Split selects how a new pane is laid out next to the origin pane.
type Split string

const (
	// SplitHorizontal places the pane beside the origin pane.
	SplitHorizontal Split = "horizontal"
	// SplitVertical places the pane below the origin pane.
	SplitVertical Split = "vertical"
)

func (s Split) flag() string {
	if s == SplitVertical {
		return "-v"
	}
	return "-h"
}

// PaneSpec describes a context pane to open.
type PaneSpec struct {
	// Dir is the working directory of the pane's command.
	Dir string
	// Command is a shell command line run inside the pane.
	Command string
	Split   Split
	// Size is the pane size as a percentage of the origin pane.
	Size int
}

// PaneError reports a failed pane operation.
type PaneError struct {
	Op   string
	Pane PaneID
	Err  error
}

func (e *PaneError) Error() string {
	if e.Pane != "" {
		return fmt.Sprintf("tmux: %s %s: %v", e.Op, e.Pane, e.Err)
	}
	return fmt.Sprintf("tmux: %s: %v", e.Op, e.Err)
}

func (e *PaneError) Unwrap() error {
	return e.Err
}

// Runner executes a tmux command line and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// Client issues pane commands against one tmux session.
type Client struct {
	session Session
	run     Runner
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithRunner replaces the tmux executor, mainly for tests.
func WithRunner(run Runner) ClientOption {
	return func(c *Client) {
		if run != nil {
			c.run = run
		}
	}
}

// NewClient returns a client bound to session.
func NewClient(session Session, opts ...ClientOption) *Client {
	c := &Client{session: session, run: execRunner}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// OpenPane splits the origin pane and runs spec.Command in the new pane
// without moving focus away from the marker.
func (c *Client) OpenPane(ctx context.Context, spec PaneSpec) (PaneID, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return "", &PaneError{Op: "open pane", Err: errors.New("command is required")}
	}
	args := c.base("split-window", "-d", "-P", "-F", "#{pane_id}", "-t", string(c.session.Pane))
	if spec.Dir != "" {
		args = append(args, "-c", spec.Dir)
	}
	args = append(args, spec.Split.flag())
	if spec.Size > 0 && spec.Size < 100 {
		args = append(args, "-l", fmt.Sprintf("%d%%", spec.Size))
	}
	args = append(args, spec.Command)
	out, err := c.run(ctx, args...)
	if err != nil {
		return "", &PaneError{Op: "open pane", Err: err}
	}
	id := PaneID(strings.TrimSpace(string(out)))
	if !strings.HasPrefix(string(id), "%") {
		return "", &PaneError{Op: "open pane", Err: fmt.Errorf("unexpected pane id %q", id)}
	}
	return id, nil
}

// ClosePane kills a pane.
func (c *Client) ClosePane(ctx context.Context, id PaneID) error {
	if id == "" {
		return &PaneError{Op: "close pane", Err: errors.New("pane id is required")}
	}
	if id == c.session.Pane {
		return &PaneError{Op: "close pane", Pane: id, Err: errors.New("refusing to close the marking pane")}
	}
	if _, err := c.run(ctx, c.base("kill-pane", "-t", string(id))...); err != nil {
		return &PaneError{Op: "close pane", Pane: id, Err: err}
	}
	return nil
}

// ListPanes returns every pane in the session.
func (c *Client) ListPanes(ctx context.Context) ([]PaneID, error) {
	out, err := c.run(ctx, c.base("list-panes", "-s", "-t", c.session.ID, "-F", "#{pane_id}")...)
	if err != nil {
		return nil, &PaneError{Op: "list panes", Err: err}
	}
	var panes []PaneID
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		panes = append(panes, PaneID(line))
	}
	return panes, nil
}

func (c *Client) base(args ...string) []string {
	out := make([]string, 0, len(args)+2)
	if c.session.Socket != "" {
		out = append(out, "-S", c.session.Socket)
	}
	return append(out, args...)
}

func execRunner(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}
