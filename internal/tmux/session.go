// Package tmux discovers the tmux session imark was started from and manages
// the context panes it opens next to the marking UI.
package tmux

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ErrNoActiveSession means the process is not running inside tmux.
var ErrNoActiveSession = errors.New("tmux: no active session; start imark from inside tmux")

// Env is the slice of the process environment tmux exports to its panes.
type Env struct {
	// TMUX is "<socket path>,<server pid>,<session index>".
	TMUX string `env:"TMUX"`
	// Pane is the pane id of the calling process, e.g. "%3".
	Pane string `env:"TMUX_PANE"`
}

// Session identifies the tmux session and pane that own the marking UI.
type Session struct {
	// ID is the session id in tmux target syntax, e.g. "$2".
	ID     string
	Socket string
	Pane   PaneID
}

// CurrentSession reads the ambient tmux session from the environment. It does
// not start any tmux process.
func CurrentSession() (Session, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Session{}, fmt.Errorf("tmux: parse env: %w", err)
	}
	return SessionFromEnv(e)
}

// SessionFromEnv decodes a Session from already-read environment values.
func SessionFromEnv(e Env) (Session, error) {
	raw := strings.TrimSpace(e.TMUX)
	if raw == "" {
		return Session{}, ErrNoActiveSession
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return Session{}, fmt.Errorf("%w: unexpected TMUX value %q", ErrNoActiveSession, raw)
	}
	socket := strings.TrimSpace(parts[0])
	index := strings.TrimSpace(parts[2])
	if socket == "" {
		return Session{}, fmt.Errorf("%w: TMUX value %q has no socket", ErrNoActiveSession, raw)
	}
	if _, err := strconv.Atoi(index); err != nil {
		return Session{}, fmt.Errorf("%w: TMUX value %q has no session index", ErrNoActiveSession, raw)
	}
	pane := strings.TrimSpace(e.Pane)
	if !strings.HasPrefix(pane, "%") {
		return Session{}, fmt.Errorf("%w: TMUX_PANE is %q", ErrNoActiveSession, e.Pane)
	}
	return Session{
		ID:     "$" + index,
		Socket: socket,
		Pane:   PaneID(pane),
	}, nil
}

func (s Session) String() string {
	return fmt.Sprintf("%s (pane %s)", s.ID, s.Pane)
}
