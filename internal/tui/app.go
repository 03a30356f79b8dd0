// internal/tui/app.go
//
// The marking UI. Like every bubbletea program it follows The Elm Architecture:
//
// 1. Model: the marking session plus what is on screen
// 2. Update: key presses and engine results become state changes
// 3. View: the current criterion rendered to a string
//
// Calls into the marking session may shell out to tmux, so they run as
// commands and report back with a message. Keys are ignored while one is in
// flight, except abort, which waits for it to land.

package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/imark/internal/logging"
	"github.com/kingrea/imark/internal/marking"
)

type presentedMsg struct {
	prompt marking.Prompt
	err    error
}

type selectedMsg struct {
	index int
	err   error
}

type abortedMsg struct {
	cause error
}

// Option customizes the Model.
type Option func(*Model)

// WithTitle sets the heading shown above the rubric.
func WithTitle(title string) Option {
	return func(m *Model) {
		m.title = title
	}
}

// WithLogger routes UI events to l.
func WithLogger(l *logging.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// Model drives a marking.Session from the keyboard.
type Model struct {
	ctx     context.Context
	session *marking.Session
	log     *logging.Logger
	keys    keyMap
	help    help.Model
	title   string

	prompt       marking.Prompt
	presented    bool
	highlight    int
	busy         bool
	abortPending bool

	status    string
	statusErr bool

	width  int
	height int

	done    bool
	outcome error
	result  marking.Result
}

// New returns a model for session. ctx bounds every engine call.
func New(ctx context.Context, session *marking.Session, opts ...Option) *Model {
	m := &Model{
		ctx:     ctx,
		session: session,
		log:     logging.Nop(),
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Outcome returns the final result, marking.ErrAborted if the marker
// cancelled, or the error that stopped the session.
func (m *Model) Outcome() (marking.Result, error) {
	if !m.done {
		return marking.Result{}, marking.ErrNotFinished
	}
	if m.outcome != nil {
		return marking.Result{}, m.outcome
	}
	return m.result, nil
}

// Init presents the first criterion.
func (m *Model) Init() tea.Cmd {
	return m.present()
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case presentedMsg:
		m.busy = false
		if msg.err != nil {
			return m, m.abort(fmt.Errorf("present criterion: %w", msg.err))
		}
		if m.abortPending {
			return m, m.abort(marking.ErrAborted)
		}
		m.prompt = msg.prompt
		m.presented = true
		m.highlight = 0
		m.setStatus("", false)
		if msg.prompt.PaneErr != nil {
			m.setStatus(fmt.Sprintf("Context pane unavailable: %v", msg.prompt.PaneErr), true)
		}
		return m, nil

	case selectedMsg:
		return m.handleSelected(msg)

	case abortedMsg:
		m.busy = false
		m.done = true
		m.outcome = msg.cause
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	if key.Matches(msg, m.keys.Abort) {
		if m.busy {
			m.abortPending = true
			m.setStatus("Aborting...", false)
			return m, nil
		}
		return m, m.abort(marking.ErrAborted)
	}
	if m.busy || !m.presented {
		return m, nil
	}
	choices := len(m.prompt.Criterion.Choices)
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.highlight > 0 {
			m.highlight--
		}
	case key.Matches(msg, m.keys.Down):
		if m.highlight < choices-1 {
			m.highlight++
		}
	case key.Matches(msg, m.keys.Choose):
		return m, m.choose(m.highlight)
	case key.Matches(msg, m.keys.Pick):
		n := int(msg.Runes[0] - '0')
		return m, m.choose(n - 1)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) handleSelected(msg selectedMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		if errors.Is(msg.err, marking.ErrInvalidSelection) {
			if m.abortPending {
				return m, m.abort(marking.ErrAborted)
			}
			m.log.Debug().Int("index", msg.index).Msg("invalid selection")
			m.setStatus(fmt.Sprintf("No choice %d, pick 1-%d", msg.index+1, len(m.prompt.Criterion.Choices)), true)
			return m, nil
		}
		return m, m.abort(fmt.Errorf("select choice: %w", msg.err))
	}
	m.presented = false
	if m.session.State() == marking.StateFinished {
		res, err := m.session.Result()
		m.done = true
		m.outcome = err
		m.result = res
		return m, tea.Quit
	}
	if m.abortPending {
		return m, m.abort(marking.ErrAborted)
	}
	return m, m.present()
}

func (m *Model) present() tea.Cmd {
	m.busy = true
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		prompt, err := session.Present(ctx)
		return presentedMsg{prompt: prompt, err: err}
	}
}

func (m *Model) choose(index int) tea.Cmd {
	m.busy = true
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return selectedMsg{index: index, err: session.Select(ctx, index)}
	}
}

// abort closes the session's panes and then quits with cause as the outcome.
func (m *Model) abort(cause error) tea.Cmd {
	m.busy = true
	m.abortPending = false
	if !errors.Is(cause, marking.ErrAborted) {
		m.log.Error().Err(cause).Msg("marking stopped")
	}
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		_ = session.Close(ctx)
		return abortedMsg{cause: cause}
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}
