package marking

import (
	"context"
	"fmt"
	"sync"

	"github.com/kingrea/imark/internal/logging"
	"github.com/kingrea/imark/internal/scheme"
	"github.com/kingrea/imark/internal/tmux"
)

// State is a marking session state.
type State int

const (
	StatePresenting State = iota
	StateAwaitingSelection
	StateAdvancing
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePresenting:
		return "presenting"
	case StateAwaitingSelection:
		return "awaiting selection"
	case StateAdvancing:
		return "advancing"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Context carries the read-only inputs owned by the caller for the lifetime
// of the session.
type Context struct {
	Session tmux.Session
	// WorkDir is a scratch directory exclusive to this process.
	WorkDir string
}

// Selection records the marker's choice for one criterion.
type Selection struct {
	CriterionIndex int
	Criterion      scheme.Criterion
	ChoiceIndex    int
	Choice         scheme.Choice
}

// Result is the frozen outcome of a finished session.
type Result struct {
	Total      scheme.Points
	Max        scheme.Points
	Selections []Selection
}

// Prompt is what the marker sees while a criterion awaits a choice.
type Prompt struct {
	Index     int
	Count     int
	Criterion scheme.Criterion
	Total     scheme.Points
	// Pane is the context pane opened for this criterion, if any.
	Pane tmux.PaneID
	// PaneErr is set when a context pane was wanted but could not be opened.
	PaneErr error
}

// Option customizes a Session.
type Option func(*Session)

// WithPanes enables context panes.
func WithPanes(panes PaneOpener, opts PaneOptions) Option {
	return func(s *Session) {
		s.panes = panes
		s.paneOpts = opts
	}
}

// WithLogger routes session events to l.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Session is the marking state machine. One control loop drives it, but
// every method is safe to call from the loop's command goroutines and from
// shutdown at the same time.
type Session struct {
	scheme   *scheme.Scheme
	ctx      Context
	panes    PaneOpener
	paneOpts PaneOptions
	log      *logging.Logger

	mu         sync.Mutex
	state      State
	cursor     int
	selections []Selection
	total      scheme.Points
	scope      *paneScope
	// held are panes whose close failed; they are retried on every release.
	held   []*paneScope
	prompt Prompt
}

// New starts a session at the first criterion.
func New(s *scheme.Scheme, sc Context, opts ...Option) (*Session, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("marking: scheme has no criteria")
	}
	for i, c := range s.Criteria {
		if len(c.Choices) == 0 {
			return nil, fmt.Errorf("marking: criterion %d (%s) has no choices", i+1, c.Prompt)
		}
	}
	sess := &Session{
		scheme: s,
		ctx:    sc,
		log:    logging.Nop(),
		state:  StatePresenting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sess)
		}
	}
	sess.log.Info().
		Str("tmux_session", sc.Session.ID).
		Int("criteria", s.Len()).
		Msg("marking session started")
	return sess, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns the index of the current criterion.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Total returns the running total.
func (s *Session) Total() scheme.Points {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Len returns the number of criteria.
func (s *Session) Len() int { return s.scheme.Len() }

// Scheme returns the rubric being marked.
func (s *Session) Scheme() *scheme.Scheme { return s.scheme }

// Selections returns a copy of the choices recorded so far.
func (s *Session) Selections() []Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySelections()
}

// OpenPanes returns the context panes the session still holds.
func (s *Session) OpenPanes() []tmux.PaneID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []tmux.PaneID
	for _, scope := range s.held {
		ids = append(ids, scope.id)
	}
	if s.scope != nil && s.scope.id != "" {
		ids = append(ids, s.scope.id)
	}
	return ids
}

// Present shows the current criterion and waits for a selection. A context
// pane is opened when the criterion has context; failing to open it is
// logged and reported in Prompt.PaneErr but does not stop marking.
func (s *Session) Present(ctx context.Context) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateAwaitingSelection:
		return s.prompt, nil
	case StatePresenting:
	default:
		return Prompt{}, &StateError{Op: "present", State: s.state}
	}
	if err := ctx.Err(); err != nil {
		return Prompt{}, err
	}
	crit, _ := s.scheme.Criterion(s.cursor)
	prompt := Prompt{
		Index:     s.cursor,
		Count:     s.scheme.Len(),
		Criterion: crit,
		Total:     s.total,
	}
	s.scope = &paneScope{criterion: s.cursor}
	if s.panes != nil && crit.HasContext() {
		id, err := s.openPane(ctx, crit)
		if err != nil {
			prompt.PaneErr = err
			s.log.Warn().Err(err).Int("criterion", s.cursor+1).Msg("context pane unavailable")
		} else {
			s.scope.id = id
			prompt.Pane = id
			s.log.Debug().Str("pane", string(id)).Int("criterion", s.cursor+1).Msg("context pane opened")
		}
	}
	s.prompt = prompt
	s.state = StateAwaitingSelection
	s.log.Info().Int("criterion", s.cursor+1).Str("prompt", crit.Prompt).Msg("criterion presented")
	return prompt, nil
}

func (s *Session) openPane(ctx context.Context, crit scheme.Criterion) (tmux.PaneID, error) {
	spec, err := paneSpec(s.ctx.WorkDir, s.cursor, crit, s.paneOpts)
	if err != nil {
		return "", err
	}
	return s.panes.OpenPane(ctx, spec)
}

// Select commits choice index (0-based) for the current criterion. An index
// out of range returns a *SelectionError and changes nothing.
func (s *Session) Select(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingSelection {
		return &StateError{Op: "select", State: s.state}
	}
	crit, _ := s.scheme.Criterion(s.cursor)
	if index < 0 || index >= len(crit.Choices) {
		err := &SelectionError{Criterion: crit.Prompt, Index: index, Choices: len(crit.Choices)}
		s.log.Debug().Int("criterion", s.cursor+1).Int("index", index).Msg("selection rejected")
		return err
	}
	choice := crit.Choices[index]

	s.state = StateAdvancing
	s.releasePanes(ctx)
	s.selections = append(s.selections, Selection{
		CriterionIndex: s.cursor,
		Criterion:      crit,
		ChoiceIndex:    index,
		Choice:         choice,
	})
	s.total += choice.Points
	s.log.Info().
		Int("criterion", s.cursor+1).
		Str("choice", choice.Label).
		Str("points", choice.Points.String()).
		Str("total", s.total.String()).
		Msg("choice selected")

	s.cursor++
	s.prompt = Prompt{}
	if s.cursor < s.scheme.Len() {
		s.state = StatePresenting
		return nil
	}
	s.state = StateFinished
	s.log.Info().Str("total", s.total.String()).Int("selections", len(s.selections)).Msg("marking finished")
	return nil
}

// Abort cancels the session, closing any pane it opened. It returns
// ErrAborted; the partial total is discarded.
func (s *Session) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abort(ctx)
}

func (s *Session) abort(ctx context.Context) error {
	switch s.state {
	case StateAborted:
		return ErrAborted
	case StatePresenting, StateAwaitingSelection:
	default:
		return &StateError{Op: "abort", State: s.state}
	}
	s.releasePanes(ctx)
	s.state = StateAborted
	s.prompt = Prompt{}
	s.log.Info().Int("criterion", s.cursor+1).Msg("marking aborted")
	return ErrAborted
}

// Close releases every pane the session still holds, retrying panes whose
// earlier close failed. A session that has not finished is aborted. It is
// safe to call on every exit path and returns the last close failure.
func (s *Session) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePresenting || s.state == StateAwaitingSelection {
		_ = s.abort(ctx)
	}
	return s.releasePanes(ctx)
}

// Result returns the final score once every criterion has a selection.
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateFinished:
		return Result{
			Total:      s.total,
			Max:        s.scheme.MaxTotal(),
			Selections: s.copySelections(),
		}, nil
	case StateAborted:
		return Result{}, ErrAborted
	default:
		return Result{}, ErrNotFinished
	}
}

func (s *Session) copySelections() []Selection {
	out := make([]Selection, len(s.selections))
	copy(out, s.selections)
	return out
}

// releasePanes closes the current criterion's pane and any pane still held
// from an earlier failed close. Panes that fail to close stay held.
func (s *Session) releasePanes(ctx context.Context) error {
	if s.scope != nil {
		if s.scope.id != "" {
			s.held = append(s.held, s.scope)
		}
		s.scope = nil
	}
	var lastErr error
	remaining := s.held[:0]
	for _, scope := range s.held {
		err := scope.release(ctx, s.panes)
		if err == nil {
			s.log.Debug().Str("pane", string(scope.id)).Int("criterion", scope.criterion+1).Msg("context pane closed")
			continue
		}
		if paneGone(ctx, s.panes, scope.id) {
			scope.released = true
			s.log.Debug().Str("pane", string(scope.id)).Msg("context pane already gone")
			continue
		}
		s.log.Warn().Err(err).Str("pane", string(scope.id)).Int("criterion", scope.criterion+1).Msg("close context pane")
		remaining = append(remaining, scope)
		lastErr = err
	}
	s.held = remaining
	return lastErr
}
