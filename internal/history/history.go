package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

// DefaultMaxSteps is the timeline capacity used when none is configured.
const DefaultMaxSteps = 50

// Reasons reported when Undo or Redo has nothing to do.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Entry is the observer-facing view of an Action. Commands are not exposed.
type Entry struct {
	Type        ActionType `json:"type"`
	Description string     `json:"description"`
	Timestamp   time.Time  `json:"timestamp"`
}

// State is a snapshot of the Manager.
type State struct {
	CanUndo       bool    `json:"can_undo"`
	CanRedo       bool    `json:"can_redo"`
	HistoryLength int     `json:"history_length"`
	CurrentIndex  int     `json:"current_index"`
	History       []Entry `json:"history"`
}

// Listener receives a State after every change.
type Listener func(State)

type subscriber struct {
	id int
	fn Listener
}

// Manager is a bounded linear undo/redo timeline.
type Manager struct {
	timeline []Action
	current  int
	maxSteps int

	subscribers []subscriber
	nextSubID   int

	logger *pterm.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSteps sets the timeline capacity. Values below 1 keep the default.
func WithMaxSteps(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSteps = n
		}
	}
}

// WithLogger sets the logger used for warnings and swallowed failures.
func WithLogger(l *pterm.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock sets the time source used to stamp actions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		current:  -1,
		maxSteps: DefaultMaxSteps,
		logger:   &pterm.DefaultLogger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// MaxSteps returns the timeline capacity.
func (m *Manager) MaxSteps() int {
	return m.maxSteps
}

// Push records an action that the caller has already applied. Actions past
// the current index are discarded first. If the timeline exceeds its
// capacity the oldest action is evicted. An action without a command is
// logged and dropped.
func (m *Manager) Push(a Action) {
	if a.Command == nil {
		m.logger.Warn("ignoring action without a command", m.logger.Args("action", describe(a)))
		return
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = m.now()
	}

	m.timeline = append(m.timeline[:m.current+1], a)
	m.current++

	if len(m.timeline) > m.maxSteps {
		m.timeline[0] = Action{}
		m.timeline = m.timeline[1:]
		m.current--
	}

	m.notify()
}

// Execute applies the action's command and records it on success.
func (m *Manager) Execute(a Action) error {
	if a.Command == nil {
		return fmt.Errorf("action %q has no command", a.Description)
	}
	if err := safeCall(a.Command.Apply); err != nil {
		return fmt.Errorf("failed to apply %s: %w", describe(a), err)
	}
	m.Push(a)
	return nil
}

// Undo reverts the action at the current index. It returns false when there
// is nothing to undo or the revert fails; in both cases the index is
// unchanged and no subscriber is notified.
func (m *Manager) Undo() bool {
	if m.current < 0 {
		m.logger.Warn(ErrNothingToUndo.Error())
		return false
	}

	a := m.timeline[m.current]
	if err := safeCall(a.Command.Revert); err != nil {
		m.logger.Error("undo failed", m.logger.Args("action", describe(a), "error", err.Error()))
		return false
	}

	m.current--
	m.notify()
	return true
}

// Redo re-applies the action after the current index. On failure the index
// is restored and false is returned.
func (m *Manager) Redo() bool {
	if m.current >= len(m.timeline)-1 {
		m.logger.Warn(ErrNothingToRedo.Error())
		return false
	}

	m.current++
	a := m.timeline[m.current]
	if err := safeCall(a.Command.Apply); err != nil {
		m.current--
		m.logger.Error("redo failed", m.logger.Args("action", describe(a), "error", err.Error()))
		return false
	}

	m.notify()
	return true
}

// Clear drops the whole timeline.
func (m *Manager) Clear() {
	m.timeline = nil
	m.current = -1
	m.notify()
}

// CanUndo reports whether an action is available to undo.
func (m *Manager) CanUndo() bool {
	return m.current >= 0
}

// CanRedo reports whether an undone action is available to redo.
func (m *Manager) CanRedo() bool {
	return m.current < len(m.timeline)-1
}

// Len returns the number of actions on the timeline.
func (m *Manager) Len() int {
	return len(m.timeline)
}

// CurrentIndex returns the index of the most recently applied action, or -1.
func (m *Manager) CurrentIndex() int {
	return m.current
}

// State returns a snapshot of the timeline without the commands.
func (m *Manager) State() State {
	entries := make([]Entry, len(m.timeline))
	for i, a := range m.timeline {
		entries[i] = Entry{
			Type:        a.Type,
			Description: a.Description,
			Timestamp:   a.Timestamp,
		}
	}
	return State{
		CanUndo:       m.CanUndo(),
		CanRedo:       m.CanRedo(),
		HistoryLength: len(m.timeline),
		CurrentIndex:  m.current,
		History:       entries,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.nextSubID++
	id := m.nextSubID
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})

	return func() {
		for i, s := range m.subscribers {
			if s.id == id {
				m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) notify() {
	if len(m.subscribers) == 0 {
		return
	}
	state := m.State()
	// Copy so a subscriber may unsubscribe while being notified.
	subs := append([]subscriber(nil), m.subscribers...)
	for _, s := range subs {
		m.dispatch(s, state)
	}
}

func (m *Manager) dispatch(s subscriber, state State) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("history listener panicked", m.logger.Args("listener", s.id, "panic", fmt.Sprint(r)))
		}
	}()
	s.fn(state)
}

func describe(a Action) string {
	if a.Description != "" {
		return a.Description
	}
	return string(a.Type)
}
