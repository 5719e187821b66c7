package history

import (
	"fmt"
	"time"
)

// Command is a reversible edit.
type Command interface {
	// Apply performs (or re-performs) the edit.
	Apply() error

	// Revert undoes the edit.
	Revert() error
}

// ActionType tags the kind of edit an Action records.
type ActionType string

const (
	ActionDelete          ActionType = "delete"
	ActionHide            ActionType = "hide"
	ActionDuplicate       ActionType = "duplicate"
	ActionStyleChange     ActionType = "style-change"
	ActionTextEdit        ActionType = "text-edit"
	ActionAttributeChange ActionType = "attribute-change"
	ActionCompound        ActionType = "compound"
)

// Action is a single entry of the timeline.
type Action struct {
	Type        ActionType
	Description string
	Timestamp   time.Time
	Command     Command
}

// Funcs adapts a pair of functions to the Command interface.
type Funcs struct {
	ApplyFunc  func() error
	RevertFunc func() error
}

// Apply calls ApplyFunc if set.
func (f Funcs) Apply() error {
	if f.ApplyFunc == nil {
		return nil
	}
	return f.ApplyFunc()
}

// Revert calls RevertFunc if set.
func (f Funcs) Revert() error {
	if f.RevertFunc == nil {
		return nil
	}
	return f.RevertFunc()
}

// CompoundCommand groups several commands into one undo unit.
type CompoundCommand struct {
	Commands []Command
}

// Apply runs all commands in order. If one fails, the ones already applied
// are reverted.
func (c *CompoundCommand) Apply() error {
	for i, cmd := range c.Commands {
		if err := cmd.Apply(); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = c.Commands[j].Revert()
			}
			return fmt.Errorf("compound step %d: %w", i, err)
		}
	}
	return nil
}

// Revert reverts all commands in reverse order.
func (c *CompoundCommand) Revert() error {
	for i := len(c.Commands) - 1; i >= 0; i-- {
		if err := c.Commands[i].Revert(); err != nil {
			return fmt.Errorf("revert compound step %d: %w", i, err)
		}
	}
	return nil
}

// Compound builds a single Action out of several. The sub-actions must not
// have been applied yet if the result is passed to Execute. Sub-actions
// without a command are skipped.
func Compound(description string, actions ...Action) Action {
	cmds := make([]Command, 0, len(actions))
	for _, a := range actions {
		if a.Command != nil {
			cmds = append(cmds, a.Command)
		}
	}
	return Action{
		Type:        ActionCompound,
		Description: description,
		Command:     &CompoundCommand{Commands: cmds},
	}
}

// safeCall runs fn and converts a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
