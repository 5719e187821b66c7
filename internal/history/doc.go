// Package history provides a bounded undo/redo timeline for reversible edits.
//
// Edits are recorded as Actions. Each Action carries a Command that knows how
// to apply and revert one edit, plus a type tag and a description for display:
//
//	m := history.New(history.WithMaxSteps(50))
//
//	// Apply an edit and record it
//	m.Execute(domedit.Hide(node))
//
//	// Undo/redo
//	m.Undo()
//	m.Redo()
//
// # Timeline
//
// The Manager keeps a single linear timeline and an index pointing at the
// most recently applied action (-1 when nothing is applied). Recording a new
// action after undoing discards everything past the index. When the timeline
// grows past its capacity the oldest action is evicted and the index shifts
// with it, so it keeps pointing at the same logical action.
//
// # Failures
//
// Undo and Redo report failure as false and never panic. A Command that
// returns an error (or panics) leaves the index where it was before the call.
//
// # Observers
//
// Subscribers receive a State snapshot after every successful Push, Undo,
// Redo and Clear, in registration order. A panicking subscriber is logged
// and skipped.
//
// A Manager is not safe for concurrent use.
package history
