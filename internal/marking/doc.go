// Package marking runs one marking session over a rubric. A Session walks the
// criteria in order, waits for the marker to pick exactly one choice for each,
// and accumulates the score. While a criterion is on screen the session may
// show a tmux context pane next to the marking UI; that pane is always closed
// when the criterion is left, whether by advancing, aborting or failing.
//
// State transitions:
//
//	Presenting(i) -> AwaitingSelection(i)   Present
//	AwaitingSelection(i) -> Advancing       Select (valid index)
//	Advancing -> Presenting(i+1) | Finished
//	Presenting | AwaitingSelection -> Aborted   Abort
package marking
