package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMedia is returned when the model finished without usable media.
	ErrNoMedia = errors.New("model produced no media")
	// ErrOperationFailed is returned when a long-running job reports an error.
	ErrOperationFailed = errors.New("model operation failed")
	// ErrToolLoopExhausted is returned when the model keeps calling tools past the turn cap.
	ErrToolLoopExhausted = errors.New("tool call loop exceeded turn limit")
	// ErrPollTimeout is returned when a long-running job outlives the configured max wait.
	ErrPollTimeout = errors.New("model operation did not finish in time")
)

// ToolError reports a failed tool call requested by the model.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
