package pipeline

import (
	"errors"
	"fmt"
)

// ErrToolLoopExceeded is returned when the model keeps requesting capability
// calls past the configured iteration cap.
var ErrToolLoopExceeded = errors.New("tool invocation limit exceeded")

// UpstreamError reports a generation failure at a pipeline stage. No partial
// artifact is returned alongside it.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
