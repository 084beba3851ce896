package draw

import "fmt"

// Encoder serialises a command list for a canvas of the given size.
// Identical input must produce identical output.
type Encoder interface {
	Encode(cmds []Command, width, height int) ([]byte, error)
}

// RenderError reports a failure while serialising drawing commands.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
