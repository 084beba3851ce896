package aggregate

import "fmt"

// InputError reports a category key that a sort order could not interpret,
// such as a non-numeric key under numeric ordering. Ingest validation is
// expected to keep such keys out.
type InputError struct {
	Key string
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("aggregate: invalid key %q: %v", e.Key, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }
