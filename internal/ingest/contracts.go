// Package ingest turns raw snapshot reports into validated, located
// snapshots and hands them to storage.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/tinytelemetry/pulse/internal/model"
)

// ErrThrottled is returned when a client reports again inside the
// throttle window.
var ErrThrottled = errors.New("ingest: throttled")

// ValidationError reports a body that could not be decoded or failed
// validation.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "invalid snapshot: " + e.Reason
	}
	return fmt.Sprintf("invalid snapshot: %s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Geolocator resolves a client address to a country name. Implementations
// return model.UnknownLocation when the address cannot be resolved.
type Geolocator interface {
	Country(ctx context.Context, ip string) string
}

// FixedLocation is a Geolocator that always answers with itself. It stands
// in when lookups are disabled.
type FixedLocation string

func (f FixedLocation) Country(context.Context, string) string { return string(f) }

// Request is one raw report with its transport metadata.
type Request = model.IngestEnvelope
