package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/tinytelemetry/pulse/internal/model"
)

// MaxBodyBytes caps the decoded size of one report.
const MaxBodyBytes = 1 << 20

// Decoder parses and validates snapshot bodies. It is safe for concurrent
// use.
type Decoder struct {
	validate *validator.Validate
	maxBytes int64
}

// NewDecoder returns a Decoder with the default body limit.
func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New(), maxBytes: MaxBodyBytes}
}

// Decode reads one JSON snapshot from body, decompressing it first when
// contentEncoding is gzip. Every failure is a *ValidationError.
func (d *Decoder) Decode(body io.Reader, contentEncoding string) (*model.Snapshot, error) {
	if strings.EqualFold(strings.TrimSpace(contentEncoding), "gzip") {
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, &ValidationError{Reason: "gzip header", Err: err}
		}
		defer zr.Close()
		body = zr
	}

	data, err := io.ReadAll(io.LimitReader(body, d.maxBytes+1))
	if err != nil {
		return nil, &ValidationError{Reason: "read body", Err: err}
	}
	if int64(len(data)) > d.maxBytes {
		return nil, &ValidationError{Reason: fmt.Sprintf("body exceeds %d bytes", d.maxBytes)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ValidationError{Reason: "empty body"}
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &ValidationError{Reason: "malformed json", Err: err}
	}
	if err := d.validate.Struct(&snap); err != nil {
		return nil, &ValidationError{Reason: "field constraints", Err: err}
	}
	return &snap, nil
}
