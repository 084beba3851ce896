package model

import "time"

// IngestEnvelope carries one raw snapshot report with transport metadata.
// It is the contract between the HTTP surface and the ingest pipeline.
type IngestEnvelope struct {
	Body            []byte
	ContentEncoding string
	ClientIP        string
	ReceivedAt      time.Time
}
