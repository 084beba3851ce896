package ingest

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

// Pipeline accepts raw reports: throttle, decode, locate, stamp, store.
type Pipeline struct {
	decoder  *Decoder
	throttle *Throttle
	geo      Geolocator
	sink     model.SnapshotSink
	log      zerolog.Logger

	newID func() string
	now   func() time.Time
}

// NewPipeline wires a pipeline. A nil throttle admits everything and a nil
// geolocator records every snapshot as model.UnknownLocation.
func NewPipeline(sink model.SnapshotSink, throttle *Throttle, geo Geolocator) *Pipeline {
	if geo == nil {
		geo = FixedLocation(model.UnknownLocation)
	}
	return &Pipeline{
		decoder:  NewDecoder(),
		throttle: throttle,
		geo:      geo,
		sink:     sink,
		log:      logging.Component("ingest"),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Accept processes one report. It returns ErrThrottled or a
// *ValidationError when the report is rejected.
func (p *Pipeline) Accept(ctx context.Context, req Request) error {
	received := req.ReceivedAt
	if received.IsZero() {
		received = p.now()
	}

	if p.throttle != nil && !p.throttle.Allowed(req.ClientIP, received) {
		return p.throttled(req.ClientIP)
	}

	snap, err := p.decoder.Decode(bytes.NewReader(req.Body), req.ContentEncoding)
	if err != nil {
		metrics.IngestRequests.WithLabelValues("invalid").Inc()
		var verr *ValidationError
		if errors.As(err, &verr) {
			p.log.Debug().Str("ip", req.ClientIP).Str("reason", verr.Reason).Msg("report rejected")
		}
		return err
	}

	// Only accepted reports start a client's window; a concurrent report
	// from the same address may have been admitted since the first check.
	if p.throttle != nil && !p.throttle.Admit(req.ClientIP, received) {
		return p.throttled(req.ClientIP)
	}

	snap.Location = p.geo.Country(ctx, req.ClientIP)
	snap.ID = p.newID()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = received
	}
	snap.CreatedAt = snap.CreatedAt.UTC()

	if p.sink != nil {
		p.sink.Add(snap)
	}
	metrics.IngestRequests.WithLabelValues("accepted").Inc()
	return nil
}

func (p *Pipeline) throttled(ip string) error {
	metrics.IngestRequests.WithLabelValues("throttled").Inc()
	p.log.Debug().Str("ip", ip).Msg("report throttled")
	return ErrThrottled
}
