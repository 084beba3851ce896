package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/report"
)

const svgContentType = "image/svg+xml"

func (s *Server) handleIngest(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, ingest.MaxBodyBytes+1))
	if err != nil {
		c.String(http.StatusBadRequest, "unreadable body")
		return
	}

	err = s.ingester.Accept(c.Request.Context(), ingest.Request{
		Body:            body,
		ContentEncoding: c.GetHeader("Content-Encoding"),
		ClientIP:        ingest.ClientIP(c.GetHeader, c.Request.RemoteAddr),
		ReceivedAt:      s.now(),
	})

	var verr *ingest.ValidationError
	switch {
	case err == nil:
		c.String(http.StatusOK, "Saved")
	case errors.Is(err, ingest.ErrThrottled):
		c.String(http.StatusTooManyRequests, "Too many reports, try again later")
	case errors.As(err, &verr):
		c.String(http.StatusBadRequest, verr.Reason)
	default:
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "failed to save report")
	}
}

func (s *Server) handleMainChart(c *gin.Context) {
	s.serveChart(c, report.Main)
}

func (s *Server) handleChart(c *gin.Context) {
	s.serveChart(c, c.Param("name"))
}

func (s *Server) serveChart(c *gin.Context, name string) {
	// Unknown names never reach the cache.
	if _, err := report.Lookup(name); err != nil {
		c.String(http.StatusNotFound, "unknown chart %q", name)
		return
	}

	render := func(ctx context.Context) ([]byte, error) { return s.reports.Render(ctx, name) }
	var (
		out []byte
		err error
	)
	if s.cache != nil {
		out, err = s.cache.Get(c.Request.Context(), name, render)
	} else {
		out, err = render(c.Request.Context())
	}

	switch {
	case err == nil:
	case errors.Is(err, report.ErrUnknownReport):
		c.String(http.StatusNotFound, "unknown chart %q", name)
		return
	default:
		_ = c.Error(err)
		s.log.Error().Err(err).Str("report", name).Msg("chart render failed")
		c.String(http.StatusInternalServerError, "failed to render chart")
		return
	}

	c.Header("Cache-Control", "public, max-age="+strconv.Itoa(secondsToNextHour(s.now())))
	c.Data(http.StatusOK, svgContentType, out)
}

// secondsToNextHour is how long a chart rendered at now stays current.
func secondsToNextHour(now time.Time) int {
	now = now.UTC()
	next := now.Truncate(time.Hour).Add(time.Hour)
	return int(next.Sub(now).Seconds())
}
