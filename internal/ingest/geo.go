package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

// DefaultIPAPIBaseURL is the free ip-api.com endpoint.
const DefaultIPAPIBaseURL = "http://ip-api.com"

const breakerName = "ip-api"

// IPAPIConfig configures an IPAPI geolocator. Zero fields take defaults.
type IPAPIConfig struct {
	BaseURL string
	// RatePerMinute is the request budget; the free tier allows 45.
	RatePerMinute int
	Timeout       time.Duration
	CacheSize     int
	CacheTTL      time.Duration
}

// IPAPI resolves countries through ip-api.com. Lookups are cached,
// rate-limited and guarded by a circuit breaker; any failure resolves to
// model.UnknownLocation.
type IPAPI struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[string]
	cache   *expirable.LRU[string, string]
}

type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
}

// NewIPAPI returns a geolocator for cfg.
func NewIPAPI(cfg IPAPIConfig) *IPAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultIPAPIBaseURL
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 45
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("component", "geo").
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &IPAPI{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute),
		cb:      cb,
		cache:   expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Country returns the country for ip, or model.UnknownLocation.
func (g *IPAPI) Country(ctx context.Context, ip string) string {
	if !IsPublicIP(ip) {
		metrics.GeolocationRequests.WithLabelValues("skipped").Inc()
		return model.UnknownLocation
	}
	if c, ok := g.cache.Get(ip); ok {
		metrics.GeolocationRequests.WithLabelValues("cached").Inc()
		return c
	}
	if !g.limiter.Allow() {
		metrics.GeolocationRequests.WithLabelValues("limited").Inc()
		return model.UnknownLocation
	}

	country, err := g.cb.Execute(func() (string, error) {
		return g.lookup(ctx, ip)
	})
	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.GeolocationRequests.WithLabelValues(result).Inc()
		logging.Debug().Str("component", "geo").Str("ip", ip).Err(err).Msg("country lookup failed")
		return model.UnknownLocation
	}

	metrics.GeolocationRequests.WithLabelValues("success").Inc()
	g.cache.Add(ip, country)
	return country
}

func (g *IPAPI) lookup(ctx context.Context, ip string) (string, error) {
	u := fmt.Sprintf("%s/json/%s?fields=status,message,country", g.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("query ip-api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip-api returned status %d", resp.StatusCode)
	}

	var result ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ip-api response: %w", err)
	}
	if result.Status != "success" {
		return "", fmt.Errorf("ip-api lookup failed: %s", result.Message)
	}
	if result.Country == "" {
		return model.UnknownLocation, nil
	}
	return result.Country, nil
}

// IsPublicIP reports whether ip parses and is globally routable.
func IsPublicIP(ip string) bool {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return false
	}
	return !(addr.IsUnspecified() || addr.IsLoopback() || addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast())
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
