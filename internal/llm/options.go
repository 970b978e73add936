package llm

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned when a provider has no base URL configured.
var ErrNotConfigured = errors.New("provider not configured")

const (
	defaultRateLimit = 10 // requests per second
	defaultBurst     = 5
	defaultTimeout   = 30 * time.Second
)

type clientOptions struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a provider client.
type Option func(*clientOptions)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *clientOptions) {
		if rps <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func buildOptions(opts []Option) clientOptions {
	o := clientOptions{
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
