// Package advisory calls an optional external acuity advisory service.
// The service returns a second opinion for a scored assessment; the
// deterministic scorer stays authoritative and advisory failures never
// affect triage.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/smart-triage-engine/internal/domain"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("advisory service unavailable")

// Opinion is the advisory service's response for an assessment.
type Opinion struct {
	SuggestedPriority string   `json:"suggested_priority"`
	Confidence        float64  `json:"confidence"`
	Notes             []string `json:"notes,omitempty"`
	ModelVersion      string   `json:"model_version"`
}

// request is the payload sent to the advisory endpoint.
type request struct {
	Assessment *domain.Assessment   `json:"assessment"`
	Result     *domain.TriageResult `json:"result"`
}

// Client talks to the advisory service with rate limiting and a
// circuit breaker around the HTTP calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates an advisory client from configuration. Zero values
// fall back to conservative defaults.
func NewClient(config domain.AdvisoryConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.Burst == 0 {
		config.Burst = 1
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 3
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "advisory",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
	})

	return &Client{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		breaker:   breaker,
	}
}

// SecondOpinion submits a scored assessment and returns the service's
// suggested acuity.
func (c *Client) SecondOpinion(ctx context.Context, assessment *domain.Assessment, result *domain.TriageResult) (*Opinion, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, assessment, result)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	return out.(*Opinion), nil
}

func (c *Client) post(ctx context.Context, assessment *domain.Assessment, result *domain.TriageResult) (*Opinion, error) {
	body, err := json.Marshal(request{Assessment: assessment, Result: result})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal advisory request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/opinion", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build advisory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advisory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("advisory returned status %d: %s", resp.StatusCode, string(data))
	}

	var opinion Opinion
	if err := json.NewDecoder(resp.Body).Decode(&opinion); err != nil {
		return nil, fmt.Errorf("failed to decode advisory response: %w", err)
	}
	return &opinion, nil
}

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
