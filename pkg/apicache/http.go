package apicache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 10 << 20

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration

	// ReadyToTrip is the number of consecutive failures that opens the breaker
	ReadyToTrip uint32
}

// HTTPConfig holds HTTP client settings
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
	Breaker BreakerConfig

	// Transport overrides the default round tripper
	Transport http.RoundTripper
}

// DefaultHTTPConfig returns settings for baseURL with a 10 second timeout and
// a breaker that opens after 5 consecutive failures for 30 seconds
func DefaultHTTPConfig(baseURL string) *HTTPConfig {
	return &HTTPConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Breaker: BreakerConfig{
			Name:        "upstream",
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: 5,
		},
	}
}

// Validate checks the configuration
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func absoluteURL(value interface{}) error {
	raw, _ := value.(string)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// HTTPClient is a JSON Client over net/http guarded by a circuit breaker.
// Server errors and transport failures count against the breaker; 4xx
// responses do not.
type HTTPClient struct {
	baseURL string
	headers map[string]string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logrus.FieldLogger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient. A nil logger uses the logrus standard logger.
func NewHTTPClient(config *HTTPConfig, logger logrus.FieldLogger) (*HTTPClient, error) {
	if config == nil {
		return nil, errors.New("http client configuration is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid http client configuration: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "upstream")

	readyToTrip := config.Breaker.ReadyToTrip
	if readyToTrip == 0 {
		readyToTrip = 5
	}

	settings := gobreaker.Settings{
		Name:        config.Breaker.Name,
		MaxRequests: config.Breaker.MaxRequests,
		Interval:    config.Breaker.Interval,
		Timeout:     config.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= readyToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		headers: config.Headers,
		http: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}, nil
}

// State returns the breaker state
func (c *HTTPClient) State() gobreaker.State {
	return c.breaker.State()
}

// Get fetches endpoint
func (c *HTTPClient) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

// Post sends body to endpoint
func (c *HTTPClient) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, endpoint, body)
}

// Put sends body to endpoint
func (c *HTTPClient) Put(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, endpoint, body)
}

// Delete deletes endpoint
func (c *HTTPClient) Delete(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, endpoint, body)
	})
	if err != nil {
		return nil, err
	}

	raw, _ := result.(json.RawMessage)
	return raw, nil
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s %s: response is not valid JSON", method, endpoint)
	}
	return json.RawMessage(data), nil
}

func (c *HTTPClient) url(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}
