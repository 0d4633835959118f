// Package upstream talks to the public railway offer-request API: building
// the request payload, rotating headers, retrying transport/5xx failures a
// bounded number of times, and defensively parsing the response into the
// domain model.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL        = "https://jegy-a.mav.hu/IK_API_PROD/api/OfferRequestApi/GetOfferRequest"
	defaultTimeout        = 15 * time.Second
	maxResponseBodyBytes  = 256 * 1024
	uaRotationProbability = 0.10
)

// userAgents is a small pool of realistic browser strings rotated
// per-attempt — grounded in the original scraper's static UA list.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// TransportError wraps a network failure or a request that exceeded the
// per-call timeout — both are treated identically as retryable.
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return "upstream: transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamRejection wraps an HTTP 4xx response with a parseable error
// body. Never retried. A 5xx response is reported as a TransportError and
// retried.
type UpstreamRejection struct {
	StatusCode int
	Body       string
}

func (e *UpstreamRejection) Error() string {
	return fmt.Sprintf("upstream: rejected with status %d: %s", e.StatusCode, e.Body)
}

// RetryConfig bounds the per-call retry loop: a fixed backoff applied to
// transport/5xx failures only — never 4xx or payload-decode errors.
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
	Timeout    time.Duration
}

// DefaultRetryConfig is the default policy: 3 retries, 1s fixed backoff,
// 15s per-call timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, Backoff: time.Second, Timeout: defaultTimeout}
}

// Client issues offer-request calls against the upstream API. One Client is
// shared across every harvest worker: the embedded *http.Client keeps
// cookies and connections alive and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig

	mu            sync.Mutex
	currentUA     string
	sessionHeader string
}

// NewClient builds a Client around httpClient (a cookie-jar-enabled
// *http.Client the caller owns) and the given retry policy.
func NewClient(httpClient *http.Client, retry RetryConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		retry:      retry,
		currentUA:  userAgents[0],
	}
}

// WithBaseURL overrides the upstream URL, used by tests to point at an
// httptest server.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// MaybeRotateUserAgent rotates the shared User-Agent with a 10% probability
// per attempt. Callers invoke this once per pair attempt, before
// FetchRoutes.
func (c *Client) MaybeRotateUserAgent() {
	if rand.Float64() >= uaRotationProbability {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentUA = userAgents[rand.IntN(len(userAgents))]
}

func (c *Client) headers(req *http.Request) {
	c.mu.Lock()
	ua := c.currentUA
	c.mu.Unlock()

	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,hu;q=0.8")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Origin", "https://jegy.mav.hu")
	req.Header.Set("Referer", "https://jegy.mav.hu/")
	req.Header.Set("UserSessionId", "")
}

// FetchRoutes issues one offer-request call for (startStation, endStation)
// at travelDate, retrying transport/5xx failures up to retry.MaxRetries
// times with fixed backoff. 4xx responses and payload-decode errors are
// never retried.
func (c *Client) FetchRoutes(ctx context.Context, startStation, endStation string, travelDate time.Time) ([]byte, error) {
	payload := newOfferRequest(startStation, endStation, travelDate)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &PayloadError{Err: err}
	}

	var result []byte
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(&TransportError{Err: err})
		}
		c.headers(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &TransportError{Err: err}
		}
		defer resp.Body.Close()

		limited := io.LimitReader(resp.Body, maxResponseBodyBytes+1)
		respBody, err := io.ReadAll(limited)
		if err != nil {
			return &TransportError{Err: err}
		}
		if len(respBody) > maxResponseBodyBytes {
			respBody = respBody[:maxResponseBodyBytes]
		}

		if resp.StatusCode >= 500 {
			return &TransportError{Err: fmt.Errorf("http %d", resp.StatusCode)}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(&UpstreamRejection{StatusCode: resp.StatusCode, Body: excerpt(respBody)})
		}

		result = respBody
		return nil
	}

	policy := backoff.WithMaxRetries(&backoff.ConstantBackOff{Interval: c.retry.Backoff}, uint64(c.retry.MaxRetries))
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}
