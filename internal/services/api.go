package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tunegate/internal/shared"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// APIClient performs paced, time-bounded GET requests against one upstream provider.
//
// Every failure it returns is a [*shared.ExternalServiceError].
type APIClient struct {
	provider   string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	headers    http.Header
}

// NewAPIClient creates an [APIClient] for provider rooted at baseURL.
//
// A nil client uses [http.DefaultClient]; a non-positive rps disables pacing.
func NewAPIClient(provider, baseURL string, client *http.Client, timeout time.Duration, rps float64) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &APIClient{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		timeout:    timeout,
		limiter:    rate.NewLimiter(limit, 1),
		headers:    http.Header{},
	}
}

// SetHeader adds a header sent with every request.
func (a *APIClient) SetHeader(key, value string) {
	a.headers.Set(key, value)
}

// Get requests path with params and returns the raw body of a 2xx response.
func (a *APIClient) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, a.fail("wait", err)
	}

	fullURL := a.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, a.fail("build request", err)
	}
	for k, v := range a.headers {
		req.Header[k] = v
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, a.fail("request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, a.fail("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.fail("request", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	return body, nil
}

// GetJSON requests path and decodes the JSON body into out.
func (a *APIClient) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := a.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return a.fail("decode response", err)
	}
	return nil
}

func (a *APIClient) fail(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", a.timeout, err)
	}
	return shared.NewExternalServiceError(a.provider, op, err)
}
