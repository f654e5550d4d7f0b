// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/tunegate/internal/models"
)

// MockProvider is a test double for [services.Provider] that counts upstream calls
type MockProvider struct {
	ProviderName string
	Results      []models.SearchResult
	Err          error
	Delay        time.Duration

	calls     atomic.Int64
	mu        sync.Mutex
	lastQuery string
	lastLimit int
}

func (m *MockProvider) Name() string { return m.ProviderName }

func (m *MockProvider) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastQuery, m.lastLimit = query, limit
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}

	out := make([]models.SearchResult, len(m.Results))
	copy(out, m.Results)
	return out, nil
}

// Calls returns how many times Search was invoked
func (m *MockProvider) Calls() int { return int(m.calls.Load()) }

// LastCall returns the query and limit of the most recent Search
func (m *MockProvider) LastCall() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery, m.lastLimit
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FailingStore fails every counter and cache operation with Err
type FailingStore struct {
	Err error
}

func (f *FailingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, f.Err
}
func (f *FailingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.Err
}
func (f *FailingStore) Set(context.Context, string, []byte, time.Duration) error {
	return f.Err
}
func (f *FailingStore) Ping(context.Context) error { return f.Err }
func (f *FailingStore) Close() error               { return nil }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
