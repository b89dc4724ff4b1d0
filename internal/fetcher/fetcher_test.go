package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carwatch/internal/config"
	"carwatch/internal/observability"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HttpConfig{
			UserAgents:     []string{"ua-one", "ua-two", "ua-three"},
			TotalTimeoutMS: 2000,
			MaxAttempts:    4,
			AcceptLanguage: "fr-FR",
		},
		Backoff: config.BackoffConfig{
			MinMS:            250,
			MaxMS:            2000,
			JitterPct:        20,
			TransportDelayMS: 2000,
		},
	}
}

// newTestFetcher подменяет ожидание записью задержек, тесты не спят
func newTestFetcher(t *testing.T, cfg *config.Config) (*Fetcher, *[]time.Duration) {
	t.Helper()
	f, err := NewFetcher(cfg, observability.NewWriterLogger(io.Discard, "error"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	var mu sync.Mutex
	waits := []time.Duration{}
	f.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		waits = append(waits, d)
		return ctx.Err()
	}
	return f, &waits
}

func TestBackoffCalculation(t *testing.T) {
	cfg := testConfig()
	f, _ := newTestFetcher(t, cfg)

	for attempt := 1; attempt <= 8; attempt++ {
		backoff := f.calculateBackoff(attempt)
		if backoff < cfg.GetBackoffMin() || backoff > cfg.GetBackoffMax() {
			t.Errorf("Backoff out of expected range for attempt %d: %v", attempt, backoff)
		}
	}
}

func TestBackoffGrowsWithoutJitter(t *testing.T) {
	cfg := testConfig()
	cfg.Backoff.JitterPct = 0
	f, _ := newTestFetcher(t, cfg)

	require.Equal(t, 250*time.Millisecond, f.calculateBackoff(1))
	require.Equal(t, 500*time.Millisecond, f.calculateBackoff(2))
	require.Equal(t, 1000*time.Millisecond, f.calculateBackoff(3))
	require.Equal(t, 2000*time.Millisecond, f.calculateBackoff(4))
	require.Equal(t, 2000*time.Millisecond, f.calculateBackoff(40))
}

func TestFetchSuccess(t *testing.T) {
	var seenUA, seenLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUA = r.Header.Get("User-Agent")
		seenLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<select><option>Clio V</option></select>"))
	}))
	defer srv.Close()

	f, waits := newTestFetcher(t, testConfig())
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "Clio V")
	require.Contains(t, []string{"ua-one", "ua-two", "ua-three"}, seenUA)
	require.Equal(t, "fr-FR", seenLang)
	require.Empty(t, *waits)
}

func TestFetchRateLimitedExhausts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig()
	f, waits := newTestFetcher(t, cfg)

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), srv.URL)
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch did not terminate")
	}

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, KindRateLimited, fetchErr.Kind)
	require.Equal(t, cfg.HTTP.MaxAttempts, fetchErr.Attempts)
	require.EqualValues(t, cfg.HTTP.MaxAttempts, atomic.LoadInt32(&hits))
	// После последней попытки не ждём
	require.Len(t, *waits, cfg.HTTP.MaxAttempts-1)
	for _, w := range *waits {
		require.GreaterOrEqual(t, w, cfg.GetBackoffMin())
		require.LessOrEqual(t, w, cfg.GetBackoffMax())
	}
}

func TestFetchRateLimitedThenSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<option>Zoe</option>"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Backoff.JitterPct = 0
	f, waits := newTestFetcher(t, cfg)

	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, string(resp.Body), "Zoe")
	// Retry-After (1s) перекрывает backoff обеих попыток (250ms, 500ms)
	require.Equal(t, []time.Duration{time.Second, time.Second}, *waits)
}

func TestFetchNonRetryableShortCircuits(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, waits := newTestFetcher(t, testConfig())
	_, err := f.Fetch(context.Background(), srv.URL)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, KindHTTPStatus, fetchErr.Kind)
	require.Equal(t, http.StatusInternalServerError, fetchErr.Status)
	require.Contains(t, fetchErr.Error(), "status 500")
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
	require.Empty(t, *waits)
}

func TestFetchTransportErrorExhausts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := testConfig()
	f, waits := newTestFetcher(t, cfg)
	_, err := f.Fetch(context.Background(), url)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, KindTransport, fetchErr.Kind)
	require.Equal(t, cfg.HTTP.MaxAttempts, fetchErr.Attempts)
	require.NotNil(t, errors.Unwrap(fetchErr))
	require.Len(t, *waits, cfg.HTTP.MaxAttempts-1)
	for _, w := range *waits {
		require.Equal(t, cfg.GetTransportRetryDelay(), w)
	}
}

func TestFetchCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, testConfig())
	f.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := f.Fetch(ctx, srv.URL)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, KindTransport, fetchErr.Kind)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchGzipAndCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		// "Mégane" в ISO-8859-1
		_, _ = gz.Write([]byte("<option>M\xe9gane</option>"))
		_ = gz.Close()

		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, testConfig())
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "<option>Mégane</option>", string(resp.Body))
}

func TestFetchOversizedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(bytes.Repeat([]byte(" "), maxBodyBytes+(1<<20)))
		_, _ = w.Write([]byte("<option>Tail</option>"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.HTTP.MaxAttempts = 1
	cfg.HTTP.TotalTimeoutMS = 10000
	f, waits := newTestFetcher(t, cfg)

	resp, err := f.Fetch(context.Background(), srv.URL)
	require.Nil(t, resp)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, KindTransport, fetchErr.Kind)
	require.Contains(t, err.Error(), "exceeds")
	require.Empty(t, *waits)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	h := http.Header{}
	require.Zero(t, parseRetryAfter(h, now))

	h.Set("Retry-After", "7")
	require.Equal(t, 7*time.Second, parseRetryAfter(h, now))

	h.Set("Retry-After", now.Add(30*time.Second).Format(http.TimeFormat))
	require.Equal(t, 30*time.Second, parseRetryAfter(h, now))

	h.Set("Retry-After", "soon")
	require.Zero(t, parseRetryAfter(h, now))
}

func TestFetchErrorMessages(t *testing.T) {
	require.Contains(t, (&FetchError{Kind: KindRateLimited, Attempts: 5}).Error(), "retries exhausted")
	require.Contains(t, (&FetchError{Kind: KindHTTPStatus, Status: 404}).Error(), "status 404")
	require.Contains(t, (&FetchError{Kind: KindTransport, Attempts: 3, Err: io.EOF}).Error(), "transport error")
	require.Equal(t, "rate_limited", KindRateLimited.String())
}
