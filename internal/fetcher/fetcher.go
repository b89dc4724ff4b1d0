package fetcher

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"carwatch/internal/config"
	"carwatch/internal/observability"
)

type Fetcher struct {
	cfg       *config.Config
	logger    *observability.Logger
	transport transport
	sleep     func(ctx context.Context, d time.Duration) error
}

type FetchResponse struct {
	StatusCode int
	Body       []byte
	URL        string
	Headers    http.Header
}

// transport выполняет одну попытку запроса без повторов
type transport interface {
	roundTrip(ctx context.Context, urlStr, userAgent string) (*FetchResponse, error)
	Close() error
}

// outcome - итог одной попытки
type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeRateLimited
	outcomeTransportFailed
	outcomeFailed
)

func NewFetcher(cfg *config.Config, logger *observability.Logger) (*Fetcher, error) {
	var (
		t   transport
		err error
	)
	if cfg.Rod.Enabled {
		t, err = newRodTransport(cfg)
	} else {
		t, err = newHTTPTransport(cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		cfg:       cfg,
		logger:    logger,
		transport: t,
		sleep:     sleepContext,
	}, nil
}

// Fetch получает документ. 429 и сетевые ошибки повторяются в пределах http.max_attempts,
// любой другой статус кроме 200 завершает работу сразу.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	maxAttempts := f.cfg.HTTP.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		last    outcome
		lastErr error
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		userAgent := f.pickUserAgent()
		resp, err := f.transport.roundTrip(ctx, urlStr, userAgent)

		last, lastErr = classify(resp, err)

		var wait time.Duration
		switch last {
		case outcomeSucceeded:
			f.logger.Debug("Fetch succeeded",
				"url", urlStr,
				"attempt", attempt,
				"bytes", len(resp.Body),
			)
			return resp, nil

		case outcomeFailed:
			f.logger.Warn("Non-retryable HTTP status",
				"url", urlStr,
				"attempt", attempt,
				"status", resp.StatusCode,
			)
			return nil, &FetchError{Kind: KindHTTPStatus, URL: urlStr, Status: resp.StatusCode, Attempts: attempt}

		case outcomeRateLimited:
			wait = f.rateLimitDelay(attempt, resp.Headers)

		case outcomeTransportFailed:
			if ctx.Err() != nil {
				return nil, &FetchError{Kind: KindTransport, URL: urlStr, Attempts: attempt, Err: ctx.Err()}
			}
			wait = f.cfg.GetTransportRetryDelay()
		}

		if attempt == maxAttempts {
			break
		}

		f.logger.Warn("Fetch attempt failed, backing off",
			"url", urlStr,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"wait", wait.String(),
			"error", lastErr.Error(),
		)

		if err := f.sleep(ctx, wait); err != nil {
			return nil, &FetchError{Kind: KindTransport, URL: urlStr, Attempts: attempt, Err: err}
		}
	}

	if last == outcomeRateLimited {
		return nil, &FetchError{Kind: KindRateLimited, URL: urlStr, Status: http.StatusTooManyRequests, Attempts: maxAttempts, Err: lastErr}
	}
	return nil, &FetchError{Kind: KindTransport, URL: urlStr, Attempts: maxAttempts, Err: lastErr}
}

// Close освобождает соединения или браузер
func (f *Fetcher) Close() error {
	return f.transport.Close()
}

func classify(resp *FetchResponse, err error) (outcome, error) {
	if err != nil {
		return outcomeTransportFailed, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return outcomeSucceeded, nil
	case http.StatusTooManyRequests:
		return outcomeRateLimited, fmt.Errorf("server returned %d", resp.StatusCode)
	default:
		return outcomeFailed, fmt.Errorf("server returned %d", resp.StatusCode)
	}
}

func (f *Fetcher) pickUserAgent() string {
	agents := f.cfg.HTTP.UserAgents
	if len(agents) == 0 {
		return ""
	}
	return agents[rand.Intn(len(agents))]
}

// rateLimitDelay учитывает Retry-After, но не дольше backoff.max_ms
func (f *Fetcher) rateLimitDelay(attempt int, headers http.Header) time.Duration {
	wait := f.calculateBackoff(attempt)
	if retryAfter := parseRetryAfter(headers, time.Now()); retryAfter > wait {
		wait = retryAfter
	}
	if limit := f.cfg.GetBackoffMax(); wait > limit {
		wait = limit
	}
	return wait
}

func (f *Fetcher) calculateBackoff(attempt int) time.Duration {
	minMS := f.cfg.Backoff.MinMS
	maxMS := f.cfg.Backoff.MaxMS
	jitterPct := f.cfg.Backoff.JitterPct

	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}

	// Exponential backoff: min * 2^(attempt-1)
	exponential := minMS * (1 << uint(attempt-1))
	if exponential > maxMS || exponential <= 0 {
		exponential = maxMS
	}

	// Apply jitter: ±jitterPct%
	jitterRange := float64(exponential) * float64(jitterPct) / 100
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange
	finalMS := float64(exponential) + jitter

	finalMS = math.Max(finalMS, float64(minMS))
	finalMS = math.Min(finalMS, float64(maxMS))

	return time.Duration(finalMS) * time.Millisecond
}

func parseRetryAfter(headers http.Header, now time.Time) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
