package fetcher

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"carwatch/internal/config"
)

// rodTransport открывает страницу в headless Chromium: списки опций
// у части конфигураторов заполняются скриптами уже после загрузки
type rodTransport struct {
	cfg      *config.Config
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func newRodTransport(cfg *config.Config) (*rodTransport, error) {
	l := launcher.New().Headless(true)
	if cfg.Rod.ChromePath != "" {
		l = l.Bin(cfg.Rod.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &rodTransport{
		cfg:      cfg,
		launcher: l,
		browser:  browser,
	}, nil
}

func (t *rodTransport) roundTrip(ctx context.Context, urlStr, userAgent string) (*FetchResponse, error) {
	page, err := t.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	timed := page.Timeout(t.cfg.GetRodPageTimeout())
	defer timed.CancelTimeout()

	if err := timed.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}

	result := &FetchResponse{URL: urlStr, Headers: http.Header{}}
	waitDocument := timed.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		result.StatusCode = e.Response.Status
		result.URL = e.Response.URL
		for name, value := range e.Response.Headers {
			result.Headers.Set(name, value.String())
		}
		return true
	})

	if err := timed.Navigate(urlStr); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}
	waitDocument()

	if result.StatusCode == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no document response for %s", urlStr)
	}
	if result.StatusCode != http.StatusOK {
		return result, nil
	}

	if err := page.Timeout(t.cfg.GetRodWaitLoadTimeout()).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load failed: %w", err)
	}

	if delay := t.cfg.GetRodLazyLoadDelay(); delay > 0 {
		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page HTML: %w", err)
	}
	result.Body = []byte(html)

	return result, nil
}

func (t *rodTransport) Close() error {
	err := t.browser.Close()
	t.launcher.Cleanup()
	return err
}
