package fetcher

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/http2"

	"carwatch/internal/config"
	"carwatch/internal/observability"
)

// Страница конфигуратора не должна быть больше этого
const maxBodyBytes = 16 << 20

type httpTransport struct {
	client *http.Client
	cfg    *config.Config
	logger *observability.Logger
}

func newHTTPTransport(cfg *config.Config, logger *observability.Logger) (*httpTransport, error) {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.HTTP.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnectionsPerHost,
		IdleConnTimeout:     cfg.GetIdleConnectionTimeout(),
	}
	if err := http2.ConfigureTransport(base); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2 transport: %w", err)
	}

	var rt http.RoundTripper = base
	if cfg.HTTP.CloudflareBypass {
		rt = cloudflarebp.AddCloudFlareByPass(rt)
	}

	return &httpTransport{
		client: &http.Client{
			Timeout:   cfg.GetTotalTimeout(),
			Transport: rt,
		},
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (t *httpTransport) roundTrip(ctx context.Context, urlStr, userAgent string) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", t.cfg.HTTP.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	result := &FetchResponse{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Headers:    resp.Header,
	}

	if resp.StatusCode != http.StatusOK {
		// Дочитываем остаток, чтобы соединение вернулось в пул
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return result, nil
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	// Конфигураторы нередко отдают ISO-8859-1, goquery ждёт UTF-8
	reader, err = charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode charset: %w", err)
	}

	// Обрезанная страница дала бы ложные "удалённые" опции, поэтому это ошибка
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
	}

	t.logger.Debug("Response received",
		"url", result.URL,
		"content_encoding", resp.Header.Get("Content-Encoding"),
		"content_type", resp.Header.Get("Content-Type"),
		"proto", resp.Proto,
		"body_size", len(body),
	)

	result.Body = body
	return result, nil
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
