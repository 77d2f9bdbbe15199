// Package fetcher retrieves capabilities documents from upstream map servers.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/wms-catalog/internal/core/observability"
)

const (
	acceptXML     = "application/vnd.ogc.wms_xml, text/xml;q=0.9, application/xml;q=0.8, */*;q=0.1"
	userAgent     = "wms-catalog/1"
	defaultLimit  = 32 << 20
	errorBodyPeek = 8 << 10
)

var ErrTooLarge = errors.New("fetcher: document exceeds size limit")

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

type Fetcher interface {
	FetchDocument(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) FetchDocument(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

type HTTP struct {
	logger   *slog.Logger
	client   *http.Client
	limit    int64
	startNow func() time.Time // for tests
}

// NewHTTP returns an HTTP fetcher. limit <= 0 uses a 32 MiB cap.
func NewHTTP(logger *slog.Logger, client *http.Client, limit int64) *HTTP {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &HTTP{logger: logger, client: client, limit: limit, startNow: time.Now}
}

func (h *HTTP) FetchDocument(ctx context.Context, url string) (body []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", acceptXML)
	req.Header.Set("User-Agent", userAgent)

	start := h.startNow()
	defer func() {
		dur := time.Since(start)
		observability.ObserveUpstreamLatency("capabilities", err, dur.Seconds())
		h.logger.Debug("capabilities fetch done",
			"url", url, "bytes", len(body), "duration", dur.String(), "err", err)
	}()

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPeek))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(b)}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, h.limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > h.limit {
		return nil, ErrTooLarge
	}
	return b, nil
}
