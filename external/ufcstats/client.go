package ufcstats

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"

	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/usecase"
)

const (
	defaultBaseURL    = "http://ufcstats.com"
	defaultUserAgent  = "Mozilla/5.0"
	defaultFetchDelay = time.Second
	completedPath     = "/statistics/events/completed?page=all"
)

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	FetchDelay time.Duration
	Logger     *logging.Logger
}

// Client scrapes the public results archive. Requests are throttled to one
// per FetchDelay because the archive has no API and no appetite for bursts.
type Client struct {
	httpClient *fasthttp.Client
	baseURL    string
	timeout    time.Duration
	fetchDelay time.Duration
	logger     *logging.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	fetchDelay := cfg.FetchDelay
	if fetchDelay < 0 {
		fetchDelay = defaultFetchDelay
	}

	return &Client{
		httpClient: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		baseURL:    baseURL,
		timeout:    timeout,
		fetchDelay: fetchDelay,
		logger:     logger,
	}
}

// FetchCompletedEvents lists completed events newest first. The archive
// serves the whole history on one page, so limit and offset page through it
// locally.
func (c *Client) FetchCompletedEvents(ctx context.Context, limit, offset int) ([]usecase.ArchiveEvent, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be at least one", usecase.ErrInvalidInput)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", usecase.ErrInvalidInput)
	}

	doc, err := c.fetchDocument(ctx, c.baseURL+completedPath)
	if err != nil {
		return nil, fmt.Errorf("fetch completed events page: %w", err)
	}

	events := parseEventList(doc, limit, offset)
	c.logger.InfoContext(ctx, "fetched completed events", "count", len(events), "offset", offset, "limit", limit)
	return events, nil
}

// FetchEventFights resolves the fight results listed on one event page.
func (c *Client) FetchEventFights(ctx context.Context, event usecase.ArchiveEvent) ([]usecase.ArchiveFight, error) {
	pageURL := strings.TrimSpace(event.URL)
	if pageURL == "" {
		if strings.TrimSpace(event.ID) == "" {
			return nil, fmt.Errorf("%w: event id or url is required", usecase.ErrInvalidInput)
		}
		pageURL = c.baseURL + "/event-details/" + event.ID
	}

	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch event page %s: %w", pageURL, err)
	}

	fights := parseFightRows(doc, event)
	c.logger.DebugContext(ctx, "fetched event fights", "event_id", event.ID, "fights", len(fights))
	return fights, nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(pageURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(defaultUserAgent)

	if err := c.httpClient.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, fmt.Errorf("archive status=%d", code)
	}

	// The response buffer is only valid until release, so the body is
	// copied into a pooled buffer for parsing.
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.Write(resp.Body()); err != nil {
		return nil, fmt.Errorf("buffer response body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(buf.B))
	if err != nil {
		return nil, fmt.Errorf("parse archive page: %w", err)
	}
	return doc, nil
}

// throttle enforces the inter-request delay across goroutines.
func (c *Client) throttle(ctx context.Context) error {
	if c.fetchDelay == 0 {
		return ctx.Err()
	}

	c.mu.Lock()
	now := time.Now()
	next := c.lastRequest.Add(c.fetchDelay)
	if next.Before(now) {
		next = now
	}
	c.lastRequest = next
	c.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
