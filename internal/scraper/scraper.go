package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/pfrederiksen/odmp-harvest/internal/logger"
)

const (
	SearchURL  = "https://www.odmp.org/search"
	UserAgent  = "odmp-harvest/1.0 (github.com/pfrederiksen/odmp-harvest)"
	Timeout    = 30 * time.Second
	Retries    = 2
	RetryDelay = 2 * time.Second

	// FirstYear is the earliest year the registry covers
	FirstYear = 1791
)

// Query parameter names understood by the search endpoint
const (
	ParamFrom   = "from"
	ParamTo     = "to"
	ParamOffset = "o"
)

// StatusError reports a non-200 response
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

// Options configures a Client. Zero values take the package defaults, except
// Retries where a negative value disables retrying.
type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	Logger     *logger.Logger
	Metrics    *logger.Metrics
}

// Client fetches and parses registry search pages
type Client struct {
	client     *http.Client
	url        string
	userAgent  string
	retries    int
	retryDelay time.Duration
	log        *logger.Logger
	metrics    *logger.Metrics
	now        func() time.Time
}

// New creates a Client with default settings
func New() *Client {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Client from opts
func NewWithOptions(opts Options) *Client {
	c := &Client{
		client:     &http.Client{Timeout: Timeout},
		url:        SearchURL,
		userAgent:  UserAgent,
		retries:    Retries,
		retryDelay: RetryDelay,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
	if opts.BaseURL != "" {
		c.url = opts.BaseURL
	}
	if opts.UserAgent != "" {
		c.userAgent = opts.UserAgent
	}
	if opts.Timeout > 0 {
		c.client.Timeout = opts.Timeout
	}
	if opts.Retries != 0 {
		c.retries = max(opts.Retries, 0)
	}
	if opts.RetryDelay > 0 {
		c.retryDelay = opts.RetryDelay
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	if c.metrics == nil {
		c.metrics = logger.DefaultMetrics()
	}
	return c
}

// DefaultParams returns the fixed search parameters for a query covering
// every year up to now.
func DefaultParams(now time.Time) url.Values {
	return url.Values{
		"name":    {""},
		"agency":  {""},
		"state":   {""},
		ParamFrom: {strconv.Itoa(FirstYear)},
		ParamTo:   {strconv.Itoa(now.Year())},
		"cause":   {""},
		"filter":  {"all"},
	}
}

// YearPage returns the overrides for one page of results within year
func YearPage(year, offset int) url.Values {
	return url.Values{
		ParamFrom:   {strconv.Itoa(year)},
		ParamTo:     {strconv.Itoa(year)},
		ParamOffset: {strconv.Itoa(offset)},
	}
}

// RequestURL builds the request URL for the given overrides
func (c *Client) RequestURL(overrides url.Values) string {
	params := DefaultParams(c.now())
	for k, v := range overrides {
		params[k] = v
	}
	return c.url + "?" + params.Encode()
}

// Fetch requests one search page and parses it. Transient failures are retried;
// the last error is returned once retries run out or ctx is done.
func (c *Client) Fetch(ctx context.Context, overrides url.Values) (*goquery.Document, error) {
	target := c.RequestURL(overrides)
	start := time.Now()

	var doc *goquery.Document
	operation := func() error {
		var err error
		doc, err = c.fetchOnce(ctx, target)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(c.retries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		c.metrics.IncrCounter(logger.MetricFetchRetries)
		c.log.Warn("fetch failed, retrying", logger.Fields{
			"url":  target,
			"wait": wait.String(),
		}, err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}

	c.metrics.IncrCounter(logger.MetricPagesFetched)
	c.metrics.RecordTiming(logger.MetricFetch, time.Since(start))
	c.log.Debug("page fetched", logger.Fields{"url": target})
	return doc, nil
}

func (c *Client) fetchOnce(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: target}
		if resp.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// IsStatus reports whether err carries an HTTP status error with code
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
