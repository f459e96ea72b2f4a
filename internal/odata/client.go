package odata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseURL is the catalog's OData service root.
	DefaultBaseURL = "https://catalogue.dataspace.copernicus.eu/odata/v1"

	// DefaultPageCap is the maximum number of records the service returns in
	// a single page regardless of the requested $top.
	DefaultPageCap = 1000

	// DefaultMaxRetries is the number of retries after the first attempt for
	// transient failures.
	DefaultMaxRetries = 3

	// DefaultRetryInterval is the initial backoff delay between retries.
	DefaultRetryInterval = 500 * time.Millisecond
)

// TokenProvider supplies a bearer token for catalog requests. The client
// never persists credentials; it calls the provider per page fetch.
type TokenProvider func(ctx context.Context) (string, error)

// Client executes compiled filters against the catalog: it drives the
// $skip pagination loop, retries transient failures with bounded exponential
// backoff, and returns the raw pages.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	logger        *slog.Logger
	pageCap       int
	maxRetries    int
	retryInterval time.Duration
	tokenProvider TokenProvider
}

// NewClient creates a catalog client for the given OData service root.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:        slog.Default(),
		pageCap:       DefaultPageCap,
		maxRetries:    DefaultMaxRetries,
		retryInterval: DefaultRetryInterval,
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithPageCap overrides the server page cap, mainly for tests.
func (c *Client) WithPageCap(n int) *Client {
	if n > 0 {
		c.pageCap = n
	}
	return c
}

// WithRetry configures the transient-failure retry budget.
func (c *Client) WithRetry(maxRetries int, initial time.Duration) *Client {
	if maxRetries >= 0 {
		c.maxRetries = maxRetries
	}
	if initial > 0 {
		c.retryInterval = initial
	}
	return c
}

// WithTokenProvider attaches a bearer token source to outgoing requests.
func (c *Client) WithTokenProvider(tp TokenProvider) *Client {
	c.tokenProvider = tp
	return c
}

// Execute runs the pagination loop for a compiled filter and returns the
// fetched pages in order. The loop is strictly sequential: each page's skip
// offset depends on the previous page's observed record count. Cancellation
// is cooperative, checked between page fetches; pages already fetched are
// returned.
func (c *Client) Execute(ctx context.Context, f *CompiledFilter) ([]Page, error) {
	var pages []Page
	fetched := 0
	skip := 0
	warned := false

	for fetched < f.Top {
		if err := ctx.Err(); err != nil {
			c.logger.WarnContext(ctx, "search cancelled between pages",
				slog.Int("pages_fetched", len(pages)),
				slog.Int("records_fetched", fetched),
			)
			break
		}

		pageTop := c.pageCap
		if remaining := f.Top - fetched; remaining < pageTop {
			pageTop = remaining
		}
		withCount := f.WantCount && len(pages) == 0

		pageURL := c.pageURL(f, pageTop, skip, withCount)
		page, err := c.fetchPageWithRetry(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		page.Skip = skip
		pages = append(pages, *page)
		fetched += len(page.Records)

		c.logger.DebugContext(ctx, "fetched catalog page",
			slog.Int("skip", skip),
			slog.Int("records", len(page.Records)),
		)

		if len(page.Records) < pageTop {
			break // server exhausted
		}
		if len(page.Records) == c.pageCap && fetched < f.Top && !warned {
			// Offset pagination is only stable when the order-by expression
			// imposes a total order; the client cannot verify that.
			warned = true
			c.logger.WarnContext(ctx, "page boundary hit server cap; result stability depends on order-by totality",
				slog.String("order_by", f.OrderBy),
				slog.Int("skip", skip),
			)
		}
		skip += len(page.Records)
	}

	return pages, nil
}

// pageURL builds the request URL for one page. The compiled filter already
// percent-escapes "%" and "&" inside string literals, so the query is
// assembled directly rather than through url.Values, which would
// double-encode it.
func (c *Client) pageURL(f *CompiledFilter, top, skip int, withCount bool) string {
	var q strings.Builder
	q.WriteString("$filter=")
	q.WriteString(escapeQuery(f.Filter()))
	q.WriteString("&$orderby=")
	q.WriteString(escapeQuery(f.OrderBy))
	q.WriteString("&$top=")
	q.WriteString(strconv.Itoa(top))
	if skip > 0 {
		q.WriteString("&$skip=")
		q.WriteString(strconv.Itoa(skip))
	}
	if withCount {
		q.WriteString("&$count=true")
	}
	if f.Expand {
		q.WriteString("&$expand=Attributes")
	}
	return c.baseURL + "/" + f.Endpoint + "?" + q.String()
}

// escapeQuery makes a filter expression legal inside a URL query string.
// Spaces are the only raw character the grammar produces that a query part
// cannot carry; quotes, parens, commas, and slashes are all valid sub-delims.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, " ", "%20")
}

// transientError marks failures worth retrying: transport errors, 429, 5xx.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// fetchPageWithRetry fetches one page, retrying transient failures with
// bounded exponential backoff. Non-retryable failures (4xx other than 429,
// malformed responses) propagate immediately.
func (c *Client) fetchPageWithRetry(ctx context.Context, pageURL string) (*Page, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	var page *Page
	attempt := 0
	operation := func() error {
		attempt++
		p, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			var te *transientError
			if errors.As(err, &te) {
				c.logger.WarnContext(ctx, "transient catalog failure",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()),
				)
				return err
			}
			return backoff.Permanent(err)
		}
		page = p
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx))
	if err != nil {
		var rejected *QueryRejectedError
		if errors.As(err, &rejected) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("search cancelled: %w", ctx.Err())
		}
		var te *transientError
		if errors.As(err, &te) {
			return nil, fmt.Errorf("%w: %d attempts failed: %v", ErrQueryUnavailable, attempt, err)
		}
		return nil, err
	}
	return page, nil
}

// fetchPage performs a single page request.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cdse-search/1.0")

	if c.tokenProvider != nil {
		token, err := c.tokenProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("catalog request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &transientError{err: fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(body))}
		}
		return nil, &QueryRejectedError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var raw rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	return &Page{Records: raw.Value, Count: raw.Count}, nil
}
