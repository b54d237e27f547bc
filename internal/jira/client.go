// Package jira is the gateway to the Jira agile REST API. Every call is an
// authenticated GET carrying maxResults=1000, throttled by a client-side
// token bucket.
package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxResults is sent on every request; the dashboard never pages.
const MaxResults = 1000

type Options struct {
	BaseURL string
	Email   string
	APIKey  string

	// Timeout bounds a single request. Zero disables it.
	Timeout time.Duration
	// Rate is the sustained request rate per second. Zero means unlimited.
	Rate  float64
	Burst int

	Logger *zap.Logger
	Stats  *Stats
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
}

type Client struct {
	jc    *jira.Client
	log   *zap.Logger
	stats *Stats
}

// NewClient builds a gateway for the given connection.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("jira base URL is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	next := opts.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	auth := &jira.BasicAuthTransport{
		Username: opts.Email,
		Password: opts.APIKey,
		Transport: &limitedTransport{
			limiter: rate.NewLimiter(limit, burst),
			next:    next,
			stats:   opts.Stats,
			log:     log,
		},
	}
	httpClient := &http.Client{Transport: auth, Timeout: opts.Timeout}

	jc, err := jira.NewClient(httpClient, opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	return &Client{jc: jc, log: log, stats: opts.Stats}, nil
}

// Get fetches path (relative to the base URL) and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, op, path string, out any) error {
	u, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("%s: parse path: %w", op, err)
	}
	q := u.Query()
	q.Set("maxResults", strconv.Itoa(MaxResults))
	u.RawQuery = q.Encode()

	req, err := c.jc.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}

	c.log.Debug("jira request", zap.String("op", op), zap.String("path", u.String()))

	start := time.Now()
	resp, err := c.jc.Do(req, out)
	c.stats.Record(op, time.Since(start), err)
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusMultipleChoices {
			return fmt.Errorf("%s: %w", op, jira.NewJiraError(resp, err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type boardPage struct {
	Values []Board `json:"values"`
}

type sprintPage struct {
	Values []Sprint `json:"values"`
}

type issuePage struct {
	Issues []Issue `json:"issues"`
}

// ListBoards lists every board visible to the account.
func (c *Client) ListBoards(ctx context.Context) ([]Board, error) {
	var page boardPage
	if err := c.Get(ctx, "ListBoards", "rest/agile/1.0/board", &page); err != nil {
		return nil, err
	}
	return page.Values, nil
}

// ListSprints lists all sprints of a board, in API order.
func (c *Client) ListSprints(ctx context.Context, boardID string) ([]Sprint, error) {
	var page sprintPage
	path := fmt.Sprintf("rest/agile/1.0/board/%s/sprint", url.PathEscape(boardID))
	if err := c.Get(ctx, "ListSprints", path, &page); err != nil {
		return nil, err
	}
	return page.Values, nil
}

// ListSprintIssues lists every issue of a sprint. Subtasks appear both as
// top-level issues and as stubs under their parent.
func (c *Client) ListSprintIssues(ctx context.Context, boardID string, sprintID int) ([]Issue, error) {
	var page issuePage
	path := fmt.Sprintf("rest/agile/1.0/board/%s/sprint/%d/issue", url.PathEscape(boardID), sprintID)
	if err := c.Get(ctx, "ListSprintIssues", path, &page); err != nil {
		return nil, err
	}
	return page.Issues, nil
}

// limitedTransport waits for a limiter token before each round trip.
type limitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
	stats   *Stats
	log     *zap.Logger
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		t.stats.RecordRateLimitWait(waited)
		t.log.Debug("waited for rate limit", zap.Duration("wait", waited))
	}
	return t.next.RoundTrip(req)
}
