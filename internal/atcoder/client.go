// ============================================================================
// AtCoder Client - 提交列表與程式碼來源
// ============================================================================
//
// Package: internal/atcoder
// File: client.go
// Purpose: Fetch a user's submissions from the kenkoooo AtCoder Problems API
//          and scrape submission source code from atcoder.jp.
//
// Listing:
//   GET {api}/atcoder-api/v3/user/submissions?user=U&from_second=S
//   - from_second is inclusive
//   - at most PageSize rows per response; the client keeps asking from the
//     newest epoch_second it has seen until a short page arrives
//   - rows repeated across pages are dropped by (contest_id, id)
//
// Code:
//   GET {site}/contests/{contest}/submissions/{id}
//   - the code is the text of <pre id="submission-code">
//
// ============================================================================

package atcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/ChuLiYu/atcoder-archive/pkg/types"
)

const (
	DefaultAPIBase  = "https://kenkoooo.com/atcoder"
	DefaultSiteBase = "https://atcoder.jp"

	// PageSize is the maximum number of rows the listing endpoint returns
	PageSize = 500

	userAgent = "atcoder-archive/1.0 (+https://github.com/ChuLiYu/atcoder-archive)"
)

// Client talks to the listing API and the AtCoder site.
type Client struct {
	http     *http.Client
	apiBase  string
	siteBase string
	pages    *rate.Limiter // spaces consecutive listing pages
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithAPIBase overrides DefaultAPIBase.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

// WithSiteBase overrides DefaultSiteBase.
func WithSiteBase(base string) Option {
	return func(c *Client) { c.siteBase = base }
}

// WithPageInterval sets the minimum spacing between listing pages.
// Zero disables the spacing.
func WithPageInterval(d time.Duration) Option {
	return func(c *Client) { c.pages = newLimiter(d) }
}

// NewClient creates a Client with default endpoints.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		apiBase:  DefaultAPIBase,
		siteBase: DefaultSiteBase,
		pages:    newLimiter(time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

type submissionKey struct {
	contest string
	id      int64
}

// FetchSubmissions returns every submission of user created at or after
// fromSecond, in the order the API returned them.
func (c *Client) FetchSubmissions(ctx context.Context, user string, fromSecond int64) ([]types.Submission, error) {
	if user == "" {
		return nil, ErrEmptyUser
	}

	seen := make(map[submissionKey]struct{})
	var all []types.Submission
	from := fromSecond

	for {
		if err := c.pages.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := c.fetchPage(ctx, user, from)
		if err != nil {
			return nil, err
		}

		added := 0
		next := from
		for _, s := range page {
			key := submissionKey{contest: s.ContestID, id: s.ID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, s)
			added++
			if s.EpochSecond > next {
				next = s.EpochSecond
			}
		}

		if len(page) < PageSize || added == 0 {
			return all, nil
		}
		from = next
	}
}

func (c *Client) fetchPage(ctx context.Context, user string, from int64) ([]types.Submission, error) {
	u, err := url.Parse(c.apiBase + "/atcoder-api/v3/user/submissions")
	if err != nil {
		return nil, fmt.Errorf("atcoder: parse api base: %w", err)
	}
	q := u.Query()
	q.Set("user", user)
	q.Set("from_second", strconv.FormatInt(from, 10))
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var page []types.Submission
	if err := json.NewDecoder(body).Decode(&page); err != nil {
		return nil, fmt.Errorf("atcoder: decode submissions: %w", err)
	}
	return page, nil
}

// FetchCode returns the source code of one submission.
func (c *Client) FetchCode(ctx context.Context, contestID string, submissionID int64) (string, error) {
	pageURL := fmt.Sprintf("%s/contests/%s/submissions/%d", c.siteBase, url.PathEscape(contestID), submissionID)

	body, err := c.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	return ExtractCode(body)
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("atcoder: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("atcoder: GET %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
