package mls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"mlssync/internal/config"
)

// RawRecord is one upstream JSON object. Numbers decode as json.Number so
// prices and keys keep their exact text.
type RawRecord map[string]any

// Page is one decoded OData collection response.
type Page struct {
	Records  []RawRecord
	NextLink string
	Count    *int64
}

// Query describes one OData collection request.
type Query struct {
	Resource string
	Filter   string
	OrderBy  string
	Top      int
	Skip     int
	Select   []string
	Count    bool
}

// Fetcher is satisfied by Transport.
type Fetcher interface {
	FetchWithRetry(ctx context.Context, rawURL string, headers http.Header, maxRetries int) (*Response, error)
}

type Client struct {
	baseURL    string
	apiKey     string
	origin     string
	maxRetries int
	fetcher    Fetcher
}

func NewClient(cfg config.UpstreamConfig, fetcher Fetcher) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		origin:     strings.TrimSpace(cfg.Origin),
		maxRetries: cfg.MaxRetries,
		fetcher:    fetcher,
	}
}

// CollectionURL renders q against the base URL. Parameters keep a fixed
// order and spaces are encoded as %20, which OData servers expect.
func (c *Client) CollectionURL(q Query) string {
	params := make([]string, 0, 6)
	add := func(key, value string) {
		params = append(params, key+"="+strings.ReplaceAll(url.QueryEscape(value), "+", "%20"))
	}
	if q.Filter != "" {
		add("$filter", q.Filter)
	}
	if q.OrderBy != "" {
		add("$orderby", q.OrderBy)
	}
	if q.Top > 0 {
		add("$top", strconv.Itoa(q.Top))
	}
	if q.Skip > 0 {
		add("$skip", strconv.Itoa(q.Skip))
	}
	if len(q.Select) > 0 {
		add("$select", strings.Join(q.Select, ","))
	}
	if q.Count {
		add("$count", "true")
	}
	out := c.baseURL + "/" + url.PathEscape(q.Resource)
	if len(params) > 0 {
		out += "?" + strings.Join(params, "&")
	}
	return out
}

// ResolveNextLink makes a server-supplied continuation link absolute.
func (c *Client) ResolveNextLink(link string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) Headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if c.apiKey != "" {
		h.Set("X-Api-Key", c.apiKey)
	}
	if c.origin != "" {
		h.Set("Origin", c.origin)
	}
	return h
}

// FetchPage requests pageURL and decodes the collection. Responses that are
// still 429 or 5xx after the transport's retries become typed errors.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	if c.fetcher == nil {
		return nil, &ConfigError{Err: errors.New("client has no transport")}
	}
	resp, err := c.fetcher.FetchWithRetry(ctx, pageURL, c.Headers(), c.maxRetries)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ExhaustedRetriesError{
			Attempts: resp.Attempts,
			Err:      &RateLimitedError{RetryAfter: retryAfter(resp.Header)},
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(resp.Body), URL: pageURL}
	}
	page, err := DecodePage(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: truncate(string(resp.Body), 256), URL: pageURL, Err: err}
	}
	return page, nil
}

type pageEnvelope struct {
	Value    []RawRecord `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
	Count    *int64      `json:"@odata.count"`
}

func DecodePage(body []byte) (*Page, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var env pageEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode odata page: %w", err)
	}
	return &Page{Records: env.Value, NextLink: strings.TrimSpace(env.NextLink), Count: env.Count}, nil
}

// FormatTimestamp renders t as an OData DateTimeOffset literal.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999Z07:00")
}
