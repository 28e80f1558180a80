// Package gmail provides a minimal client for the Gmail REST API: listing
// unread messages, fetching headers and plain-text bodies, and marking
// messages read. Token acquisition (service account, OAuth) is the
// caller's concern; the client only attaches the bearer token it is given.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the mailbox operations the pipeline needs.
type Client interface {
	// ListUnread returns the IDs of messages matching the query, walking
	// all result pages.
	ListUnread(ctx context.Context, query string) ([]string, error)
	// FetchMeta fetches the Subject/From/Date headers of a message.
	FetchMeta(ctx context.Context, id string) (*MessageMeta, error)
	// FetchBody fetches the full message and returns its first text/plain
	// part, decoded.
	FetchBody(ctx context.Context, id string) (string, error)
	// MarkRead removes the UNREAD label from a message.
	MarkRead(ctx context.Context, id string) error
}

// MessageMeta holds the headers the pipeline cares about.
type MessageMeta struct {
	ID       string
	Subject  string
	From     string
	Received time.Time
}

// Option configures the Gmail client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

type httpClient struct {
	token    string
	baseURL  string
	pageSize int
	http     *http.Client
}

// NewClient creates a Gmail client authenticating with the given bearer token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		baseURL:  "https://gmail.googleapis.com/gmail/v1",
		pageSize: 200,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type payload struct {
	MimeType string `json:"mimeType"`
	Headers  []header `json:"headers"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []payload `json:"parts"`
}

type messageResponse struct {
	ID           string  `json:"id"`
	InternalDate string  `json:"internalDate"`
	Payload      payload `json:"payload"`
}

func (c *httpClient) ListUnread(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("q", query)
		q.Set("maxResults", fmt.Sprint(c.pageSize))
		q.Set("fields", "nextPageToken,messages/id")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var resp listResponse
		if err := c.getJSON(ctx, "/users/me/messages?"+q.Encode(), &resp); err != nil {
			return nil, eris.Wrap(err, "gmail: list messages")
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.ID)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

func (c *httpClient) FetchMeta(ctx context.Context, id string) (*MessageMeta, error) {
	path := fmt.Sprintf(
		"/users/me/messages/%s?format=metadata&metadataHeaders=Subject&metadataHeaders=From&metadataHeaders=Date&fields=id,internalDate,payload/headers",
		url.PathEscape(id))

	var resp messageResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, eris.Wrapf(err, "gmail: fetch metadata %s", id)
	}

	meta := &MessageMeta{ID: resp.ID}
	for _, h := range resp.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			meta.Subject = h.Value
		case "from":
			meta.From = h.Value
		case "date":
			if t, err := parseMailDate(h.Value); err == nil {
				meta.Received = t
			}
		}
	}
	if meta.Received.IsZero() && resp.InternalDate != "" {
		if ms, err := strconv.ParseInt(resp.InternalDate, 10, 64); err == nil {
			meta.Received = time.UnixMilli(ms).UTC()
		}
	}
	return meta, nil
}

func (c *httpClient) FetchBody(ctx context.Context, id string) (string, error) {
	path := fmt.Sprintf("/users/me/messages/%s?format=full&fields=payload", url.PathEscape(id))

	var resp messageResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return "", eris.Wrapf(err, "gmail: fetch body %s", id)
	}
	return extractPlaintext(&resp.Payload), nil
}

func (c *httpClient) MarkRead(ctx context.Context, id string) error {
	body := `{"removeLabelIds":["UNREAD"]}`
	path := fmt.Sprintf("/users/me/messages/%s/modify", url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		bytes.NewReader([]byte(body)))
	if err != nil {
		return eris.Wrap(err, "gmail: create modify request")
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, status, err := c.retryDo(ctx, req)
	if err != nil {
		return eris.Wrapf(err, "gmail: mark read %s", id)
	}
	if status != http.StatusOK {
		return eris.Errorf("gmail: mark read %s: status %d: %s", id, status, string(respBody))
	}
	return nil
}

// extractPlaintext walks the payload tree and returns the first decoded
// text/plain part.
func extractPlaintext(p *payload) string {
	if p.MimeType == "text/plain" && p.Body.Data != "" {
		if text, err := decodeBase64URL(p.Body.Data); err == nil {
			return text
		}
	}
	for i := range p.Parts {
		if text := extractPlaintext(&p.Parts[i]); text != "" {
			return text
		}
	}
	return ""
}

// decodeBase64URL decodes urlsafe base64 tolerating missing padding.
func decodeBase64URL(data string) (string, error) {
	if n := len(data) % 4; n != 0 {
		data += strings.Repeat("=", 4-n)
	}
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return "", eris.Wrap(err, "gmail: decode body")
	}
	return string(b), nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "gmail: create request")
	}

	body, status, err := c.retryDo(ctx, req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return eris.Errorf("gmail: unexpected status %d: %s", status, string(body))
	}
	return eris.Wrap(json.Unmarshal(body, out), "gmail: unmarshal response")
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// retryDo executes a request with exponential backoff on transient
// failures, returning the body and status of the final response.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)
		if req.GetBody != nil {
			rb, err := req.GetBody()
			if err != nil {
				return nil, 0, eris.Wrap(err, "gmail: clone request body")
			}
			retryReq.Body = rb
		}

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "gmail: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("gmail: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func parseMailDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("gmail: cannot parse date %q", s)
}
