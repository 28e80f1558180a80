// Package sheets provides a client for the Google Sheets values API,
// covering the append and header operations the push pipeline needs.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the spreadsheet operations used by the pipeline.
type Client interface {
	// EnsureHeader writes the header row if the sheet's first row is empty.
	EnsureHeader(ctx context.Context, spreadsheetID, sheetName string, header []string) error
	// AppendRows appends rows below the last non-empty row, splitting the
	// upload into batches.
	AppendRows(ctx context.Context, spreadsheetID, sheetName string, rows [][]string) error
	// Clear removes all values from the sheet below the header row.
	Clear(ctx context.Context, spreadsheetID, sheetName string) error
}

// Option configures the Sheets client.
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

// WithBatchSize sets the number of rows uploaded per append call.
func WithBatchSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

type httpClient struct {
	token     string
	baseURL   string
	batchSize int
	http      *http.Client
}

// NewClient creates a Sheets client authenticating with the given bearer token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:     token,
		baseURL:   "https://sheets.googleapis.com/v4/spreadsheets",
		batchSize: 100,
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

type valueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values"`
}

func (c *httpClient) EnsureHeader(ctx context.Context, spreadsheetID, sheetName string, header []string) error {
	rng := fmt.Sprintf("%s!1:1", sheetName)
	path := fmt.Sprintf("/%s/values/%s", url.PathEscape(spreadsheetID), url.PathEscape(rng))

	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return eris.Wrap(err, "sheets: read header row")
	}
	if status != http.StatusOK {
		return eris.Errorf("sheets: read header row: status %d: %s", status, string(body))
	}

	var existing valueRange
	if err := json.Unmarshal(body, &existing); err != nil {
		return eris.Wrap(err, "sheets: unmarshal header row")
	}
	if len(existing.Values) > 0 && len(existing.Values[0]) > 0 {
		return nil
	}

	payload, err := json.Marshal(valueRange{Values: [][]string{header}})
	if err != nil {
		return eris.Wrap(err, "sheets: marshal header")
	}
	updatePath := path + "?valueInputOption=RAW"
	body, status, err = c.do(ctx, http.MethodPut, updatePath, payload)
	if err != nil {
		return eris.Wrap(err, "sheets: write header row")
	}
	if status != http.StatusOK {
		return eris.Errorf("sheets: write header row: status %d: %s", status, string(body))
	}
	return nil
}

func (c *httpClient) AppendRows(ctx context.Context, spreadsheetID, sheetName string, rows [][]string) error {
	rng := fmt.Sprintf("%s!A:A", sheetName)
	path := fmt.Sprintf("/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		url.PathEscape(spreadsheetID), url.PathEscape(rng))

	for start := 0; start < len(rows); start += c.batchSize {
		end := min(start+c.batchSize, len(rows))

		payload, err := json.Marshal(valueRange{Values: rows[start:end]})
		if err != nil {
			return eris.Wrap(err, "sheets: marshal rows")
		}
		body, status, err := c.do(ctx, http.MethodPost, path, payload)
		if err != nil {
			return eris.Wrapf(err, "sheets: append rows %d-%d", start, end)
		}
		if status != http.StatusOK {
			return eris.Errorf("sheets: append rows %d-%d: status %d: %s", start, end, status, string(body))
		}
	}
	return nil
}

func (c *httpClient) Clear(ctx context.Context, spreadsheetID, sheetName string) error {
	rng := fmt.Sprintf("%s!2:10000000", sheetName)
	path := fmt.Sprintf("/%s/values/%s:clear", url.PathEscape(spreadsheetID), url.PathEscape(rng))

	body, status, err := c.do(ctx, http.MethodPost, path, []byte("{}"))
	if err != nil {
		return eris.Wrap(err, "sheets: clear sheet")
	}
	if status != http.StatusOK {
		return eris.Errorf("sheets: clear sheet: status %d: %s", status, string(body))
	}
	return nil
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// do executes a request with exponential backoff on transient failures.
func (c *httpClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sheets: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
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
			return nil, resp.StatusCode, eris.Wrap(readErr, "sheets: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("sheets: status %d: %s", resp.StatusCode, string(body))
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
