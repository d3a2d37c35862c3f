// Package airtable implements the study directory on top of the Airtable
// REST API: typed record access, formula building, and the Store that the
// HTTP layer consumes.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goliatone/go-errors"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Record is a raw Airtable row. ID is the Airtable record id, which the
// study uses as the canonical identifier for instructors, admins, and
// courses.
type Record struct {
	ID          string `json:"id"`
	Fields      Fields `json:"fields"`
	CreatedTime string `json:"createdTime,omitempty"`
}

// Fields holds the cell values of a record. Airtable returns numbers as
// float64 and lookup columns as arrays, so access goes through the typed
// getters.
type Fields map[string]any

func (f Fields) Str(key string) string {
	s, _ := f[key].(string)
	return s
}

// FirstStr reads a lookup column, which Airtable serializes as an array
// even when it holds a single value. Plain strings pass through.
func (f Fields) FirstStr(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			s, _ := v[0].(string)
			return s
		}
	}
	return ""
}

func (f Fields) StrList(key string) []string {
	raw, ok := f[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (f Fields) Int(key string) *int {
	if v, ok := f[key].(float64); ok {
		n := int(v)
		return &n
	}
	return nil
}

func (f Fields) Float(key string) *float64 {
	if v, ok := f[key].(float64); ok {
		return &v
	}
	return nil
}

func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// Error is an Airtable API failure with the upstream status attached.
type Error struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("airtable: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// StatusOf extracts the upstream status code, or 0 when err is not an
// Airtable API failure.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client is a minimal Airtable REST client scoped to a single base.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	baseID     string
}

type Option func(*Client)

// WithHTTPClient overrides the underlying transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at a different API host, mainly for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

func NewClient(apiKey, baseID string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		baseID:     baseID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRecord fetches a single record by its Airtable record id.
func (c *Client) GetRecord(ctx context.Context, tableID, recordID string) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, c.recordURL(tableID, recordID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FirstRecord returns the first record matching formula, or nil when the
// table has no match.
func (c *Client) FirstRecord(ctx context.Context, tableID string, formula Formula) (*Record, error) {
	records, err := c.list(ctx, tableID, formula, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ListRecords returns every record matching formula, following pagination
// offsets until the API stops returning them.
func (c *Client) ListRecords(ctx context.Context, tableID string, formula Formula) ([]Record, error) {
	return c.list(ctx, tableID, formula, 0)
}

// UpdateRecord patches the given cell values on a record.
func (c *Client) UpdateRecord(ctx context.Context, tableID, recordID string, fields Fields) error {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode record update")
	}
	return c.do(ctx, http.MethodPatch, c.recordURL(tableID, recordID), body, nil)
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

func (c *Client) list(ctx context.Context, tableID string, formula Formula, max int) ([]Record, error) {
	var out []Record
	offset := ""

	for {
		params := url.Values{}
		if formula != "" {
			params.Set("filterByFormula", string(formula))
		}
		if max > 0 {
			params.Set("maxRecords", fmt.Sprintf("%d", max))
		}
		if offset != "" {
			params.Set("offset", offset)
		}

		endpoint := c.tableURL(tableID)
		if encoded := params.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		out = append(out, page.Records...)
		if page.Offset == "" || (max > 0 && len(out) >= max) {
			return out, nil
		}
		offset = page.Offset
	}
}

func (c *Client) tableURL(tableID string) string {
	return c.baseURL + "/" + c.baseID + "/" + tableID
}

func (c *Client) recordURL(tableID, recordID string) string {
	return c.tableURL(tableID) + "/" + url.PathEscape(recordID)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build airtable request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "airtable request failed")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseAPIError(res)
	}

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to decode airtable response")
	}
	return nil
}

func parseAPIError(res *http.Response) error {
	apiErr := &Error{StatusCode: res.StatusCode}

	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err == nil && len(payload.Error) > 0 {
		// The error value is either {"type","message"} or a bare string.
		var detail struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &detail); err == nil {
			apiErr.Type = detail.Type
			apiErr.Message = detail.Message
		} else {
			var s string
			if json.Unmarshal(payload.Error, &s) == nil {
				apiErr.Message = s
			}
		}
	}

	return apiErr
}
