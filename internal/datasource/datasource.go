// Package datasource fetches and decodes mutual-fund NAV data: the AMFI bulk
// NAV file, the AMFI NAV history report, and per-fund historical series from
// the captnemo NAV API.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Sentinel errors ---

// ErrFeedUnavailable is returned when every URL and attempt of the bulk fetch failed.
var ErrFeedUnavailable = errors.New("AMFI NAV feed unavailable")

// ErrInvalidISIN is returned when an identifier does not look like a fund ISIN.
var ErrInvalidISIN = errors.New("invalid ISIN format")

// ErrInvalidInput is returned for malformed caller input other than an ISIN,
// such as a missing report date.
var ErrInvalidInput = errors.New("invalid input")

// ErrPayloadTooSmall rejects a successful response whose body is too short to
// be a real NAV dump.
var ErrPayloadTooSmall = errors.New("payload below minimum size")

// ValidationError reports malformed caller input. It is raised before any
// network I/O.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// Unwrap matches ErrInvalidISIN for the isin field and ErrInvalidInput for
// everything else.
func (e *ValidationError) Unwrap() error {
	if e.Field == "isin" {
		return ErrInvalidISIN
	}
	return ErrInvalidInput
}

// ErrHTTP carries an upstream non-success response. Body is kept verbatim.
type ErrHTTP struct {
	StatusCode  int
	Status      string
	ContentType string
	Body        string
}

func (e *ErrHTTP) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, body)
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent identifies navcompare to upstream hosts.
const DefaultUserAgent = "navcompare/1.0 (+https://github.com/seenimoa/navcompare)"

// DefaultTimeout bounds every individual upstream request.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response is read. The full AMFI dump is a
// few megabytes.
const maxBodyBytes = 64 << 20

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * DefaultTimeout}
}

// response is a fully read upstream reply.
type response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// doGet performs a GET request and reads the whole body. Non-2xx statuses
// are returned as *ErrHTTP with the body preserved.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/plain, application/json, */*")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ErrHTTP{
			StatusCode:  resp.StatusCode,
			Status:      http.StatusText(resp.StatusCode),
			ContentType: ct,
			Body:        string(body),
		}
	}

	return &response{StatusCode: resp.StatusCode, ContentType: ct, Body: body}, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
