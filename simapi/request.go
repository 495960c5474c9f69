package simapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"

	"github.com/ethereum-optimism/infra/op-hivesim/metrics"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

const maxRetryDelay = 5 * time.Second

// StatusError is returned when the simulation API answers with an error status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// Temporary reports whether the status indicates a transient condition of the API
// server or a proxy in front of it.
func (e *StatusError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// requestFunc creates a fresh request for every attempt.
type requestFunc func(ctx context.Context) (*http.Request, error)

func (c *Client) newRequest(method, url string, body any) (requestFunc, error) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
	}
	return c.newRawRequest(method, url, "application/json", data), nil
}

func (c *Client) newRawRequest(method, url, contentType string, data []byte) requestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if len(data) > 0 {
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			req.Header.Set("Content-Type", contentType)
		}
		return req, nil
	}
}

// do performs the request, retrying transient failures with exponential backoff.
func (c *Client) do(ctx context.Context, op string, newReq requestFunc, result any) error {
	backoff := retry.NewExponential(c.retryDelay)
	backoff = retry.WithCappedDuration(maxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(c.retries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			metrics.RecordAPIRetry(op)
			c.log.Debug("Retrying simulation API request", "op", op, "attempt", attempt+1)
		}
		attempt++

		err := c.roundTrip(ctx, newReq, result)
		if err != nil && ctx.Err() == nil && isTransient(err) {
			c.log.Warn("Simulation API request failed", "op", op, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
	metrics.RecordAPIRequest(op, err)
	if err != nil {
		return errors.Wrapf(err, "simulation API %s", op)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, newReq requestFunc, result any) error {
	req, err := newReq(ctx)
	if err != nil {
		return err
	}
	c.log.Trace("Simulation API request", "method", req.Method, "url", req.URL)

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400:
		return readStatusError(resp)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if result == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("invalid response (status %d): %w", resp.StatusCode, err)
		}
		return nil
	default:
		// 1xx and 3xx should never happen.
		return fmt.Errorf("invalid response status code %d", resp.StatusCode)
	}
}

func readStatusError(resp *http.Response) error {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var apiErr types.APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return &StatusError{StatusCode: resp.StatusCode, Message: "can't decode error message: " + err.Error()}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
}

// transportError marks failures to reach the API at all.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Temporary()
}
