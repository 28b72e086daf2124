package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultClient is the HTTP client used when callers pass nil. Source
// tarballs run to tens of megabytes, so the timeout is generous.
var DefaultClient = &http.Client{Timeout: 5 * time.Minute}

// Fetch downloads url and returns the response body. Server-side failures
// (5xx) and transport errors are retried with backoff; client errors (4xx)
// fail immediately.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = DefaultClient
	}

	var body []byte
	err := RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return Retryable(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return Retryable(fmt.Errorf("GET %s: %s", url, resp.Status))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("GET %s: %s", url, resp.Status)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return Retryable(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Exists issues a HEAD request and reports whether url resolves to an
// object. A 404 is a definitive "no"; any other non-2xx status is an error
// so callers never mistake an outage for a missing artifact.
func Exists(ctx context.Context, client *http.Client, url string) (bool, error) {
	if client == nil {
		client = DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, fmt.Errorf("HEAD %s: %s", url, resp.Status)
	}
}
