// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RetryDelay is the fixed pause between retry attempts. The upstream
// services here are low-volume, so a short flat delay beats backoff.
// Tests override this to avoid real sleeps.
var RetryDelay = 3 * time.Second

const defaultMaxRetries = 2

// retryable reports whether a response status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request, retrying transport errors and
// retryable statuses (429, 5xx) up to maxRetries additional attempts
// with a fixed RetryDelay between them.
//
// When maxRetries is negative the default (2) is used; zero disables
// retries. Before each retry the previous response body is drained and
// closed. If the context is cancelled during the wait the function
// returns ctx.Err(). After exhausting retries the last response or
// transport error is returned as-is for the caller to classify.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= maxRetries {
			return resp, err
		}

		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(RetryDelay):
		}
	}
}

// NewClient builds an HTTP client with the given timeout, optionally
// routed through an explicit proxy.
func NewClient(timeout time.Duration, proxyURL string) *http.Client {
	client := &http.Client{Timeout: timeout}
	if proxyURL != "" {
		if transport := proxyTransport(proxyURL); transport != nil {
			client.Transport = transport
		}
	}
	return client
}
