// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the metadata service clients.
package httputil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// maxRetryAfter caps how long a Retry-After header can make us wait.
const maxRetryAfter = 2 * time.Minute

const defaultMaxRetries = 3

// Retrier sends requests through an optional rate limiter and retries
// HTTP 429 (Too Many Requests) with exponential backoff.
type Retrier struct {
	Client     *http.Client
	Limiter    *rate.Limiter
	MaxRetries int
	Logger     *slog.Logger
}

// NewRetrier returns a Retrier limited to perSecond requests per second.
// A non-positive perSecond disables limiting.
func NewRetrier(client *http.Client, perSecond float64, maxRetries int) *Retrier {
	r := &Retrier{Client: client, MaxRetries: maxRetries}
	if perSecond > 0 {
		r.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return r
}

// Do executes req and retries while the server answers 429. The delay
// starts at RetryBaseDelay and doubles each attempt unless the response
// carries a Retry-After header in seconds. After exhausting retries the last
// 429 response is returned so the caller can inspect it. Cancelling ctx
// during a limiter or backoff wait returns ctx.Err().
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	for attempt := 0; ; attempt++ {
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		backoff := backoffFor(resp, attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if r.Logger != nil {
			r.Logger.Warn("rate limited, backing off",
				"host", req.URL.Host, "wait", backoff, "attempt", attempt+1, "max", maxRetries)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func backoffFor(resp *http.Response, attempt int) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			if d > maxRetryAfter {
				d = maxRetryAfter
			}
			return d
		}
	}
	return RetryBaseDelay << attempt
}
