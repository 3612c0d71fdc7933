// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paperfetch/pkg/types"
)

func TestNewAPIClientRateLimit(t *testing.T) {
	tests := []struct {
		name      string
		cfg       float64
		opts      []ClientOption
		wantLimit rate.Limit
	}{
		{name: "zero disables", cfg: 0},
		{name: "negative disables", cfg: -1},
		{name: "configured rate", cfg: 2.5, wantLimit: 2.5},
		{name: "option disables configured rate", cfg: DefaultRateLimit, opts: []ClientOption{WithRateLimit(0)}},
		{name: "option overrides zero", cfg: 0, opts: []ClientOption{WithRateLimit(3)}, wantLimit: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newAPIClient("http://example.invalid/", types.ResolverConfig{RateLimit: tt.cfg}, tt.opts)
			if tt.wantLimit == 0 {
				assert.Nil(t, c.retrier.Limiter)
				return
			}
			if assert.NotNil(t, c.retrier.Limiter) {
				assert.Equal(t, tt.wantLimit, c.retrier.Limiter.Limit())
			}
		})
	}
}
