package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":             {err: nil, want: false},
		"network":         {err: ErrNetwork, want: true},
		"wrapped network": {err: fmt.Errorf("list raindrops: %w", ErrNetwork), want: true},
		"rate limited":    {err: &StatusError{Status: 429, Kind: ErrRateLimited}, want: true},
		"auth":            {err: ErrAuth, want: false},
		"not found":       {err: ErrNotFound, want: false},
		"plain":           {err: errors.New("boom"), want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestKindForStatus(t *testing.T) {
	tests := map[int]error{
		http.StatusOK:                  nil,
		http.StatusCreated:             nil,
		http.StatusUnauthorized:        ErrAuth,
		http.StatusForbidden:           ErrAuth,
		http.StatusNotFound:            ErrNotFound,
		http.StatusTooManyRequests:     ErrRateLimited,
		http.StatusBadGateway:          ErrNetwork,
		http.StatusServiceUnavailable:  ErrNetwork,
		http.StatusBadRequest:          ErrInvalid,
		http.StatusUnprocessableEntity: ErrInvalid,
	}

	for status, want := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			assert.Equal(t, want, KindForStatus(status))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Status: http.StatusUnauthorized, Kind: ErrAuth}

	assert.ErrorIs(t, err, ErrAuth)
	assert.True(t, IsFatal(fmt.Errorf("ping: %w", err)))
	assert.Contains(t, err.Error(), "http 401: Unauthorized")
}
