package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPConfig configures a REST client shared by the HTTP adapters.
type HTTPConfig struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// NewHTTPClient builds a resty client with bearer auth and JSON defaults.
func NewHTTPClient(cfg HTTPConfig) *resty.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "marksync"
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return c
}

// CheckResponse classifies the result of a resty call. Transport failures
// become ErrNetwork, non-2xx responses a *StatusError. Cancellation of the
// caller's context is returned as is so it is never retried.
func CheckResponse(ctx context.Context, resp *resty.Response, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	kind := KindForStatus(resp.StatusCode())
	if kind == nil {
		return nil
	}
	return &StatusError{
		Status: resp.StatusCode(),
		Body:   strings.TrimSpace(string(resp.Body())),
		Kind:   kind,
	}
}
