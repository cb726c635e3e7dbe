// Package rest holds the resty plumbing shared by the REST exchange adapters.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mmtrade/pkg/errors"

	"github.com/go-resty/resty/v2"
)

const maxErrorBody = 256

// New returns a resty client for baseURL with a request timeout.
func New(baseURL string, timeout time.Duration) *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// GetJSON issues a GET and decodes a 2xx body into out.
func GetJSON(ctx context.Context, c *resty.Client, venue, path string, params map[string]string, out any) error {
	resp, err := c.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return fmt.Errorf("%s request %s: %w", venue, path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s error: status %d: %s", venue, resp.StatusCode(), truncate(resp.Body()))
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(errors.KindMalformed, err, "%s decode %s", venue, path)
	}
	return nil
}

// Close drops idle connections held by c.
func Close(c *resty.Client) {
	if hc := c.GetClient(); hc != nil {
		hc.CloseIdleConnections()
	}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
