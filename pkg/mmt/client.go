// Package mmt is a thin client for the MMT.gg trading-data API.
//
// Every call returns a Response instead of an error. Transport failures are
// reported through negative sentinel statuses.
package mmt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultRegion  = "eu-central-1"
	DefaultTimeout = 8 * time.Second
	APIKeyHeader   = "X-API-Key"
)

// Sentinel statuses for failures that never produced an HTTP status.
const (
	StatusTimeout        = -1
	StatusTransportError = -2
	StatusNoAPIKey       = -3
)

const (
	bodyTimeout  = "Timeout"
	bodyNoAPIKey = "no API key"
)

// Response is a status code paired with the decoded body. Body holds the
// parsed JSON (map[string]any or []any) for 2xx JSON responses and the raw
// text otherwise.
type Response struct {
	Status int
	Body   any
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Text renders the body as a string, JSON-encoding parsed payloads.
func (r Response) Text() string {
	switch b := r.Body.(type) {
	case nil:
		return ""
	case string:
		return b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Sprint(b)
		}
		return string(data)
	}
}

// Preview returns Text truncated to n runes.
func (r Response) Preview(n int) string {
	s := []rune(r.Text())
	if n <= 0 || len(s) <= n {
		return string(s)
	}
	return string(s[:n]) + "..."
}

func (r Response) String() string {
	return strconv.Itoa(r.Status) + ": " + r.Text()
}

// BaseURLForRegion returns the API root for a region, e.g. "eu-central-1".
func BaseURLForRegion(region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		region = DefaultRegion
	}
	return fmt.Sprintf("https://%s.mmt.gg/api/v1", region)
}

// Client issues GET requests against one base URL.
type Client struct {
	http   *resty.Client
	apiKey string
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	baseURL string
	timeout time.Duration
	apiKey  string
	logger  *zap.Logger
}

// WithBaseURL sets the API root. It takes precedence over WithRegion.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithRegion selects the regional API root.
func WithRegion(region string) Option {
	return func(o *options) { o.baseURL = BaseURLForRegion(region) }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = strings.TrimSpace(key) }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates a client for the default region unless overridden.
func New(opts ...Option) *Client {
	o := options{
		baseURL: BaseURLForRegion(DefaultRegion),
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		http:   resty.New().SetBaseURL(strings.TrimRight(o.baseURL, "/")).SetTimeout(o.timeout),
		apiKey: o.apiKey,
		logger: o.logger,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// HasAPIKey reports whether a key is configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// Close releases idle HTTP connections.
func (c *Client) Close() {
	if hc := c.http.GetClient(); hc != nil {
		hc.CloseIdleConnections()
	}
}

// CandlesParams selects an OHLCVT series. From and To are unix seconds.
type CandlesParams struct {
	Exchange string
	Symbol   string
	TF       string
	From     *int64
	To       *int64
}

// VDParams selects a volume-delta series.
type VDParams struct {
	Exchange string
	Symbol   string
	TF       string
	Bucket   int
}

const (
	defaultExchange = "binancef"
	defaultSymbol   = "btc/usd"
	defaultTF       = "1m"
	defaultBucket   = 11
)

// Candles fetches OHLCVT candles.
func (c *Client) Candles(ctx context.Context, p CandlesParams) Response {
	params := map[string]string{
		"exchange": orDefault(p.Exchange, defaultExchange),
		"symbol":   orDefault(p.Symbol, defaultSymbol),
		"tf":       orDefault(p.TF, defaultTF),
	}
	if p.From != nil {
		params["from"] = strconv.FormatInt(*p.From, 10)
	}
	if p.To != nil {
		params["to"] = strconv.FormatInt(*p.To, 10)
	}
	return c.get(ctx, "candles", params)
}

// VolumeDelta fetches net aggressive buy minus sell volume per bucket.
func (c *Client) VolumeDelta(ctx context.Context, p VDParams) Response {
	bucket := p.Bucket
	if bucket <= 0 {
		bucket = defaultBucket
	}
	return c.get(ctx, "vd", map[string]string{
		"exchange": orDefault(p.Exchange, defaultExchange),
		"symbol":   orDefault(p.Symbol, defaultSymbol),
		"tf":       orDefault(p.TF, defaultTF),
		"bucket":   strconv.Itoa(bucket),
	})
}

// Markets lists the available markets.
func (c *Client) Markets(ctx context.Context) Response {
	return c.get(ctx, "markets", nil)
}

// Ping checks connectivity against the markets endpoint.
func (c *Client) Ping(ctx context.Context) Response {
	return c.get(ctx, "markets", nil)
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) Response {
	if c.apiKey == "" {
		return Response{Status: StatusNoAPIKey, Body: bodyNoAPIKey}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(APIKeyHeader, c.apiKey).
		SetQueryParams(params).
		Get("/" + strings.TrimLeft(path, "/"))
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("mmt request timed out", zap.String("path", path))
			return Response{Status: StatusTimeout, Body: bodyTimeout}
		}
		c.logger.Warn("mmt request failed", zap.String("path", path), zap.Error(err))
		return Response{Status: StatusTransportError, Body: err.Error()}
	}

	out := Response{Status: resp.StatusCode(), Body: resp.String()}
	if out.OK() && strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		var parsed any
		if err := json.Unmarshal(resp.Body(), &parsed); err == nil {
			out.Body = parsed
		}
	}
	c.logger.Debug("mmt response", zap.String("path", path), zap.Int("status", out.Status))
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
