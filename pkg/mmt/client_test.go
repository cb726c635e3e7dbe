package mmt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	path   string
	query  url.Values
	apiKey string
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, chan recorded, *atomic.Int32) {
	t.Helper()
	reqs := make(chan recorded, 8)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		reqs <- recorded{path: r.URL.Path, query: r.URL.Query(), apiKey: r.Header.Get(APIKeyHeader)}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, reqs, &hits
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func TestEmptyKeySendsNoRequest(t *testing.T) {
	srv, _, hits := newServer(t, jsonHandler(`{}`))
	c := New(WithBaseURL(srv.URL), WithAPIKey("  "))

	for _, resp := range []Response{
		c.Ping(context.Background()),
		c.Markets(context.Background()),
		c.Candles(context.Background(), CandlesParams{}),
		c.VolumeDelta(context.Background(), VDParams{}),
	} {
		assert.Equal(t, StatusNoAPIKey, resp.Status)
		assert.Equal(t, "no API key", resp.Body)
	}
	assert.Equal(t, int32(0), hits.Load())
	assert.False(t, c.HasAPIKey())
}

func TestMarketsParsesJSON(t *testing.T) {
	srv, reqs, _ := newServer(t, jsonHandler(`{"markets":["binancef:btc/usd"]}`))
	c := New(WithBaseURL(srv.URL+"/api/v1/"), WithAPIKey("secret"))

	resp := c.Markets(context.Background())
	require.Equal(t, http.StatusOK, resp.Status)
	body, ok := resp.Body.(map[string]any)
	require.True(t, ok, "body should be parsed JSON, got %T", resp.Body)
	assert.Equal(t, []any{"binancef:btc/usd"}, body["markets"])

	r := <-reqs
	assert.Equal(t, "/api/v1/markets", r.path)
	assert.Equal(t, "secret", r.apiKey)
}

func TestCandlesQuery(t *testing.T) {
	srv, reqs, _ := newServer(t, jsonHandler(`[[1,2,3,4,5,6,7]]`))
	c := New(WithBaseURL(srv.URL), WithAPIKey("k"))

	from, to := int64(1700000000), int64(1700003600)
	resp := c.Candles(context.Background(), CandlesParams{From: &from, To: &to})
	require.True(t, resp.OK())
	assert.IsType(t, []any{}, resp.Body)

	r := <-reqs
	assert.Equal(t, "/candles", r.path)
	assert.Equal(t, "binancef", r.query.Get("exchange"))
	assert.Equal(t, "btc/usd", r.query.Get("symbol"))
	assert.Equal(t, "1m", r.query.Get("tf"))
	assert.Equal(t, "1700000000", r.query.Get("from"))
	assert.Equal(t, "1700003600", r.query.Get("to"))
}

func TestVolumeDeltaQuery(t *testing.T) {
	srv, reqs, _ := newServer(t, jsonHandler(`{"vd":[]}`))
	c := New(WithBaseURL(srv.URL), WithAPIKey("k"))

	resp := c.VolumeDelta(context.Background(), VDParams{Exchange: "bybitf", Symbol: "eth/usd", TF: "5m"})
	require.True(t, resp.OK())

	r := <-reqs
	assert.Equal(t, "/vd", r.path)
	assert.Equal(t, "bybitf", r.query.Get("exchange"))
	assert.Equal(t, "eth/usd", r.query.Get("symbol"))
	assert.Equal(t, "5m", r.query.Get("tf"))
	assert.Equal(t, "11", r.query.Get("bucket"))
}

func TestNonSuccessReturnsText(t *testing.T) {
	srv, _, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	})
	c := New(WithBaseURL(srv.URL), WithAPIKey("bad"))

	resp := c.Ping(context.Background())
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, `{"error":"invalid key"}`, resp.Body)
	assert.False(t, resp.OK())
}

func TestPlainTextBody(t *testing.T) {
	srv, _, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	})
	c := New(WithBaseURL(srv.URL), WithAPIKey("k"))

	resp := c.Ping(context.Background())
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "pong", resp.Body)
	assert.Equal(t, "200: pong", resp.String())
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv, _, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c := New(WithBaseURL(srv.URL), WithAPIKey("k"), WithTimeout(50*time.Millisecond))

	resp := c.Ping(context.Background())
	assert.Equal(t, StatusTimeout, resp.Status)
	assert.Equal(t, "Timeout", resp.Body)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(WithBaseURL(base), WithAPIKey("k"), WithTimeout(2*time.Second))
	resp := c.Markets(context.Background())
	assert.Equal(t, StatusTransportError, resp.Status)
	assert.NotEmpty(t, resp.Body)
}

func TestBaseURLForRegion(t *testing.T) {
	assert.Equal(t, "https://eu-central-1.mmt.gg/api/v1", BaseURLForRegion(""))
	assert.Equal(t, "https://us-east-1.mmt.gg/api/v1", BaseURLForRegion("us-east-1"))
	assert.Equal(t, "https://ap-northeast-1.mmt.gg/api/v1", New(WithRegion("ap-northeast-1")).BaseURL())
}

func TestPreview(t *testing.T) {
	r := Response{Status: 200, Body: map[string]any{"a": 1}}
	assert.Equal(t, `{"a":1}`, r.Text())
	assert.Equal(t, `{"a"...`, r.Preview(4))
	assert.Equal(t, "", Response{}.Text())
}
