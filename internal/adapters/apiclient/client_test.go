package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposurewatch/internal/tracing"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{
		Provider:   "test",
		BaseURL:    srv.URL + "/api",
		Credential: "secret",
		Auth:       BearerAuth,
		HTTPClient: srv.Client(),
		Tracer:     tracing.NoOp(),
	})
	require.NoError(t, err)
	return c
}

func TestClient_Do(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/things/", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("includeIcons"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body["customerId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	var out struct {
		ID FlexString `json:"id"`
	}
	err := newTestClient(t, srv).Do(context.Background(), Request{
		Endpoint: "create_thing",
		Method:   http.MethodPost,
		Path:     "v1/things/",
		Query:    url.Values{"includeIcons": {"false"}},
		Body:     map[string]string{"customerId": "abc"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.ID.String())
}

func TestClient_DoReturnsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Do(context.Background(), Request{
		Endpoint: "list", Method: http.MethodGet, Path: "v1/things",
	}, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "slow down", apiErr.Body)
	assert.Equal(t, "test", apiErr.Provider)
}

func TestClient_DoDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := newTestClient(t, srv).Do(context.Background(), Request{
		Endpoint: "list", Method: http.MethodGet, Path: "v1/things",
	}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode list response")
}

func TestNew_RequiresConfiguration(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Provider: "p", BaseURL: "http://x", Auth: BearerAuth, Tracer: tracing.NoOp()})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{Provider: "p", Credential: "k", Auth: BearerAuth, Tracer: tracing.NoOp()})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFlexString(t *testing.T) {
	t.Parallel()

	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 17, "b": "40-45", "c": null}`), &v))
	assert.Equal(t, "17", v.A.String())
	assert.Equal(t, 17, v.A.Int())
	assert.Equal(t, "40-45", v.B.String())
	assert.Equal(t, 0, v.B.Int())
	assert.Equal(t, "", v.C.String())
}
