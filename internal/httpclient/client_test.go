package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SuccessParsesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(nil)
	res := c.Do(context.Background(), "POST", srv.URL, map[string]interface{}{"x": 1})
	require.True(t, res.Success)
	body, ok := res.Body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, body["ok"])
}

func TestDo_NonTwoxxIsFailureNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(nil)
	res := c.Do(context.Background(), "POST", srv.URL, nil)
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.ErrorText)
}

func TestDo_RateLimitDeniedIsFailure(t *testing.T) {
	deny := NewLimiterFunc(func(ctx context.Context, host string) (bool, error) { return false, nil })
	c := New(deny)
	res := c.Do(context.Background(), "POST", "http://example.invalid", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorText, "rate limit")
}

func TestDo_TransportErrorIsFailureNotPanic(t *testing.T) {
	c := New(nil)
	res := c.Do(context.Background(), "POST", "http://127.0.0.1:0", nil)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ErrorText)
}
