package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "k", Model: "llama3-8b-8192", Temperature: 0.7})
	raw, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "how do I book?"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`, string(raw))

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "service marketplace")
	assert.Equal(t, "how do I book?", got.Messages[1].Content)
	assert.Equal(t, "llama3-8b-8192", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
}

func TestCompleteFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "k", Model: "m"})
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.ErrorContains(t, err, "429")

	_, err = c.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMessages)

	noKey := NewClient(Config{URL: srv.URL, Model: "m"})
	_, err = noKey.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}
