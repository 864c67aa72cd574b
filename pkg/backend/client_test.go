package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, threshold int, cooldown time.Duration) *Client {
	return NewClient(Options{
		URL:              url,
		Model:            "test-model",
		Timeout:          time.Second,
		FailureThreshold: threshold,
		Cooldown:         cooldown,
		RequestsPerSec:   1000,
	})
}

func TestGenerateRoundTrip(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(generateResponse{Response: "tus"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, time.Minute)
	out, err := c.Generate(context.Background(), "git sta", "")
	require.NoError(t, err)
	assert.Equal(t, "tus", out)
	assert.Equal(t, "test-model", gotBody.Model)
	assert.False(t, gotBody.Stream)
}

func TestChatRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: "git status"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, time.Minute)
	out, err := c.Chat(context.Background(), chatMessages("git sta", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "git status", out)
}

func TestBreakerShortCircuitsWithoutNetworkIO(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2, time.Hour)

	for i := 0; i < 2; i++ {
		_, err := c.Generate(context.Background(), "x", "")
		require.Error(t, err)
	}
	require.Equal(t, int32(2), hits.Load())

	// breaker is open: further calls never reach the server
	for i := 0; i < 5; i++ {
		_, err := c.Generate(context.Background(), "x", "")
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, StateOpen, c.breaker.State())
}

func TestHalfOpenProbeAfterCooldown(t *testing.T) {
	var hits atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1, time.Minute)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c.breaker.now = clock.now

	_, err := c.Generate(context.Background(), "x", "")
	require.Error(t, err)
	require.Equal(t, int32(1), hits.Load())

	clock.advance(61 * time.Second)
	healthy.Store(true)

	out, err := c.Generate(context.Background(), "x", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, StateClosed, c.breaker.State())
}

func TestTimeoutCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Options{
		URL:              srv.URL,
		Model:            "m",
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 1,
		Cooldown:         time.Hour,
		RequestsPerSec:   1000,
	})

	_, err := c.Generate(context.Background(), "x", "")
	require.Error(t, err)
	assert.Equal(t, StateOpen, c.breaker.State())
}

func TestRequestCompletionAbsorbsFailures(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", 1, time.Hour)
	got := c.RequestCompletion(context.Background(), "git sta", nil, nil, ModeInsert)
	assert.Empty(t, got)
}

func TestCleanResponse(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		input string
		want  string
	}{
		{"suffix append", "tus", "git sta", "git status"},
		{"full replacement", "git status --short", "git sta", "git status --short"},
		{"replacement case-insensitive", "Git Status", "git sta", "Git Status"},
		{"framing stripped", "```tus```", "git sta", "git status"},
		{"eot stripped", "tus<EOT>", "git sta", "git status"},
		{"first line only", "tus\nsecond line", "git sta", "git status"},
		{"whitespace only", "  \n ", "git sta", ""},
		{"space joined", "-la", "ls ", "ls -la"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanResponse(tc.raw, tc.input))
		})
	}
}
