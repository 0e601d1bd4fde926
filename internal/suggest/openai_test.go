package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkmind/internal/domain"
	"linkmind/internal/metadata"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func chatReply(t *testing.T, content string, tokens int) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"total_tokens": tokens},
	})
	require.NoError(t, err)
	return body
}

func TestOpenAIClient_Suggest(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write(chatReply(t, `["go", "programming", "concurrency"]`, 120))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-model", "test-key", testLogger())

	md := metadata.Metadata{Title: "Go Concurrency Patterns", Domain: "blog.golang.org"}
	s, err := client.Suggest(context.Background(), md, 1, domain.PlanFree)
	require.NoError(t, err)

	assert.Equal(t, []string{"go", "programming", "concurrency"}, s.Tags)
	assert.False(t, s.FromCache)
	assert.Equal(t, 120, s.TokensUsed)
	assert.Greater(t, s.Cost, 0.0)

	// Same metadata again: served from the memo, no second call.
	s2, err := client.Suggest(context.Background(), md, 1, domain.PlanFree)
	require.NoError(t, err)
	assert.True(t, s2.FromCache)
	assert.Equal(t, s.Tags, s2.Tags)
	assert.Zero(t, s2.TokensUsed)
	assert.Equal(t, 1, calls)
}

func TestOpenAIClient_FencedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatReply(t, "```json\n[\"news\", \"ai\"]\n```", 50))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-model", "test-key", testLogger())

	s, err := client.Suggest(context.Background(), metadata.Metadata{Title: "x"}, 1, domain.PlanFree)
	require.NoError(t, err)
	assert.Equal(t, []string{"news", "ai"}, s.Tags)
}

func TestOpenAIClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-model", "test-key", testLogger())

	_, err := client.Suggest(context.Background(), metadata.Metadata{Title: "x"}, 1, domain.PlanFree)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestOpenAIClient_InsufficientQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":"insufficient_quota","message":"You exceeded your current quota"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-model", "test-key", testLogger())

	_, err := client.Suggest(context.Background(), metadata.Metadata{Title: "x"}, 1, domain.PlanFree)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestOpenAIClient_OtherProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-model", "test-key", testLogger())

	_, err := client.Suggest(context.Background(), metadata.Metadata{Title: "x"}, 1, domain.PlanFree)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrResourceExhausted)
}

func TestOpenAIClient_MalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatReply(t, "sorry, I can't help with that", 10))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-model", "test-key", testLogger())

	_, err := client.Suggest(context.Background(), metadata.Metadata{Title: "x"}, 1, domain.PlanFree)
	assert.Error(t, err)
}

func TestParseTagArray(t *testing.T) {
	tags, err := parseTagArray(`["a", "b"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)

	tags, err = parseTagArray("Here you go: [\"a\"] hope that helps")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tags)

	_, err = parseTagArray("no array in sight")
	assert.Error(t, err)

	_, err = parseTagArray(`[1, 2, 3]`)
	assert.Error(t, err, "non-string elements are rejected")
}
