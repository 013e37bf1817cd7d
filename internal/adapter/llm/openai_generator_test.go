package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"policy-rag/internal/adapter/llm"
)

func TestGenerate_SendsChatRequestAndParsesChoice(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"According to the policy, yes."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	g := llm.NewOpenAIGenerator(server.URL, "test-key", "gpt-4o-mini", 5*time.Second)
	resp, err := g.Generate(context.Background(), "Is surgery covered?", 500)

	assert.NoError(t, err)
	assert.Equal(t, "According to the policy, yes.", resp.Text)
	assert.True(t, resp.Done)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	assert.Equal(t, float64(500), gotBody["max_tokens"])
	messages := gotBody["messages"].([]interface{})
	assert.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "Is surgery covered?", messages[1].(map[string]interface{})["content"])
}

func TestGenerate_TruncatedCompletionIsNotDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"partial"},"finish_reason":"length"}]}`))
	}))
	defer server.Close()

	g := llm.NewOpenAIGenerator(server.URL, "", "gpt-4o-mini", 5*time.Second)
	resp, err := g.Generate(context.Background(), "prompt", 10)

	assert.NoError(t, err)
	assert.False(t, resp.Done)
}

func TestGenerate_ErrorStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := llm.NewOpenAIGenerator(server.URL, "", "gpt-4o-mini", 5*time.Second)
	_, err := g.Generate(context.Background(), "prompt", 10)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerate_EmptyChoicesFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	g := llm.NewOpenAIGenerator(server.URL, "", "gpt-4o-mini", 5*time.Second)
	_, err := g.Generate(context.Background(), "prompt", 10)

	assert.Error(t, err)
}

func TestGenerate_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	g := llm.NewOpenAIGenerator(server.URL, "", "gpt-4o-mini", 5*time.Second)
	_, err := g.Generate(context.Background(), "prompt", 10)

	assert.NoError(t, err)
	assert.Empty(t, gotAuth)
}
