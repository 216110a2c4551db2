package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIBackend_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"qwen2.5-vl-7b-instruct",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	b := newOpenAIBackend("sk-test", server.URL+"/v1", "")
	reply, err := b.complete(context.Background(), prompt{System: "sys", User: "usr", Image: []byte{0x89, 'P', 'N', 'G'}, MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, reply)

	assert.Equal(t, "qwen2.5-vl-7b-instruct", body["model"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[0].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/png;base64,"))
	assert.Equal(t, "usr", parts[1].(map[string]any)["text"])
}

func TestOpenAIBackend_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer server.Close()

	_, err := newOpenAIBackend("k", server.URL, "m").complete(context.Background(), prompt{User: "u"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, apiErr.Retryable())
}
