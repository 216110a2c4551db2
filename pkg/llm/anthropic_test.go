package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicBackend_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"{\"ok\":true}"}],
			"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":4}}`)
	}))
	defer server.Close()

	b := newAnthropicBackend("sk-ant-test", server.URL+"/", "claude-test")
	reply, err := b.complete(context.Background(), prompt{System: "sys", User: "usr", Image: []byte{0x89, 'P', 'N', 'G'}, MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, reply)

	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, 64, body["max_tokens"])
	system := body["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "sys", system[0].(map[string]any)["text"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	parts := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[0].(map[string]any)
	assert.Equal(t, "image", img["type"])
	source := img["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
	assert.Equal(t, "usr", parts[1].(map[string]any)["text"])
}

func TestAnthropicBackend_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad image"}}`)
	}))
	defer server.Close()

	_, err := newAnthropicBackend("k", server.URL+"/", "m").complete(context.Background(), prompt{User: "u", MaxTokens: 8})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ProviderAnthropic, apiErr.Provider)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable())
}

func TestAnthropicBackend_NoTextBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_2","type":"message","role":"assistant","model":"m","content":[],
			"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":1,"output_tokens":0}}`)
	}))
	defer server.Close()

	_, err := newAnthropicBackend("k", server.URL+"/", "m").complete(context.Background(), prompt{User: "u", MaxTokens: 8})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
}
