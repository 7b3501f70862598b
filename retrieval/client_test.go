package retrieval

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"

	"voicebridge/core"
)

func testLogger() *core.Logger {
	return core.NewLogger(func(level, msg string, attrs map[string]interface{}) {})
}

func TestClientQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rag_text", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		assert.NoError(t, sonic.Unmarshal(body, &req))
		assert.Equal(t, "medication schedule", req["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Text processed successfully","processed_text":"Dose is 10mg at 9am."}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL}, testLogger())
	assert.NoError(t, err)

	result, err := client.Query(context.Background(), "medication schedule")
	assert.NoError(t, err)
	assert.Equal(t, "Dose is 10mg at 9am.", result)
}

func TestClientQueryServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL}, testLogger())
	assert.NoError(t, err)

	_, err = client.Query(context.Background(), "anything")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, testLogger())
	assert.Error(t, err)
}
