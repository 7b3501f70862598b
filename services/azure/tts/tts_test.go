package tts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"voicebridge/convo"
	"voicebridge/core"
)

func testLogger() *core.Logger {
	return core.NewLogger(func(level, msg string, attrs map[string]interface{}) {})
}

func TestSynthesize(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "application/ssml+xml", r.Header.Get("Content-Type"))
		assert.Equal(t, "riff-16khz-16bit-mono-pcm", r.Header.Get("X-Microsoft-OutputFormat"))

		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte("RIFF-audio"))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.SubscriptionKey = "secret-key"
	cfg.Endpoint = server.URL
	svc, err := NewService(cfg, testLogger())
	assert.NoError(t, err)

	audio, err := svc.Synthesize(context.Background(), "Hello <friend> & welcome.", convo.VoiceProfile{
		VoiceName: "en-US-AvaMultilingualNeural",
		Style:     "cheerful",
		Rate:      5,
	})
	assert.NoError(t, err)
	assert.Equal(t, []byte("RIFF-audio"), audio)

	assert.Contains(t, gotBody, `<voice name="en-US-AvaMultilingualNeural">`)
	assert.Contains(t, gotBody, `<mstts:express-as style="cheerful">`)
	assert.Contains(t, gotBody, `rate="5%"`)
	assert.Contains(t, gotBody, "Hello &lt;friend&gt; &amp; welcome.")
}

func TestSynthesizeOmitsEmptyStyle(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.SubscriptionKey = "k"
	cfg.Endpoint = server.URL
	svc, _ := NewService(cfg, testLogger())

	_, err := svc.Synthesize(context.Background(), "Hi.", convo.VoiceProfile{VoiceName: "en-US-AnaNeural"})
	assert.NoError(t, err)
	assert.NotContains(t, gotBody, "express-as")
}

func TestSynthesizeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.SubscriptionKey = "k"
	cfg.Endpoint = server.URL
	svc, _ := NewService(cfg, testLogger())

	_, err := svc.Synthesize(context.Background(), "Hi.", convo.VoiceProfile{VoiceName: "nope"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(&Config{Region: "eastus"}, testLogger())
	assert.Error(t, err, "missing key")

	_, err = NewService(&Config{SubscriptionKey: "k"}, testLogger())
	assert.Error(t, err, "missing region and endpoint")

	svc, err := NewService(&Config{SubscriptionKey: "k", Region: "eastus"}, testLogger())
	assert.NoError(t, err)
	assert.Equal(t, "https://eastus.tts.speech.microsoft.com/cognitiveservices/v1", svc.cfg.Endpoint)
}
