package stt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"voicebridge/core"
)

func newTestService() *Service {
	return &Service{
		cfg:    DefaultConfig(),
		logger: core.NewLogger(func(level, msg string, attrs map[string]interface{}) {}),
	}
}

func resultMsg(transcript string, isFinal, speechFinal bool) []byte {
	b := `{"type":"Results","is_final":` + boolJSON(isFinal) +
		`,"speech_final":` + boolJSON(speechFinal) +
		`,"channel":{"alternatives":[{"transcript":"` + transcript + `","confidence":0.98}]}}`
	return []byte(b)
}

func boolJSON(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func TestHandleMessageCollectsFinals(t *testing.T) {
	svc := newTestService()
	var utterances []string
	collect := func(text string) { utterances = append(utterances, text) }

	// Interim results never reach the callback.
	svc.handleMessage(resultMsg("how", false, false), collect)
	assert.Empty(t, utterances)

	// Finals accumulate until speech_final flushes the whole utterance.
	svc.handleMessage(resultMsg("how are", true, false), collect)
	assert.Empty(t, utterances)
	svc.handleMessage(resultMsg("you today", true, true), collect)
	assert.Equal(t, []string{"how are you today"}, utterances)

	// The collector is empty again afterwards.
	svc.handleMessage(resultMsg("next", true, true), collect)
	assert.Equal(t, []string{"how are you today", "next"}, utterances)
}

func TestHandleMessageUtteranceEndFlushes(t *testing.T) {
	svc := newTestService()
	var utterances []string
	collect := func(text string) { utterances = append(utterances, text) }

	svc.handleMessage(resultMsg("trailing words", true, false), collect)
	svc.handleMessage([]byte(`{"type":"UtteranceEnd","last_word_end":2.1}`), collect)
	assert.Equal(t, []string{"trailing words"}, utterances)

	// A second UtteranceEnd with nothing collected is a no-op.
	svc.handleMessage([]byte(`{"type":"UtteranceEnd"}`), collect)
	assert.Len(t, utterances, 1)
}

func TestHandleMessageIgnoresEmptyAndUnknown(t *testing.T) {
	svc := newTestService()
	called := false
	collect := func(string) { called = true }

	svc.handleMessage(resultMsg("", true, true), collect)
	svc.handleMessage([]byte(`{"type":"Metadata"}`), collect)
	svc.handleMessage([]byte(`{"type":"Bogus"}`), collect)
	svc.handleMessage([]byte(`not json`), collect)
	assert.False(t, called)
}

func TestReset(t *testing.T) {
	svc := newTestService()
	var utterances []string
	collect := func(text string) { utterances = append(utterances, text) }

	svc.handleMessage(resultMsg("stale partial", true, false), collect)
	svc.Reset()
	svc.handleMessage(resultMsg("fresh start", true, true), collect)
	assert.Equal(t, []string{"fresh start"}, utterances)
}

func TestBuildURL(t *testing.T) {
	svc := newTestService()
	svc.cfg.APIKey = "k"

	u, err := svc.buildURL()
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "wss://api.deepgram.com/v1/listen?"))
	assert.Contains(t, u, "model=nova-2")
	assert.Contains(t, u, "encoding=linear16")
	assert.Contains(t, u, "sample_rate=16000")
	assert.Contains(t, u, "punctuate=true")
	assert.Contains(t, u, "endpointing=300")
}
