// Package stt implements streaming transcription against Deepgram's
// websocket listen API.
package stt

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"voicebridge/core"
)

// Config holds configuration options for the Deepgram session.
type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	Language       string `json:"language"`
	SampleRate     int    `json:"sample_rate"`
	Channels       int    `json:"channels"`
	Punctuate      bool   `json:"punctuate"`
	SmartFormat    bool   `json:"smart_format"`
	InterimResults bool   `json:"interim_results"`
	// EndpointingMs is the silence window, in milliseconds, after which
	// Deepgram finalizes an utterance.
	EndpointingMs int `json:"endpointing_ms"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "wss://api.deepgram.com",
		Model:          "nova-2",
		Language:       "en",
		SampleRate:     16000,
		Channels:       1,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		EndpointingMs:  300,
	}
}

// Service implements convo.Transcriber. One Start call runs one listening
// phase: audio chunks are forwarded to Deepgram and finalized segments are
// collected until speech_final, which flushes the whole utterance to the
// callback.
type Service struct {
	cfg    *Config
	logger *core.Logger

	mu       sync.Mutex
	segments []string
}

func NewService(cfg *Config, logger *core.Logger) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://api.deepgram.com"
	}
	return &Service{
		cfg:    cfg,
		logger: logger.With(map[string]interface{}{"service": "deepgram-stt"}),
	}, nil
}

// Start connects and blocks until ctx is cancelled or the backend fails.
func (s *Service) Start(ctx context.Context, audio <-chan []byte, onUtterance func(text string)) error {
	wsURL, err := s.buildURL()
	if err != nil {
		return fmt.Errorf("deepgram: build url: %w", err)
	}

	headers := map[string][]string{
		"Authorization": {"Token " + s.cfg.APIKey},
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		keepAlive := time.NewTicker(10 * time.Second)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				writeMu.Lock()
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
				writeMu.Unlock()
				return
			case chunk, ok := <-audio:
				if !ok {
					return
				}
				writeMu.Lock()
				err := conn.WriteMessage(websocket.BinaryMessage, chunk)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-keepAlive.C:
				writeMu.Lock()
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
				writeMu.Unlock()
			}
		}
	}()

	// Unblock the read loop when the context ends.
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			<-writerDone
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("deepgram: read: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleMessage(message, onUtterance)
	}
}

// Reset discards partial transcript state between utterances.
func (s *Service) Reset() {
	s.mu.Lock()
	s.segments = nil
	s.mu.Unlock()
}

func (s *Service) buildURL() (string, error) {
	base, err := url.Parse(s.cfg.BaseURL + "/v1/listen")
	if err != nil {
		return "", err
	}
	q := base.Query()
	q.Set("model", s.cfg.Model)
	if s.cfg.Language != "" {
		q.Set("language", s.cfg.Language)
	}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(s.cfg.SampleRate))
	q.Set("channels", strconv.Itoa(s.cfg.Channels))
	q.Set("punctuate", strconv.FormatBool(s.cfg.Punctuate))
	q.Set("smart_format", strconv.FormatBool(s.cfg.SmartFormat))
	q.Set("interim_results", strconv.FormatBool(s.cfg.InterimResults))
	if s.cfg.EndpointingMs > 0 {
		q.Set("endpointing", strconv.Itoa(s.cfg.EndpointingMs))
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (s *Service) handleMessage(message []byte, onUtterance func(text string)) {
	var base struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(message, &base); err != nil {
		s.logger.Warnf("unparseable message: %v", err)
		return
	}

	switch base.Type {
	case "Results":
		var result listenResults
		if err := sonic.Unmarshal(message, &result); err != nil {
			s.logger.Warnf("unparseable results: %v", err)
			return
		}
		s.processResults(result, onUtterance)
	case "UtteranceEnd":
		// Trailing finalize with no speech_final; flush what we have.
		s.flush(onUtterance)
	case "Metadata", "SpeechStarted":
	default:
		s.logger.Debugf("ignoring message type %q", base.Type)
	}
}

func (s *Service) processResults(result listenResults, onUtterance func(text string)) {
	if len(result.Channel.Alternatives) == 0 {
		return
	}
	transcript := strings.TrimSpace(result.Channel.Alternatives[0].Transcript)
	if transcript == "" {
		return
	}

	if result.IsFinal || result.FromFinalize {
		s.mu.Lock()
		s.segments = append(s.segments, transcript)
		s.mu.Unlock()
	}
	if result.SpeechFinal {
		s.flush(onUtterance)
	}
}

func (s *Service) flush(onUtterance func(text string)) {
	s.mu.Lock()
	utterance := strings.Join(s.segments, " ")
	s.segments = nil
	s.mu.Unlock()
	if utterance == "" {
		return
	}
	s.logger.Debugf("utterance finalized: %q", utterance)
	onUtterance(utterance)
}

type listenResults struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize,omitempty"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}
