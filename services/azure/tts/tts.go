// Package tts implements sentence synthesis against the Azure Cognitive
// Services speech REST endpoint.
package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicebridge/convo"
	"voicebridge/core"
)

// Config holds configuration for the Azure speech service.
type Config struct {
	SubscriptionKey string `json:"subscription_key"`
	Region          string `json:"region"`
	// Endpoint overrides the region-derived URL, mainly for tests.
	Endpoint string `json:"endpoint"`
	Language string `json:"language"`
	// OutputFormat is the X-Microsoft-OutputFormat header value.
	OutputFormat string        `json:"output_format"`
	Timeout      time.Duration `json:"timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Language:     "en-US",
		OutputFormat: "riff-16khz-16bit-mono-pcm",
		Timeout:      15 * time.Second,
	}
}

// Service implements convo.Synthesizer. Each call is one blocking REST
// round-trip returning the complete audio payload for a sentence.
type Service struct {
	cfg    *Config
	client *http.Client
	logger *core.Logger
}

func NewService(cfg *Config, logger *core.Logger) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.SubscriptionKey == "" {
		return nil, fmt.Errorf("azure tts: subscription key is required")
	}
	if cfg.Endpoint == "" {
		if cfg.Region == "" {
			return nil, fmt.Errorf("azure tts: region is required")
		}
		cfg.Endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(map[string]interface{}{"service": "azure-tts"}),
	}, nil
}

func (s *Service) Synthesize(ctx context.Context, text string, voice convo.VoiceProfile) ([]byte, error) {
	body := buildSSML(s.cfg.Language, text, voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("azure tts: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.cfg.SubscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", s.cfg.OutputFormat)
	req.Header.Set("User-Agent", "voicebridge")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure tts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("azure tts: status %d: %s", resp.StatusCode, string(snippet))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure tts: read audio: %w", err)
	}
	s.logger.Debugf("synthesized %d bytes for %q", len(audio), text)
	return audio, nil
}

// buildSSML wraps the sentence in the speech markup Azure expects. Style and
// prosody elements are emitted only when the profile sets them; an empty
// express-as style makes some voices fall back to a flat rendering.
func buildSSML(language, text string, voice convo.VoiceProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<speak version='1.0' xml:lang="%s" xmlns='http://www.w3.org/2001/10/synthesis' xmlns:mstts='http://www.w3.org/2001/mstts'>`, language)
	fmt.Fprintf(&b, `<voice name="%s">`, voice.VoiceName)
	if voice.Style != "" {
		fmt.Fprintf(&b, `<mstts:express-as style="%s">`, voice.Style)
	}
	fmt.Fprintf(&b, `<prosody rate="%g%%" pitch="%g%%">%s</prosody>`, voice.Rate, voice.Pitch, escapeText(text))
	if voice.Style != "" {
		b.WriteString(`</mstts:express-as>`)
	}
	b.WriteString(`</voice></speak>`)
	return b.String()
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeText(text string) string {
	return textEscaper.Replace(text)
}
