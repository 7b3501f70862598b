// Package config loads the deployment settings: JSON file for structure,
// environment for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bytedance/sonic"

	"voicebridge/convo"
	"voicebridge/retrieval"
	azuretts "voicebridge/services/azure/tts"
	deepgramstt "voicebridge/services/deepgram/stt"
	openaillm "voicebridge/services/openai/llm"
	"voicebridge/tagging"
)

// Settings is the full deployment configuration. API keys are never stored
// here; InjectAPIKeys pulls them from the environment after the file loads.
type Settings struct {
	ListenAddr string `json:"listen_addr"`

	Conversation convo.Config         `json:"conversation"`
	LLM          openaillm.Config     `json:"llm"`
	TTS          *azuretts.Config     `json:"tts"`
	STT          *deepgramstt.Config  `json:"stt"`
	Retrieval    retrieval.Config     `json:"retrieval"`
	Tagging      tagging.Config       `json:"tagging"`
}

// APIKeys carries the secrets read from the environment.
type APIKeys struct {
	OpenAI   string
	Azure    string
	Deepgram string
}

func Default() Settings {
	return Settings{
		ListenAddr:   ":8000",
		Conversation: convo.DefaultConfig(),
		LLM:          openaillm.DefaultConfig(),
		TTS:          azuretts.DefaultConfig(),
		STT:          deepgramstt.DefaultConfig(),
		Retrieval:    retrieval.DefaultConfig(),
		Tagging:      tagging.DefaultConfig(),
	}
}

// FromFile loads settings from a JSON file layered over the defaults.
func FromFile(path string) (Settings, error) {
	settings := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := sonic.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return settings, nil
}

// KeysFromEnv reads the provider secrets from the environment.
func KeysFromEnv() APIKeys {
	return APIKeys{
		OpenAI:   GetEnv("OPENAI_API_KEY", ""),
		Azure:    GetEnv("AZURE_SPEECH_KEY", ""),
		Deepgram: GetEnv("DEEPGRAM_API_KEY", ""),
	}
}

// InjectAPIKeys copies the environment secrets into the service configs.
func (s *Settings) InjectAPIKeys(keys APIKeys) {
	s.LLM.APIKey = keys.OpenAI
	if s.TTS != nil {
		s.TTS.SubscriptionKey = keys.Azure
		if s.TTS.Region == "" {
			s.TTS.Region = GetEnv("AZURE_SPEECH_REGION", "")
		}
	}
	if s.STT != nil {
		s.STT.APIKey = keys.Deepgram
	}
}

// GetEnv gets an environment variable with a default fallback.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt gets an environment variable as integer with a default fallback.
func GetEnvAsInt(key string, defaultValue int) int {
	valStr := GetEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}
