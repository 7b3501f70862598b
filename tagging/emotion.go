package tagging

import (
	"context"
	"fmt"

	"voicebridge/core"
)

// JSONCompleter runs a single model round constrained to a JSON object.
// *llm.Service satisfies it.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, msgs []core.Message) (string, error)
}

const emotionPrompt = `You analyze the emotional tone of a conversation turn.
Given the previous utterance and the current one, return a JSON object with
"emotion" (one of: joy, sadness, anger, fear, surprise, curiosity, neutral),
"score" (0 to 1), and "summary" (one short sentence). Judge only the current
utterance; the previous one is context.`

// EmotionClassifier tags each utterance pair with the speaker's emotional
// tone via a JSON-mode model round.
type EmotionClassifier struct {
	completer JSONCompleter
}

func NewEmotionClassifier(completer JSONCompleter) *EmotionClassifier {
	return &EmotionClassifier{completer: completer}
}

func (c *EmotionClassifier) Classify(ctx context.Context, pair string, role core.MessageRole, sessionID string) (string, error) {
	msgs := []core.Message{
		{Role: core.MessageRoleSystem, Content: emotionPrompt},
		{Role: core.MessageRoleUser, Content: fmt.Sprintf("Speaker role: %s\nSession: %s\n\n%s", role, sessionID, pair)},
	}
	result, err := c.completer.CompleteJSON(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("emotion classify: %w", err)
	}
	return result, nil
}
