// Package convo orchestrates one voice conversation: it owns the socket
// loop, the turn worker, and the queue that bridges them.
package convo

import (
	"context"

	"voicebridge/core"
)

// ToolParameter describes one argument of a declarable tool.
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Tool declares one function the model may request during the tool probe.
type Tool struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Completion is the result of a non-streamed model round.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// CompletionStream yields incremental text deltas from the model.
// Recv returns io.EOF when the stream ends cleanly.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// Completer is the language-model collaborator. Complete runs a single
// non-streamed round (used for the tool probe); Stream runs the reply
// generation the turn worker consumes incrementally.
type Completer interface {
	Complete(ctx context.Context, msgs []core.Message, tools []Tool) (*Completion, error)
	Stream(ctx context.Context, msgs []core.Message) (CompletionStream, error)
}

// VoiceProfile carries the vendor voice settings for one voice identity.
type VoiceProfile struct {
	VoiceName string  `json:"voice_name"`
	Style     string  `json:"style,omitempty"`
	Rate      float64 `json:"rate,omitempty"`  // relative speaking rate, 1.0 = neutral
	Pitch     float64 `json:"pitch,omitempty"` // relative pitch shift in percent
}

// Synthesizer turns one sentence into a complete encoded audio payload.
// The call blocks until the payload is ready; it runs on the turn worker
// goroutine, never the socket loop.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)
}

// Transcriber consumes pushed audio chunks and invokes onUtterance once per
// finalized utterance. Start blocks until ctx is cancelled or the backend
// fails; Reset discards any partial transcript state.
type Transcriber interface {
	Start(ctx context.Context, audio <-chan []byte, onUtterance func(text string)) error
	Reset()
}

// Tagger runs background tagging jobs over utterance pairs. Submit never
// blocks and returns a job id; TryResult polls without blocking.
type Tagger interface {
	Submit(pair string, role core.MessageRole, sessionID string) string
	TryResult(jobID string) (string, bool)
}

// Retriever answers the single declarable knowledge tool.
type Retriever interface {
	Query(ctx context.Context, query string) (string, error)
}

// Services bundles the collaborators a Manager is constructed with.
type Services struct {
	Completer   Completer
	Synthesizer Synthesizer
	Transcriber Transcriber
	Tagger      Tagger
	Retriever   Retriever
}

// KnowledgeToolName is the function name declared to the model for the
// retrieval round.
const KnowledgeToolName = "query_knowledge_base"

// KnowledgeTool is the only tool offered during the probe round.
func KnowledgeTool() Tool {
	return Tool{
		Name:        KnowledgeToolName,
		Description: "Look up factual information the assistant was not trained on, such as the user's personal records or recent documents.",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "A short natural-language search query.",
				Required:    true,
			},
		},
	}
}
