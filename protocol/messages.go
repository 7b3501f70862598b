package protocol

// ResponseType enumerates the structured messages sent to the peer.
type ResponseType string

const (
	// TypeResponse carries one synthesized sentence (web devices: full audio payload).
	TypeResponse ResponseType = "response"
	// TypeInput echoes the accepted user utterance back to web clients.
	TypeInput ResponseType = "input"
	// TypeTask delivers a completed tagging-job result.
	TypeTask ResponseType = "task"
	// TypeWarning carries idle-watchdog notices.
	TypeWarning ResponseType = "warning"
)

// Boundary marks a sentence's position within a turn's audio stream.
type Boundary string

const (
	BoundaryStart Boundary = "start"
	BoundaryMid   Boundary = "mid"
	BoundaryEnd   Boundary = "end"
)

// Plain-text control markers sent outside the structured envelope.
const (
	MarkerStartOfAudio  = "start_of_audio"
	MarkerEndOfAudio    = "end_of_audio"
	MarkerEndOfSentence = "END_OF_SENTENCE"
	MarkerEndOfTurn     = "END"
)

// Response is the structured JSON frame written to the socket.
type Response struct {
	Type      ResponseType `json:"type"`
	AudioData *string      `json:"audio_data"` // base64 payload; null when the frame carries no audio
	TextData  string       `json:"text_data"`
	Boundary  Boundary     `json:"boundary,omitempty"`
	TaskID    string       `json:"task_id,omitempty"`
}

// ControlFrame is an inbound JSON control message. Fields are pointers so a
// peer can set any subset; absent fields mean "no change".
type ControlFrame struct {
	IsEnding        *bool `json:"is_ending,omitempty"`
	IsInterrupted   *bool `json:"is_interrupted,omitempty"`
	IsReplying      *bool `json:"is_replying,omitempty"`
	IsEndOfSentence *bool `json:"is_end_of_sentence,omitempty"`
}

func (c *ControlFrame) Ending() bool        { return c.IsEnding != nil && *c.IsEnding }
func (c *ControlFrame) Interrupted() bool   { return c.IsInterrupted != nil && *c.IsInterrupted }
func (c *ControlFrame) StopReplying() bool  { return c.IsReplying != nil && !*c.IsReplying }
func (c *ControlFrame) EndOfSentence() bool { return c.IsEndOfSentence != nil && *c.IsEndOfSentence }
