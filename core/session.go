package core

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type DeviceKind string

const (
	DeviceWeb      DeviceKind = "web"      // renders batched JSON-encoded audio
	DeviceHardware DeviceKind = "hardware" // expects raw chunked binary frames
)

// Session holds per-connection conversation state. The socket loop owns it;
// the turn worker only reads the open/replying flags, so those are atomics.
type Session struct {
	ID     string
	Device DeviceKind

	open          atomic.Bool
	replying      atomic.Bool
	interrupted   atomic.Bool
	endOfSentence atomic.Bool // arms the eager per-sentence drain in the multiplexer

	mu            sync.Mutex
	transcription string
}

func NewSession(device DeviceKind) *Session {
	s := &Session{
		ID:     uuid.New().String(),
		Device: device,
	}
	s.open.Store(true)
	s.endOfSentence.Store(true)
	return s
}

func (s *Session) IsOpen() bool  { return s.open.Load() }
func (s *Session) CloseConn()    { s.open.Store(false) }
func (s *Session) IsReplying() bool { return s.replying.Load() }

func (s *Session) SetReplying(v bool) { s.replying.Store(v) }

func (s *Session) MarkInterrupted() { s.interrupted.Store(true) }

// ConsumeInterrupted reports and clears the interruption flag in one step.
func (s *Session) ConsumeInterrupted() bool {
	return s.interrupted.Swap(false)
}

func (s *Session) ArmSentenceBatch()    { s.endOfSentence.Store(true) }
func (s *Session) DisarmSentenceBatch() { s.endOfSentence.Store(false) }
func (s *Session) SentenceBatchArmed() bool {
	return s.endOfSentence.Load()
}

// SetTranscription records a finalized utterance from the transcription
// collaborator. Called from the transcriber's callback goroutine.
func (s *Session) SetTranscription(text string) {
	s.mu.Lock()
	s.transcription = text
	s.mu.Unlock()
}

// TakeTranscription returns the pending finalized utterance and clears it.
func (s *Session) TakeTranscription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.transcription
	s.transcription = ""
	return t
}

func (s *Session) Transcription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcription
}
