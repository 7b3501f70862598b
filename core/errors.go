package core

import (
	"errors"
	"fmt"
)

// ErrPeerDisconnected marks the expected terminal condition of a socket:
// per-session tasks are torn down and queues released, but it is not logged
// as an error.
var ErrPeerDisconnected = errors.New("peer disconnected")

// UnknownVoiceError reports a voice identity with no configured profile.
// The dispatcher skips synthesis for the sentence but still emits its
// boundary marker.
type UnknownVoiceError struct {
	Identity string
}

func (e *UnknownVoiceError) Error() string {
	return fmt.Sprintf("no voice profile for identity %q", e.Identity)
}

// SynthesisError reports a per-sentence synthesis backend failure. Handled
// like UnknownVoiceError: the sentence's audio is skipped, its marker is not.
type SynthesisError struct {
	Sentence string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed for %q: %v", e.Sentence, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// CompletionError reports a model or tool failure mid-turn. It triggers the
// audible fallback path rather than a silent drop.
type CompletionError struct {
	Stage string // "tool-probe", "tool-call", "stream"
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed during %s: %v", e.Stage, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// TranscriptionError reports a transcription collaborator failure; the
// session moves to closed.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
