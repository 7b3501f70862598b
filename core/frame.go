package core

import "sync"

// FrameKind discriminates the outbound frame union.
type FrameKind int

const (
	FrameJSON  FrameKind = iota + 1 // structured control/metadata payload
	FrameBytes                      // fixed-size audio chunk
	FrameInfo                       // bare marker string (END_OF_SENTENCE, END, ...)
)

// Frame is the wire-level unit written to the outbound queue. Only the fields
// of the active variant are populated; the send site switches exhaustively on
// Kind.
type Frame struct {
	Kind    FrameKind
	Payload any    // FrameJSON: structure marshalled at the send site
	Bytes   []byte // FrameBytes: raw audio chunk
	Seq     int    // FrameBytes: chunk position within its sentence
	Info    string // FrameInfo: marker text
}

// JSONFrame wraps a structured payload as a json frame.
func JSONFrame(payload any) Frame {
	return Frame{Kind: FrameJSON, Payload: payload}
}

// BytesFrame wraps an audio chunk with its position within the sentence.
func BytesFrame(chunk []byte, seq int) Frame {
	return Frame{Kind: FrameBytes, Bytes: chunk, Seq: seq}
}

// InfoFrame wraps a bare marker string.
func InfoFrame(marker string) Frame {
	return Frame{Kind: FrameInfo, Info: marker}
}

// FrameQueue is an unbounded FIFO of frames produced by the turn worker and
// drained by the socket loop. Push never blocks; the loop waits on Ready()
// instead of polling.
type FrameQueue struct {
	mu     sync.Mutex
	frames []Frame
	ready  chan struct{}
}

func NewFrameQueue() *FrameQueue {
	return &FrameQueue{ready: make(chan struct{}, 1)}
}

func (q *FrameQueue) Push(f Frame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()
	q.signal()
}

// TryPop removes and returns the head frame without blocking. If frames
// remain afterwards the ready signal is re-armed so a select loop wakes again.
func (q *FrameQueue) TryPop() (Frame, bool) {
	q.mu.Lock()
	if len(q.frames) == 0 {
		q.mu.Unlock()
		return Frame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	remaining := len(q.frames)
	q.mu.Unlock()
	if remaining > 0 {
		q.signal()
	}
	return f, true
}

func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Clear discards all queued frames and returns how many were dropped. Used on
// interruption and turn cancellation so a stale turn's frames never interleave
// with a new turn's.
func (q *FrameQueue) Clear() int {
	q.mu.Lock()
	n := len(q.frames)
	q.frames = nil
	q.mu.Unlock()
	// Drain a pending ready signal so the loop does not wake for nothing.
	select {
	case <-q.ready:
	default:
	}
	return n
}

// Ready returns a channel that receives when the queue transitions to
// non-empty. At most one signal is buffered.
func (q *FrameQueue) Ready() <-chan struct{} {
	return q.ready
}

func (q *FrameQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
