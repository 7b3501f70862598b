package convo

import (
	"context"
	"fmt"
	"io"
	"sync"

	"voicebridge/core"
)

// Fakes shared across the package tests.

type fakeSynth struct {
	mu      sync.Mutex
	payload []byte
	err     error
	calls   []string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string, _ VoiceProfile) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeSynth) sentences() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// gatedSynth parks every Synthesize call until gate closes, signalling
// entered once a call is in flight.
type gatedSynth struct {
	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
	payload []byte
	calls   []string
}

func newGatedSynth(payload []byte) *gatedSynth {
	return &gatedSynth{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
		payload: payload,
	}
}

func (f *gatedSynth) Synthesize(_ context.Context, text string, _ VoiceProfile) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	select {
	case f.entered <- struct{}{}:
	default:
	}
	<-f.gate
	return f.payload, nil
}

func (f *gatedSynth) release() { close(f.gate) }

type fakeTagger struct {
	mu        sync.Mutex
	submitted []string
	roles     []core.MessageRole
	results   map[string]string
}

func (f *fakeTagger) Submit(pair string, role core.MessageRole, _ string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("job-%d", len(f.submitted))
	f.submitted = append(f.submitted, pair)
	f.roles = append(f.roles, role)
	return id
}

func (f *fakeTagger) TryResult(jobID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.results[jobID]
	if ok {
		delete(f.results, jobID)
	}
	return result, ok
}

func (f *fakeTagger) setResult(jobID, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string]string)
	}
	f.results[jobID] = result
}

func (f *fakeTagger) pairs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

type fakeRetriever struct {
	mu      sync.Mutex
	result  string
	err     error
	queries []string
}

func (f *fakeRetriever) Query(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

// scriptedStream plays back a fixed sequence of deltas, then an optional
// error, then io.EOF.
type scriptedStream struct {
	deltas []string
	failAt error
	i      int
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.i < len(s.deltas) {
		delta := s.deltas[s.i]
		s.i++
		return delta, nil
	}
	if s.failAt != nil {
		return "", s.failAt
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type fakeCompleter struct {
	mu          sync.Mutex
	completion  *Completion
	completeErr error
	stream      *scriptedStream
	streamQueue []*scriptedStream // consumed before stream, one per call
	streamErr   error

	completeCalls int
	streamMsgs    [][]core.Message
}

func (f *fakeCompleter) Complete(_ context.Context, _ []core.Message, _ []Tool) (*Completion, error) {
	f.mu.Lock()
	f.completeCalls++
	f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	if f.completion == nil {
		return &Completion{}, nil
	}
	return f.completion, nil
}

func (f *fakeCompleter) Stream(_ context.Context, msgs []core.Message) (CompletionStream, error) {
	f.mu.Lock()
	f.streamMsgs = append(f.streamMsgs, msgs)
	var next *scriptedStream
	if len(f.streamQueue) > 0 {
		next = f.streamQueue[0]
		f.streamQueue = f.streamQueue[1:]
	} else {
		next = f.stream
	}
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if next == nil {
		next = &scriptedStream{}
	}
	return next, nil
}

func (f *fakeCompleter) lastStreamMsgs() []core.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streamMsgs) == 0 {
		return nil
	}
	return f.streamMsgs[len(f.streamMsgs)-1]
}

// blockingTranscriber parks until its context ends and lets tests trigger
// utterances by hand.
type blockingTranscriber struct {
	mu       sync.Mutex
	onUtter  func(string)
	resets   int
	startErr error
}

func (f *blockingTranscriber) Start(ctx context.Context, _ <-chan []byte, onUtterance func(string)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.onUtter = onUtterance
	f.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (f *blockingTranscriber) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *blockingTranscriber) finalize(text string) bool {
	f.mu.Lock()
	cb := f.onUtter
	f.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(text)
	return true
}

// drainFrames pops everything currently queued.
func drainFrames(q *core.FrameQueue) []core.Frame {
	var out []core.Frame
	for {
		f, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, f)
	}
}

func testLogger() *core.Logger {
	return core.NewLogger(func(level, msg string, attrs map[string]interface{}) {})
}
