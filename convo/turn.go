package convo

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"voicebridge/core"
	"voicebridge/protocol"
	"voicebridge/segment"
	"voicebridge/utils/text"
)

// TurnConfig holds the prompts and fixed text a turn runner needs.
type TurnConfig struct {
	// ToolProbePrompt is the system prompt for the non-streamed tool round.
	ToolProbePrompt string
	// Fallback is spoken when the model or tool round fails mid-turn.
	Fallback string
}

// Turn is a handle to one in-flight reply generation. Cancel is safe to call
// at any time; Join blocks until the worker goroutine has fully unwound and
// returns the last sentence it dispatched.
type Turn struct {
	cancel context.CancelFunc
	done   chan struct{}
	final  string // written only by the worker, read only after done closes
}

func (t *Turn) Cancel() { t.cancel() }

func (t *Turn) Join() string {
	<-t.done
	return t.final
}

// turnRequest describes what a turn should generate.
type turnRequest struct {
	utterance string
	greeting  bool // synthesize an opener instead of answering an utterance
	previous  string
}

// turnRunner generates one reply: tool probe, streamed completion, sentence
// segmentation, and dispatch. It owns no socket state; everything it produces
// goes through the frame queue.
type turnRunner struct {
	cfg        TurnConfig
	completer  Completer
	retriever  Retriever
	tagger     Tagger
	dispatcher *Dispatcher
	history    *core.History
	session    *core.Session
	queue      *core.FrameQueue
	taskIDs    *taskIDQueue
	logger     *core.Logger
}

// Start launches the worker goroutine and returns its handle.
func (r *turnRunner) Start(parent context.Context, req turnRequest) *Turn {
	ctx, cancel := context.WithCancel(parent)
	t := &Turn{cancel: cancel, done: make(chan struct{}), final: req.previous}
	go func() {
		defer close(t.done)
		defer cancel()
		r.run(ctx, t, req)
	}()
	return t
}

func (r *turnRunner) run(ctx context.Context, t *Turn, req turnRequest) {
	prev := req.previous

	if !req.greeting {
		r.history.AppendUser(req.utterance)
		userTask := r.tagger.Submit(prev+"\n\n"+req.utterance, core.MessageRoleUser, r.session.ID)
		if r.session.Device == core.DeviceWeb {
			r.queue.Push(core.JSONFrame(protocol.Response{
				Type:     protocol.TypeInput,
				TextData: req.utterance,
				TaskID:   userTask,
			}))
			r.taskIDs.Push(userTask)
		}
	}

	stream, err := r.openStream(ctx, req)
	if err != nil {
		r.fallback(ctx, t, prev, err)
		return
	}
	defer stream.Close()

	var full strings.Builder
	buffer := ""
	dispatched := 0

	for {
		if r.aborted(ctx) {
			r.abort()
			return
		}
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.fallback(ctx, t, prev, &core.CompletionError{Stage: "stream", Err: err})
			return
		}
		delta = text.StripDecorations(delta)
		if delta == "" {
			continue
		}
		buffer += delta
		full.WriteString(delta)

		complete, remainder := segment.Split(buffer)
		// Hold back the newest segment even when terminated: the final
		// sentence of the turn must carry the end boundary, and only the
		// stream's close tells us which one that is.
		if strings.TrimSpace(remainder) == "" && len(complete) > 0 {
			remainder = complete[len(complete)-1] + remainder
			complete = complete[:len(complete)-1]
		}
		for _, raw := range complete {
			sentence := strings.TrimSpace(raw)
			if sentence == "" {
				continue
			}
			if r.aborted(ctx) {
				r.abort()
				return
			}
			boundary := protocol.BoundaryMid
			if dispatched == 0 {
				boundary = protocol.BoundaryStart
			}
			r.emit(ctx, t, SentenceJob{Text: sentence, Boundary: boundary, Previous: prev})
			prev = sentence
			dispatched++
		}
		buffer = remainder
	}

	if r.aborted(ctx) {
		r.abort()
		return
	}
	if tail := strings.TrimSpace(buffer); tail != "" {
		r.emit(ctx, t, SentenceJob{Text: tail, Boundary: protocol.BoundaryEnd, Previous: prev})
		// Synthesis blocks; a barge-in may have landed while it ran, after
		// the manager already cleared the queue.
		if r.aborted(ctx) {
			r.abort()
			return
		}
	}
	r.queue.Push(core.InfoFrame(protocol.MarkerEndOfTurn))

	if reply := strings.TrimSpace(full.String()); reply != "" {
		r.history.AppendAssistant(reply)
	}
}

// openStream acquires the streamed completion, running the tool probe first
// for normal turns. The greeting turn streams directly over the transcript
// plus a non-persisted directive.
func (r *turnRunner) openStream(ctx context.Context, req turnRequest) (CompletionStream, error) {
	if req.greeting {
		msgs := append(r.history.Snapshot(), core.Message{
			Role:    core.MessageRoleUser,
			Content: req.utterance,
		})
		stream, err := r.completer.Stream(ctx, msgs)
		if err != nil {
			return nil, &core.CompletionError{Stage: "stream", Err: err}
		}
		return stream, nil
	}

	probe := []core.Message{
		{Role: core.MessageRoleSystem, Content: r.cfg.ToolProbePrompt},
		{Role: core.MessageRoleUser, Content: req.utterance},
	}
	comp, err := r.completer.Complete(ctx, probe, []Tool{KnowledgeTool()})
	if err != nil {
		return nil, &core.CompletionError{Stage: "tool-probe", Err: err}
	}

	if call, ok := knowledgeCall(comp); ok {
		query, _ := call.Arguments["query"].(string)
		if query == "" {
			query = req.utterance
		}
		r.logger.Infof("knowledge lookup: %q", query)
		result, err := r.retriever.Query(ctx, query)
		if err != nil {
			return nil, &core.CompletionError{Stage: "tool-call", Err: err}
		}
		r.history.AppendToolResult(call.ID, call.Name, result)
	}

	stream, err := r.completer.Stream(ctx, r.history.Snapshot())
	if err != nil {
		return nil, &core.CompletionError{Stage: "stream", Err: err}
	}
	return stream, nil
}

func knowledgeCall(comp *Completion) (ToolCall, bool) {
	for _, call := range comp.ToolCalls {
		if call.Name == KnowledgeToolName {
			return call, true
		}
	}
	return ToolCall{}, false
}

func (r *turnRunner) emit(ctx context.Context, t *Turn, job SentenceJob) {
	taskID := r.dispatcher.Dispatch(ctx, job)
	if r.session.Device == core.DeviceWeb {
		r.taskIDs.Push(taskID)
	}
	t.final = job.Text
}

// fallback replaces a failed turn with a short audible apology so the peer is
// never left waiting in silence. It still closes the turn with the END marker
// and records the spoken text in the transcript.
func (r *turnRunner) fallback(ctx context.Context, t *Turn, prev string, cause error) {
	r.logger.Errorf("turn failed: %v", cause)
	if r.aborted(ctx) {
		r.abort()
		return
	}
	r.emit(ctx, t, SentenceJob{Text: r.cfg.Fallback, Boundary: protocol.BoundaryEnd, Previous: prev})
	if r.aborted(ctx) {
		r.abort()
		return
	}
	r.queue.Push(core.InfoFrame(protocol.MarkerEndOfTurn))
	r.history.AppendAssistant(r.cfg.Fallback)
}

// aborted reports whether the turn should stop producing output. The
// interruption flag is consumed here; the socket loop has already reacted to
// the control frame by the time the worker observes it.
func (r *turnRunner) aborted(ctx context.Context) bool {
	return ctx.Err() != nil || !r.session.IsOpen() || r.session.ConsumeInterrupted()
}

// abort discards everything the turn queued. No END marker is emitted; a
// cancelled turn must leave no trace in the outbound stream.
func (r *turnRunner) abort() {
	dropped := r.queue.Clear()
	r.taskIDs.Clear()
	if dropped > 0 {
		r.logger.Debugf("cancelled turn dropped %d queued frames", dropped)
	}
}

// taskIDQueue tracks tagging jobs in submission order so results are
// forwarded to the peer in the order the sentences were spoken.
type taskIDQueue struct {
	mu  sync.Mutex
	ids []string
}

func newTaskIDQueue() *taskIDQueue { return &taskIDQueue{} }

func (q *taskIDQueue) Push(id string) {
	q.mu.Lock()
	q.ids = append(q.ids, id)
	q.mu.Unlock()
}

// Peek returns the oldest pending job id without removing it.
func (q *taskIDQueue) Peek() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", false
	}
	return q.ids[0], true
}

func (q *taskIDQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

func (q *taskIDQueue) Clear() {
	q.mu.Lock()
	q.ids = nil
	q.mu.Unlock()
}

func (q *taskIDQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
