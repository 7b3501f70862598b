package convo

import (
	"context"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voicebridge/core"
	"voicebridge/protocol"
)

// Conn is the socket surface the manager needs. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Config carries the per-deployment knobs of a conversation.
type Config struct {
	SystemPrompt      string         `json:"system_prompt"`
	GreetingDirective string         `json:"greeting_directive"`
	ToolProbePrompt   string         `json:"tool_probe_prompt"`
	FallbackUtterance string         `json:"fallback_utterance"`
	VoiceIdentity     string         `json:"voice_identity"`
	Dispatch          DispatchConfig `json:"dispatch"`
	Watchdog          WatchdogConfig `json:"watchdog"`

	// PollInterval is the cadence for non-blocking tagging-result checks.
	PollInterval time.Duration `json:"poll_interval"`
	// BatchLimit caps the eager drain after an end-of-sentence control.
	BatchLimit int `json:"batch_limit"`
	// AudioBuffer is the depth of the inbound mic-audio channel.
	AudioBuffer int `json:"audio_buffer"`
}

func DefaultConfig() Config {
	return Config{
		GreetingDirective: "Greet the user warmly in one or two short sentences and invite them to talk.",
		ToolProbePrompt:   "Decide whether answering the user requires looking up external knowledge. Call the tool only when the answer depends on information you do not already have.",
		FallbackUtterance: "Oops, it looks like we ran into some sensitive content. How about we talk about something else?",
		Dispatch:          DefaultDispatchConfig(),
		Watchdog:          DefaultWatchdogConfig(),
		PollInterval:      100 * time.Millisecond,
		BatchLimit:        20,
		AudioBuffer:       64,
	}
}

type inboundMessage struct {
	messageType int
	data        []byte
	err         error
}

// Manager runs one conversation end to end: the greeting turn, the
// listening/replying loop, and the teardown. It is the only goroutine that
// writes to the socket; the turn worker reaches it exclusively through the
// frame queue and the task-id queue.
type Manager struct {
	cfg      Config
	services Services
	conn     Conn
	session  *core.Session
	history  *core.History
	queue    *core.FrameQueue
	taskIDs  *taskIDQueue
	runner   *turnRunner
	turn     *Turn
	prev     string
	logger   *core.Logger

	inbound chan inboundMessage
	audioIn chan []byte
	closed  chan struct{}
}

func NewManager(cfg Config, services Services, conn Conn, session *core.Session, logger *core.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 20
	}
	if cfg.AudioBuffer <= 0 {
		cfg.AudioBuffer = 64
	}

	logger = logger.With(map[string]interface{}{
		"session": session.ID,
		"device":  string(session.Device),
	})

	queue := core.NewFrameQueue()
	taskIDs := newTaskIDQueue()
	history := core.NewHistory(cfg.SystemPrompt)

	dispatcher := NewDispatcher(cfg.Dispatch, services.Synthesizer, services.Tagger,
		queue, session, cfg.VoiceIdentity, logger)

	return &Manager{
		cfg:      cfg,
		services: services,
		conn:     conn,
		session:  session,
		history:  history,
		queue:    queue,
		taskIDs:  taskIDs,
		logger:   logger,
		runner: &turnRunner{
			cfg: TurnConfig{
				ToolProbePrompt: cfg.ToolProbePrompt,
				Fallback:        cfg.FallbackUtterance,
			},
			completer:  services.Completer,
			retriever:  services.Retriever,
			tagger:     services.Tagger,
			dispatcher: dispatcher,
			history:    history,
			session:    session,
			queue:      queue,
			taskIDs:    taskIDs,
			logger:     logger.With(map[string]interface{}{"component": "turn"}),
		},
		inbound: make(chan inboundMessage, 8),
		audioIn: make(chan []byte, cfg.AudioBuffer),
		closed:  make(chan struct{}),
	}
}

// History exposes the transcript, mainly for teardown persistence.
func (m *Manager) History() *core.History { return m.history }

// Run drives the conversation until the session closes. It blocks; the
// caller owns the goroutine.
func (m *Manager) Run(ctx context.Context) {
	defer m.teardown()

	go m.readPump()

	// The assistant speaks first. The directive is not persisted as a user
	// message; the generated opener is persisted as the first assistant one.
	m.session.SetReplying(true)
	m.startTurn(ctx, turnRequest{utterance: m.cfg.GreetingDirective, greeting: true})
	m.logger.Info("conversation started")

	for m.session.IsOpen() && ctx.Err() == nil {
		if m.session.IsReplying() {
			m.replyLoop(ctx)
		} else {
			m.listenLoop(ctx)
		}
	}
}

// readPump moves socket reads onto a channel so the main loop can select
// over them alongside timers and the frame queue.
func (m *Manager) readPump() {
	for {
		mt, data, err := m.conn.ReadMessage()
		select {
		case m.inbound <- inboundMessage{messageType: mt, data: data, err: err}:
		case <-m.closed:
			return
		}
		if err != nil {
			return
		}
	}
}

// listenLoop runs one listening phase: mic audio flows to the transcriber,
// the idle watchdog is armed, and a finalized utterance starts the next turn.
func (m *Manager) listenLoop(ctx context.Context) {
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	utterances := make(chan string, 1)
	sttErr := make(chan error, 1)
	go func() {
		err := m.services.Transcriber.Start(listenCtx, m.audioIn, func(text string) {
			m.session.SetTranscription(text)
			select {
			case utterances <- text:
			default:
			}
		})
		if err != nil && listenCtx.Err() == nil {
			select {
			case sttErr <- err:
			default:
			}
		}
	}()

	wd := newWatchdog(m.cfg.Watchdog)
	defer wd.Stop()
	var closeAt <-chan time.Time

	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()

	for m.session.IsOpen() {
		select {
		case <-ctx.Done():
			m.session.CloseConn()
			return

		case msg := <-m.inbound:
			if msg.err != nil {
				m.logger.Infof("%v", core.ErrPeerDisconnected)
				m.session.CloseConn()
				return
			}
			switch msg.messageType {
			case websocket.BinaryMessage:
				select {
				case m.audioIn <- msg.data:
				default:
					m.logger.Debug("audio buffer full, dropping chunk")
				}
			case websocket.TextMessage:
				ctl, err := protocol.DecodeControl(msg.data)
				if err != nil {
					m.logger.Warnf("%v", err)
					continue
				}
				if ctl.Ending() {
					m.session.CloseConn()
					return
				}
				if ctl.Interrupted() {
					m.services.Transcriber.Reset()
				}
				if ctl.EndOfSentence() {
					m.session.ArmSentenceBatch()
				}
			}

		case <-utterances:
			utterance := strings.TrimSpace(m.session.TakeTranscription())
			if utterance == "" {
				m.session.CloseConn()
				return
			}
			cancel()
			// Join the previous turn before its successor may enqueue
			// anything; a cancelled turn drains the queue on its way out.
			m.joinTurn()
			m.session.SetReplying(true)
			m.startTurn(ctx, turnRequest{utterance: utterance})
			m.logger.Infof("utterance accepted: %q", utterance)
			return

		case err := <-sttErr:
			m.logger.Errorf("%v", &core.TranscriptionError{Err: err})
			m.session.CloseConn()
			return

		case <-wd.Soft():
			if m.session.Transcription() == "" {
				m.writeFrame(core.JSONFrame(protocol.Response{
					Type:     protocol.TypeWarning,
					TextData: softWarningText(m.cfg.Watchdog),
				}))
			}

		case <-wd.Hard():
			if m.session.Transcription() == "" {
				m.writeFrame(core.JSONFrame(protocol.Response{
					Type:     protocol.TypeWarning,
					TextData: hardWarningText,
				}))
				closeAt = time.After(m.cfg.Watchdog.CloseGrace)
			}

		case <-closeAt:
			m.logger.Info("idle timeout, closing session")
			m.session.CloseConn()
			return

		case <-poll.C:
			m.forwardTaskResult()
		}
	}
}

// replyLoop runs one replying phase: it drains the frame queue to the
// socket, forwards tagging results ahead of audio, and reacts to control
// frames. The peer flips is_replying off once it has consumed the END
// marker.
func (m *Manager) replyLoop(ctx context.Context) {
	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()

	for m.session.IsOpen() && m.session.IsReplying() {
		// Completed tagging jobs take priority over queued audio.
		m.forwardTaskResult()

		select {
		case <-ctx.Done():
			m.session.CloseConn()
			return

		case msg := <-m.inbound:
			if msg.err != nil {
				m.logger.Infof("%v", core.ErrPeerDisconnected)
				m.session.CloseConn()
				return
			}
			if msg.messageType != websocket.TextMessage {
				// Mic audio while replying is dropped; barge-in is signalled
				// through the interruption control, not raw audio.
				continue
			}
			ctl, err := protocol.DecodeControl(msg.data)
			if err != nil {
				m.logger.Warnf("%v", err)
				continue
			}
			switch {
			case ctl.Ending():
				m.session.CloseConn()
				return
			case ctl.Interrupted():
				m.interrupt()
				return
			case ctl.StopReplying():
				m.session.SetReplying(false)
				m.services.Transcriber.Reset()
				return
			}
			if ctl.EndOfSentence() {
				m.session.ArmSentenceBatch()
			}

		case <-m.queue.Ready():
			if !m.drainOutbound() {
				return
			}

		case <-poll.C:
		}
	}
}

// interrupt handles a barge-in: the in-flight turn is cancelled, everything
// queued is discarded, and the session goes straight back to listening.
func (m *Manager) interrupt() {
	m.session.MarkInterrupted()
	if m.turn != nil {
		m.turn.Cancel()
	}
	dropped := m.queue.Clear()
	m.taskIDs.Clear()
	m.services.Transcriber.Reset()
	m.session.SetReplying(false)
	m.logger.Infof("interrupted, dropped %d queued frames", dropped)
}

// drainOutbound forwards queued frames to the peer. Returns false when the
// socket write failed and the session was closed.
func (m *Manager) drainOutbound() bool {
	f, ok := m.queue.TryPop()
	if !ok {
		return true
	}

	// A confirmed sentence boundary lets us burst a batch of audio frames
	// in one scheduling slice instead of one frame per wakeup.
	if f.Kind == core.FrameBytes && m.session.SentenceBatchArmed() {
		if !m.writeFrame(f) {
			return false
		}
		for n := 1; n < m.cfg.BatchLimit; n++ {
			next, ok := m.queue.TryPop()
			if !ok {
				break
			}
			if !m.writeFrame(next) {
				return false
			}
		}
		m.session.DisarmSentenceBatch()
		return true
	}

	if !m.writeFrame(f) {
		return false
	}
	if f.Kind == core.FrameJSON && m.queue.Len() == 0 {
		// The structured path has caught up; stale partials in the
		// transcriber must not leak into the next utterance.
		m.services.Transcriber.Reset()
	}
	return true
}

// writeFrame sends one frame, switching exhaustively on its kind. Returns
// false when the peer is gone.
func (m *Manager) writeFrame(f core.Frame) bool {
	var err error
	switch f.Kind {
	case core.FrameJSON:
		resp, ok := f.Payload.(protocol.Response)
		if !ok {
			m.logger.Errorf("json frame with unexpected payload %T", f.Payload)
			return true
		}
		var data []byte
		data, err = protocol.EncodeResponse(resp)
		if err != nil {
			m.logger.Errorf("%v", err)
			return true
		}
		err = m.conn.WriteMessage(websocket.TextMessage, data)
	case core.FrameBytes:
		err = m.conn.WriteMessage(websocket.BinaryMessage, f.Bytes)
	case core.FrameInfo:
		err = m.conn.WriteMessage(websocket.TextMessage, []byte(f.Info))
	default:
		m.logger.Errorf("frame with unknown kind %d", f.Kind)
		return true
	}
	if err != nil {
		m.logger.Infof("write failed, %v: %v", core.ErrPeerDisconnected, err)
		m.session.CloseConn()
		return false
	}
	return true
}

// forwardTaskResult sends the oldest completed tagging result, if any.
func (m *Manager) forwardTaskResult() {
	id, ok := m.taskIDs.Peek()
	if !ok {
		return
	}
	result, done := m.services.Tagger.TryResult(id)
	if !done {
		return
	}
	m.taskIDs.Pop()
	m.writeFrame(core.JSONFrame(protocol.Response{
		Type:     protocol.TypeTask,
		TextData: result,
		TaskID:   id,
	}))
}

func (m *Manager) startTurn(ctx context.Context, req turnRequest) {
	if req.previous == "" {
		req.previous = m.prev
	}
	// A barge-in flag left over from the previous turn (the worker may have
	// exited through its context before consuming it) must not cancel this one.
	m.session.ConsumeInterrupted()
	m.turn = m.runner.Start(ctx, req)
}

// joinTurn cancels any in-flight turn and waits for its goroutine to unwind,
// recording the last spoken sentence as tagging context for the next one.
func (m *Manager) joinTurn() {
	if m.turn == nil {
		return
	}
	m.turn.Cancel()
	m.prev = m.turn.Join()
	m.turn = nil
}

func (m *Manager) teardown() {
	m.session.CloseConn()
	m.joinTurn()
	close(m.closed)
	_ = m.conn.Close()
	m.logger.Info("conversation ended")
}
