package convo

import (
	"context"
	"encoding/base64"

	"voicebridge/core"
	"voicebridge/protocol"
	"voicebridge/utils/audio"
)

// DispatchConfig controls how synthesized sentences become outbound frames.
type DispatchConfig struct {
	// ChunkSize is the binary frame size for hardware devices.
	ChunkSize int `json:"chunk_size"`
	// HardwareHeaderBytes is the length of the container header stripped
	// from synthesized payloads before chunking for hardware playback.
	HardwareHeaderBytes int `json:"hardware_header_bytes"`
	// HardwareAudio is the encoding hardware devices expect on the wire.
	HardwareAudio core.AudioProfile `json:"-"`
	// Voices maps voice identities to vendor voice settings.
	Voices map[string]VoiceProfile `json:"voices"`
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		ChunkSize:           1024,
		HardwareHeaderBytes: 100,
		HardwareAudio:       core.AudioProfile{Format: core.PCM, SampleRate: 16000, Channels: 1},
	}
}

// SentenceJob is one completed sentence handed to the dispatcher.
type SentenceJob struct {
	Text     string
	Boundary protocol.Boundary
	Previous string // preceding sentence, tagging context
}

// Dispatcher converts completed sentences into outbound frames: it submits
// the tagging job, synthesizes audio, and enqueues the device-appropriate
// frames followed by the sentence marker. It runs on the turn worker
// goroutine and never touches the socket.
type Dispatcher struct {
	cfg      DispatchConfig
	synth    Synthesizer
	tagger   Tagger
	queue    *core.FrameQueue
	session  *core.Session
	identity string
	logger   *core.Logger
}

func NewDispatcher(cfg DispatchConfig, synth Synthesizer, tagger Tagger, queue *core.FrameQueue, session *core.Session, identity string, logger *core.Logger) *Dispatcher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	return &Dispatcher{
		cfg:      cfg,
		synth:    synth,
		tagger:   tagger,
		queue:    queue,
		session:  session,
		identity: identity,
		logger:   logger.With(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Dispatch processes one sentence and returns its tagging job id. Synthesis
// failures skip the sentence's audio but never its END_OF_SENTENCE marker, so
// the peer's sentence accounting stays consistent.
func (d *Dispatcher) Dispatch(ctx context.Context, job SentenceJob) string {
	taskID := d.tagger.Submit(job.Previous+"\n\n"+job.Text, core.MessageRoleAssistant, d.session.ID)

	payload, err := d.synthesize(ctx, job.Text)
	if err != nil {
		d.logger.Errorf("skipping audio for sentence: %v", err)
		d.enqueueSilent(job, taskID)
		d.queue.Push(core.InfoFrame(protocol.MarkerEndOfSentence))
		return taskID
	}

	switch d.session.Device {
	case core.DeviceHardware:
		d.enqueueHardware(payload, job.Boundary)
	default:
		d.enqueueWeb(payload, job, taskID)
	}
	d.queue.Push(core.InfoFrame(protocol.MarkerEndOfSentence))
	return taskID
}

func (d *Dispatcher) synthesize(ctx context.Context, text string) ([]byte, error) {
	voice, ok := d.cfg.Voices[d.identity]
	if !ok {
		return nil, &core.UnknownVoiceError{Identity: d.identity}
	}
	payload, err := d.synth.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, &core.SynthesisError{Sentence: text, Err: err}
	}
	return payload, nil
}

// enqueueWeb wraps the whole sentence payload in one structured frame.
func (d *Dispatcher) enqueueWeb(payload []byte, job SentenceJob, taskID string) {
	encoded := base64.StdEncoding.EncodeToString(payload)
	d.queue.Push(core.JSONFrame(protocol.Response{
		Type:      protocol.TypeResponse,
		AudioData: &encoded,
		TextData:  job.Text,
		Boundary:  job.Boundary,
		TaskID:    taskID,
	}))
}

// enqueueHardware strips the container header, transcodes to the device
// encoding, and chunks the result into fixed-size binary frames bracketed by
// start_of_audio / end_of_audio markers at the turn's edges.
func (d *Dispatcher) enqueueHardware(payload []byte, boundary protocol.Boundary) {
	if boundary == protocol.BoundaryStart {
		d.queue.Push(core.InfoFrame(protocol.MarkerStartOfAudio))
	}

	if len(payload) > d.cfg.HardwareHeaderBytes {
		payload = payload[d.cfg.HardwareHeaderBytes:]
	}
	converted, err := audio.Transcode(payload, d.cfg.HardwareAudio.Format)
	if err != nil {
		d.logger.Errorf("transcode failed, sending raw PCM: %v", err)
		converted = payload
	}

	seq := 0
	for off := 0; off < len(converted); off += d.cfg.ChunkSize {
		end := off + d.cfg.ChunkSize
		if end > len(converted) {
			end = len(converted)
		}
		d.queue.Push(core.BytesFrame(converted[off:end], seq))
		seq++
	}

	if boundary == protocol.BoundaryEnd {
		d.queue.Push(core.InfoFrame(protocol.MarkerEndOfAudio))
	}
}

// enqueueSilent keeps the text stream flowing when audio could not be
// produced. Web peers still render the sentence; hardware peers only see the
// boundary markers.
func (d *Dispatcher) enqueueSilent(job SentenceJob, taskID string) {
	if d.session.Device == core.DeviceHardware {
		if job.Boundary == protocol.BoundaryStart {
			d.queue.Push(core.InfoFrame(protocol.MarkerStartOfAudio))
		}
		if job.Boundary == protocol.BoundaryEnd {
			d.queue.Push(core.InfoFrame(protocol.MarkerEndOfAudio))
		}
		return
	}
	d.queue.Push(core.JSONFrame(protocol.Response{
		Type:     protocol.TypeResponse,
		TextData: job.Text,
		Boundary: job.Boundary,
		TaskID:   taskID,
	}))
}
