package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameQueue(t *testing.T) {
	t.Run("fifo order", func(t *testing.T) {
		q := NewFrameQueue()
		q.Push(InfoFrame("a"))
		q.Push(InfoFrame("b"))
		q.Push(BytesFrame([]byte{1}, 0))

		f, ok := q.TryPop()
		assert.True(t, ok)
		assert.Equal(t, "a", f.Info)
		f, _ = q.TryPop()
		assert.Equal(t, "b", f.Info)
		f, _ = q.TryPop()
		assert.Equal(t, FrameBytes, f.Kind)
		_, ok = q.TryPop()
		assert.False(t, ok)
	})

	t.Run("ready signals on push", func(t *testing.T) {
		q := NewFrameQueue()
		q.Push(InfoFrame("x"))
		select {
		case <-q.Ready():
		default:
			t.Fatal("expected ready signal after push")
		}
	})

	t.Run("ready rearms while frames remain", func(t *testing.T) {
		q := NewFrameQueue()
		q.Push(InfoFrame("x"))
		q.Push(InfoFrame("y"))
		<-q.Ready()
		_, ok := q.TryPop()
		assert.True(t, ok)
		// One frame left; TryPop must have re-signalled.
		select {
		case <-q.Ready():
		default:
			t.Fatal("expected ready signal while frames remain")
		}
	})

	t.Run("clear drops everything", func(t *testing.T) {
		q := NewFrameQueue()
		q.Push(InfoFrame("x"))
		q.Push(InfoFrame("y"))
		assert.Equal(t, 2, q.Clear())
		assert.Equal(t, 0, q.Len())
		_, ok := q.TryPop()
		assert.False(t, ok)
		select {
		case <-q.Ready():
			t.Fatal("ready signal should be drained by Clear")
		default:
		}
	})
}

func TestSessionFlags(t *testing.T) {
	s := NewSession(DeviceWeb)
	assert.True(t, s.IsOpen())
	assert.False(t, s.IsReplying())
	assert.True(t, s.SentenceBatchArmed())

	s.MarkInterrupted()
	assert.True(t, s.ConsumeInterrupted())
	assert.False(t, s.ConsumeInterrupted(), "flag consumed exactly once")

	s.SetTranscription("hello there")
	assert.Equal(t, "hello there", s.Transcription())
	assert.Equal(t, "hello there", s.TakeTranscription())
	assert.Equal(t, "", s.Transcription())

	s.CloseConn()
	assert.False(t, s.IsOpen())
}

func TestHistory(t *testing.T) {
	h := NewHistory("be kind")
	h.AppendUser("hi")
	h.AppendAssistant("hello")
	h.AppendToolResult("call-1", "lookup", "result")

	snap := h.Snapshot()
	assert.Len(t, snap, 4)
	assert.Equal(t, MessageRoleSystem, snap[0].Role)
	assert.Equal(t, MessageRoleTool, snap[3].Role)
	assert.Equal(t, "call-1", snap[3].ToolCallID)

	// Snapshot is a copy; mutating it must not affect the transcript.
	snap[0].Content = "mutated"
	assert.Equal(t, "be kind", h.Snapshot()[0].Content)
}
