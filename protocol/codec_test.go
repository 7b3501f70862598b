package protocol

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
)

func TestEncodeResponse(t *testing.T) {
	t.Run("audio frame", func(t *testing.T) {
		audio := "YWJj"
		data, err := EncodeResponse(Response{
			Type:      TypeResponse,
			AudioData: &audio,
			TextData:  "Hello.",
			Boundary:  BoundaryStart,
			TaskID:    "job-1",
		})
		assert.NoError(t, err)

		var decoded map[string]any
		assert.NoError(t, sonic.Unmarshal(data, &decoded))
		assert.Equal(t, "response", decoded["type"])
		assert.Equal(t, "YWJj", decoded["audio_data"])
		assert.Equal(t, "start", decoded["boundary"])
		assert.Equal(t, "job-1", decoded["task_id"])
	})

	t.Run("audio_data is explicit null when absent", func(t *testing.T) {
		data, err := EncodeResponse(Response{Type: TypeTask, TextData: "{}", TaskID: "job-2"})
		assert.NoError(t, err)

		var decoded map[string]any
		assert.NoError(t, sonic.Unmarshal(data, &decoded))
		v, present := decoded["audio_data"]
		assert.True(t, present, "audio_data key must be on the wire")
		assert.Nil(t, v)
		_, present = decoded["boundary"]
		assert.False(t, present, "empty boundary is omitted")
	})
}

func TestDecodeControl(t *testing.T) {
	t.Run("partial frame", func(t *testing.T) {
		c, err := DecodeControl([]byte(`{"is_interrupted": true}`))
		assert.NoError(t, err)
		assert.True(t, c.Interrupted())
		assert.False(t, c.Ending())
		assert.False(t, c.StopReplying(), "absent is_replying means no change")
	})

	t.Run("stop replying requires explicit false", func(t *testing.T) {
		c, err := DecodeControl([]byte(`{"is_replying": false}`))
		assert.NoError(t, err)
		assert.True(t, c.StopReplying())

		c, err = DecodeControl([]byte(`{"is_replying": true}`))
		assert.NoError(t, err)
		assert.False(t, c.StopReplying())
	})

	t.Run("malformed frame is an error", func(t *testing.T) {
		_, err := DecodeControl([]byte(`not json`))
		assert.Error(t, err)
	})
}
