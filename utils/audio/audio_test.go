package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voicebridge/core"
)

func TestTranscode(t *testing.T) {
	pcm := []byte{0x00, 0x10, 0xff, 0x7f, 0x01, 0x80, 0x00, 0x00}

	t.Run("pcm passthrough", func(t *testing.T) {
		out, err := Transcode(pcm, core.PCM)
		assert.NoError(t, err)
		assert.Equal(t, pcm, out)
	})

	t.Run("ulaw halves the payload", func(t *testing.T) {
		out, err := Transcode(pcm, core.ULAW)
		assert.NoError(t, err)
		assert.Len(t, out, len(pcm)/2)
	})

	t.Run("alaw halves the payload", func(t *testing.T) {
		out, err := Transcode(pcm, core.ALAW)
		assert.NoError(t, err)
		assert.Len(t, out, len(pcm)/2)
	})

	t.Run("trailing odd byte is dropped", func(t *testing.T) {
		out, err := Transcode(append(pcm, 0xAA), core.ULAW)
		assert.NoError(t, err)
		assert.Len(t, out, len(pcm)/2)
	})

	t.Run("unknown encoding rejected", func(t *testing.T) {
		_, err := Transcode(pcm, core.AudioEncodingFormat(99))
		assert.Error(t, err)
	})
}

func TestDecode(t *testing.T) {
	pcm := []byte{0x00, 0x10, 0xff, 0x7f}

	t.Run("ulaw roundtrip size", func(t *testing.T) {
		encoded, err := Transcode(pcm, core.ULAW)
		assert.NoError(t, err)
		decoded, err := Decode(encoded, core.ULAW)
		assert.NoError(t, err)
		assert.Len(t, decoded, len(pcm))
	})

	t.Run("pcm passthrough", func(t *testing.T) {
		out, err := Decode(pcm, core.PCM)
		assert.NoError(t, err)
		assert.Equal(t, pcm, out)
	})
}
