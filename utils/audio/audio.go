// Package audio converts synthesized PCM into the encodings hardware
// devices negotiate.
package audio

import (
	"fmt"

	"github.com/zaf/g711"

	"voicebridge/core"
)

// Transcode converts 16-bit little-endian PCM into the requested device
// encoding. PCM passes through untouched.
func Transcode(pcm []byte, format core.AudioEncodingFormat) ([]byte, error) {
	switch format {
	case core.PCM:
		return pcm, nil
	case core.ULAW:
		return g711.EncodeUlaw(evenPCM(pcm)), nil
	case core.ALAW:
		return g711.EncodeAlaw(evenPCM(pcm)), nil
	default:
		return nil, fmt.Errorf("audio: unsupported encoding %d", format)
	}
}

// Decode expands companded device audio back to 16-bit PCM.
func Decode(data []byte, format core.AudioEncodingFormat) ([]byte, error) {
	switch format {
	case core.PCM:
		return data, nil
	case core.ULAW:
		return g711.DecodeUlaw(data), nil
	case core.ALAW:
		return g711.DecodeAlaw(data), nil
	default:
		return nil, fmt.Errorf("audio: unsupported encoding %d", format)
	}
}

// evenPCM drops a trailing odd byte so the companders see whole samples.
func evenPCM(pcm []byte) []byte {
	if len(pcm)%2 != 0 {
		return pcm[:len(pcm)-1]
	}
	return pcm
}
