package core

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit pulse-code modulation
	ULAW                            // µ-law companded
	ALAW                            // A-law companded
)

// AudioProfile describes what a device expects on its binary frames.
type AudioProfile struct {
	Format     AudioEncodingFormat
	SampleRate int
	Channels   int
}
