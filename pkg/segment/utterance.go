package segment

import (
	"time"

	"github.com/kotonebot/go-kotone/pkg/audioio"
)

// Utterance is one complete spoken turn: the frames buffered between
// detected speech start and speech end, including the trailing silence.
type Utterance struct {
	// Frames in capture order, starting with the frame that triggered
	// the speech detection.
	Frames []audioio.Frame

	// Start is when the first frame was accepted.
	Start time.Time

	// SampleRate and Channels are taken from the first frame. All frames
	// in one utterance share them.
	SampleRate int
	Channels   int

	samples int // per-channel sample count across all frames
}

// Duration returns the total buffered audio duration.
func (u *Utterance) Duration() time.Duration {
	if u.SampleRate == 0 {
		return 0
	}
	return time.Duration(u.samples) * time.Second / time.Duration(u.SampleRate)
}

// Samples concatenates all frames into a single PCM buffer.
func (u *Utterance) Samples() []int16 {
	out := make([]int16, 0, u.samples*u.Channels)
	for _, f := range u.Frames {
		out = append(out, f.Samples...)
	}
	return out
}

// Bytes returns the utterance as little-endian 16-bit PCM.
func (u *Utterance) Bytes() []byte {
	return audioio.SamplesToBytes(u.Samples())
}
