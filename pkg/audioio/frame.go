package audioio

import "time"

// Frame is a fixed-length block of signed 16-bit PCM samples.
// Frames are immutable once produced; ownership transfers to the consumer.
type Frame struct {
	// Samples contains PCM16 audio samples (little-endian, interleaved).
	Samples []int16

	// SampleRate is the sample rate of this frame.
	SampleRate int

	// Channels is the number of channels in this frame.
	Channels int
}

// Bytes returns the raw little-endian bytes of the frame.
func (f *Frame) Bytes() []byte {
	return SamplesToBytes(f.Samples)
}

// FrameFromBytes builds a frame from raw PCM16 bytes.
func FrameFromBytes(data []byte, sampleRate, channels int) Frame {
	return Frame{
		Samples:    BytesToSamples(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Duration returns the playback duration of this frame.
func (f *Frame) Duration() time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	samplesPerChannel := len(f.Samples) / f.Channels
	return time.Duration(float64(samplesPerChannel) / float64(f.SampleRate) * float64(time.Second))
}

// Peak returns the maximum absolute sample amplitude in the frame.
func (f *Frame) Peak() int16 {
	var peak int16
	for _, s := range f.Samples {
		if s == -32768 {
			return 32767
		}
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
