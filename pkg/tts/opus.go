package tts

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"
)

// opusSampleRate is the rate libopusfile always decodes to.
const opusSampleRate = 48000

// DecodeOpus decodes an Ogg Opus buffer to 16-bit mono PCM at 48kHz.
// Stereo input is downmixed by the decoder.
func DecodeOpus(data []byte) ([]int16, int, error) {
	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("tts: open opus stream: %w", err)
	}
	defer stream.Close()

	pcm := make([]int16, 0, len(data)*8)
	buf := make([]int16, 16384)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			pcm = append(pcm, buf[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("tts: decode opus stream: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return pcm, opusSampleRate, nil
}

// ToPCM converts a synthesis result to 16-bit mono PCM samples plus their
// sample rate. Opus results are decoded; raw PCM passes through. Other
// encodings are rejected, the caller should request a decodable format.
func (r *AudioResult) ToPCM() ([]int16, int, error) {
	switch r.Format.Encoding {
	case EncodingOpus:
		return DecodeOpus(r.Audio)
	case EncodingPCM:
		samples := make([]int16, len(r.Audio)/2)
		for i := range samples {
			samples[i] = int16(r.Audio[i*2]) | int16(r.Audio[i*2+1])<<8
		}
		return samples, r.Format.SampleRate, nil
	default:
		return nil, 0, fmt.Errorf("tts: cannot decode %q to PCM", r.Format.Encoding)
	}
}
