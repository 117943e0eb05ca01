package audioio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wav header layout constants
const (
	wavHeaderSize = 44
	wavFmtPCM     = 1
)

// EncodeWAV wraps PCM16 samples in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, wavHeaderSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFmtPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))            // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                            // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	copy(buf[wavHeaderSize:], SamplesToBytes(samples))
	return buf
}

// WriteWAV writes PCM16 samples to path as a WAV file.
func WriteWAV(path string, samples []int16, sampleRate, channels int) error {
	if err := os.WriteFile(path, EncodeWAV(samples, sampleRate, channels), 0o644); err != nil {
		return fmt.Errorf("wav: write %s: %w", path, err)
	}
	return nil
}

// DecodeWAV extracts PCM16 samples and format from WAV bytes.
// Only canonical 16-bit PCM files are supported.
func DecodeWAV(data []byte) (samples []int16, sampleRate, channels int, err error) {
	if len(data) < wavHeaderSize {
		return nil, 0, 0, fmt.Errorf("wav: truncated header (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("wav: not a RIFF/WAVE file")
	}
	format := binary.LittleEndian.Uint16(data[20:22])
	if format != wavFmtPCM {
		return nil, 0, 0, fmt.Errorf("wav: unsupported format %d", format)
	}
	bits := binary.LittleEndian.Uint16(data[34:36])
	if bits != 16 {
		return nil, 0, 0, fmt.Errorf("wav: unsupported bit depth %d", bits)
	}

	channels = int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(data[24:28]))
	dataLen := int(binary.LittleEndian.Uint32(data[40:44]))
	if wavHeaderSize+dataLen > len(data) {
		dataLen = len(data) - wavHeaderSize
	}

	samples = BytesToSamples(data[wavHeaderSize : wavHeaderSize+dataLen])
	return samples, sampleRate, channels, nil
}
