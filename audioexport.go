package vvvst

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavPCMFormat is the wav format tag of integer PCM.
const WavPCMFormat = 1

// Wav encodes the buffer into w as a stereo integer PCM .wav file. bitDepth
// must be 8, 16, 24 or 32.
func (b AudioBuffer) Wav(w io.WriteSeeker, sampleRate, bitDepth int) error {
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("Wav failed: unsupported bit depth %d", bitDepth)
	}
	enc := wav.NewEncoder(w, sampleRate, bitDepth, 2, WavPCMFormat)
	if err := enc.Write(b.IntBuffer(sampleRate, bitDepth)); err != nil {
		return fmt.Errorf("Wav failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("Wav failed: could not finalize header: %w", err)
	}
	return nil
}

// IntBuffer converts the buffer to interleaved integer samples of the given
// bit depth, clipping anything outside [-1, 1]. 8-bit samples are unsigned,
// as in .wav files.
func (b AudioBuffer) IntBuffer(sampleRate, bitDepth int) *audio.IntBuffer {
	scale := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, 0, 2*len(b))
	for _, frame := range b {
		for _, v := range frame {
			s := int(math.Round(float64(clamp(v, -1, 1)) * scale))
			if bitDepth == 8 {
				s += 128
			}
			data = append(data, s)
		}
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}

// Raw returns the buffer as headerless little-endian samples, either int16 or
// float32.
func (b AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	flat := b.Interleaved()
	var err error
	if pcm16 {
		int16data := make([]int16, len(flat))
		for i, v := range flat {
			int16data[i] = int16(clamp(v, -1, 1) * math.MaxInt16)
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, flat)
	}
	if err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(value, lo, hi float32) float32 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
