package vvvst

import (
	"github.com/viterin/vek/vek32"
)

type (
	// AudioBuffer is a buffer of stereo audio frames, left channel first.
	AudioBuffer [][2]float32

	// AudioSink is something that can consume rendered audio, e.g. a sound
	// card.
	AudioSink interface {
		WriteAudio(buffer AudioBuffer) error
		Close() error
	}

	// AudioContext hands out sinks; it is typically backed by the sound card.
	AudioContext interface {
		Output() AudioSink
		Close() error
	}
)

// Interleaved returns the buffer as a flat, interleaved slice. The returned
// slice is freshly allocated.
func (b AudioBuffer) Interleaved() []float32 {
	ret := make([]float32, 0, 2*len(b))
	for _, f := range b {
		ret = append(ret, f[0], f[1])
	}
	return ret
}

// Fill sets the frames of the buffer from per-channel slices. Frames past the
// end of either slice are zero.
func (b AudioBuffer) Fill(left, right []float32) {
	for i := range b {
		b[i] = [2]float32{}
		if i < len(left) {
			b[i][0] = left[i]
		}
		if i < len(right) {
			b[i][1] = right[i]
		}
	}
}

// Peak returns the largest absolute sample value of the buffer.
func (b AudioBuffer) Peak() float32 {
	if len(b) == 0 {
		return 0
	}
	flat := b.Interleaved()
	return max(vek32.Max(flat), -vek32.Min(flat))
}
