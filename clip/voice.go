package clip

import (
	"bytes"
	"fmt"
	"time"
)

// Voice is a singing voice clip. It keeps the encoded bytes it was created
// from, for saving, together with its audio decoded and downmixed to mono at
// the clip's own sample rate. A Voice is immutable; a clip replaced under
// the same key is a new Voice.
type Voice struct {
	data       []byte
	format     string
	sampleRate int
	channels   int
	mono       []float32
}

var defaultRegistry = DefaultRegistry()

// NewVoice decodes data with the default registry. data is copied.
func NewVoice(data []byte) (*Voice, error) {
	return defaultRegistry.NewVoice(data)
}

// NewVoice validates and decodes data. data is copied.
func (r *Registry) NewVoice(data []byte) (*Voice, error) {
	format, pcm, err := r.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Voice{
		data:       bytes.Clone(data),
		format:     format,
		sampleRate: pcm.SampleRate,
		channels:   pcm.Channels,
		mono:       Mono(pcm.Samples, pcm.Channels),
	}, nil
}

// Bytes returns a copy of the encoded clip.
func (v *Voice) Bytes() []byte { return bytes.Clone(v.data) }

// Size is the length of the encoded clip in bytes.
func (v *Voice) Size() int { return len(v.data) }

func (v *Voice) Format() string { return v.format }

func (v *Voice) SampleRate() int { return v.sampleRate }

func (v *Voice) Channels() int { return v.channels }

// Frames is the length of the clip at its own sample rate.
func (v *Voice) Frames() int { return len(v.mono) }

// Seconds is the duration of the clip.
func (v *Voice) Seconds() float32 { return float32(len(v.mono)) / float32(v.sampleRate) }

// Duration is Seconds as a time.Duration, for logging.
func (v *Voice) Duration() time.Duration {
	return time.Duration(float64(len(v.mono)) / float64(v.sampleRate) * float64(time.Second))
}

// ResampledLen returns how many frames Render produces at the given rate.
func (v *Voice) ResampledLen(sampleRate float32) int {
	return ResampledLen(len(v.mono), float64(v.sampleRate), float64(sampleRate))
}

// Render returns the clip as mono samples at the given rate. The returned
// slice is freshly allocated and owned by the caller.
func (v *Voice) Render(sampleRate float32) ([]float32, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("%w: %v Hz", ErrInvalidSampleRate, sampleRate)
	}
	return Resample(nil, v.mono, float64(v.sampleRate), float64(sampleRate)), nil
}

// Equal reports whether both voices were created from the same bytes.
func (v *Voice) Equal(other *Voice) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v == other || bytes.Equal(v.data, other.data)
}
