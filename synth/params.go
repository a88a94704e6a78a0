package synth

import (
	"errors"
	"fmt"
	"math"
)

// Params are the fixed settings of a synth voice. Times are in seconds.
type Params struct {
	Cutoff   float32 `yaml:"cutoff"`   // low-pass cutoff at middle C, in Hz
	Q        float32 `yaml:"q"`        // resonance of the low-pass filter
	KeyTrack float32 `yaml:"keyTrack"` // how much the cutoff follows the pitch, 1 = fully
	Attack   float32 `yaml:"attack"`
	Decay    float32 `yaml:"decay"`
	Sustain  float32 `yaml:"sustain"` // level, 0..1
	Release  float32 `yaml:"release"`
	Volume   float32 `yaml:"volume"`
}

// MinEnvelopeTime is the shortest attack, decay or release accepted.
const MinEnvelopeTime = 0.001

// ErrInvalidEnvelope is returned when constructing a voice with envelope
// times shorter than MinEnvelopeTime or sustain outside [0, 1].
var ErrInvalidEnvelope = errors.New("invalid ADSR parameters")

// DefaultParams returns the settings used for rendering phrases that have no
// voice clip.
func DefaultParams() Params {
	return Params{
		Cutoff:   2500,
		Q:        1 / math.Sqrt2,
		KeyTrack: 0.25,
		Attack:   0.001,
		Decay:    0.18,
		Sustain:  0.5,
		Release:  0.02,
		Volume:   0.1,
	}
}

// Validate checks the envelope of the parameters.
func (p Params) Validate() error {
	switch {
	case !(p.Attack >= MinEnvelopeTime):
		return fmt.Errorf("%w: attack %v s is shorter than %v s", ErrInvalidEnvelope, p.Attack, MinEnvelopeTime)
	case !(p.Decay >= MinEnvelopeTime):
		return fmt.Errorf("%w: decay %v s is shorter than %v s", ErrInvalidEnvelope, p.Decay, MinEnvelopeTime)
	case !(p.Release >= MinEnvelopeTime):
		return fmt.Errorf("%w: release %v s is shorter than %v s", ErrInvalidEnvelope, p.Release, MinEnvelopeTime)
	case !(p.Sustain >= 0 && p.Sustain <= 1):
		return fmt.Errorf("%w: sustain %v is outside [0, 1]", ErrInvalidEnvelope, p.Sustain)
	}
	return nil
}

// ReleaseFrames is the number of frames a voice keeps sounding after note
// off, at the given sample rate.
func (p Params) ReleaseFrames(sampleRate float32) int {
	return int(sampleRate * p.Release)
}
