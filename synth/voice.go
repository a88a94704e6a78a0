package synth

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Voice renders one note: a square oscillator through a low-pass filter and
// an ADSR amplifier. A voice sounds until NoteOff is called and its release
// has run out.
type Voice struct {
	osc        squareOscillator
	filter     lowPass
	amp        amplifier
	sampleRate float32
	volume     float32
	release    float32

	frames   int
	endFrame int // valid after NoteOff
}

// NoteFrequency returns the frequency of a MIDI note number in Hz, A4 (69)
// being 440 Hz.
func NoteFrequency(note uint8) float32 {
	return 440 * math32.Pow(2, (float32(note)-69)/12)
}

// NewVoice returns a voice playing the given note. It fails with
// ErrInvalidEnvelope if the envelope in p is not valid, and if the sample
// rate is not positive.
func NewVoice(sampleRate float32, note uint8, p Params) (*Voice, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("synth: invalid sample rate %v", sampleRate)
	}
	cutoff := p.Cutoff * math32.Pow(2, (float32(int(note)-60)*p.KeyTrack)/12)
	return &Voice{
		osc:        newSquareOscillator(sampleRate, NoteFrequency(note)),
		filter:     newLowPass(sampleRate, cutoff, p.Q),
		amp:        newAmplifier(sampleRate, p),
		sampleRate: sampleRate,
		volume:     p.Volume,
		release:    p.Release,
	}, nil
}

// MustVoice is like NewVoice but panics on invalid parameters.
func MustVoice(sampleRate float32, note uint8, p Params) *Voice {
	v, err := NewVoice(sampleRate, note, p)
	if err != nil {
		panic(err)
	}
	return v
}

// Process returns the next sample. ok is false once the voice has been
// released and its release time has passed; no more samples follow.
func (v *Voice) Process() (sample float32, ok bool) {
	if v.amp.state == NoteOff && v.frames >= v.endFrame {
		return 0, false
	}
	y := v.osc.process()
	y = v.filter.process(y)
	y = v.amp.process(y)
	v.frames++
	return y * v.volume, true
}

// NoteOff releases the note. Calling it more than once has no effect.
func (v *Voice) NoteOff() {
	if v.amp.state == NoteOff {
		return
	}
	v.amp.noteOff()
	v.endFrame = v.frames + int(v.sampleRate*v.release)
}

// Frames returns how many samples the voice has produced.
func (v *Voice) Frames() int { return v.frames }

// State returns whether the note is still held.
func (v *Voice) State() State { return v.amp.state }
