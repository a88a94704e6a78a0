package synth

import "github.com/chewxy/math32"

// State is the phase of a voice. NoteOff is terminal.
type State int

const (
	NoteOn State = iota
	NoteOff
)

// settleTimeConstants is how many time constants an exponential segment runs
// before it is considered to have reached its target.
const settleTimeConstants = 7

type amplifier struct {
	dt                     float32
	attack, decay, sustain float32
	release                float32

	t, gain     float32
	state       State
	noteOffGain float32
	noteOffTime float32
}

func newAmplifier(sampleRate float32, p Params) amplifier {
	return amplifier{
		dt:      1 / sampleRate,
		attack:  p.Attack,
		decay:   p.Decay,
		sustain: p.Sustain,
		release: p.Release,
	}
}

func (a *amplifier) noteOff() {
	a.state = NoteOff
	a.noteOffTime = a.t
	a.noteOffGain = a.gain
}

func (a *amplifier) process(x float32) float32 {
	switch a.state {
	case NoteOn:
		if a.t < a.attack {
			a.gain = a.t / a.attack
		} else {
			a.gain = expSegment(1, a.sustain, a.t-a.attack, a.decay)
		}
	case NoteOff:
		a.gain = expSegment(a.noteOffGain, 0, a.t-a.noteOffTime, a.release)
	}
	a.t += a.dt
	return x * a.gain
}

// expSegment moves exponentially from start towards end, reaching end exactly
// after settleTimeConstants time constants.
func expSegment(start, end, t, tau float32) float32 {
	if t >= tau*settleTimeConstants {
		return end
	}
	return end + (start-end)*math32.Exp(-t/tau)
}
