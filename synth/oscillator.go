package synth

import "github.com/chewxy/math32"

const twoPi = 2 * math32.Pi

// squareOscillator is a band-limited square wave, with PolyBLEP smoothing at
// both edges of the cycle.
type squareOscillator struct {
	w0    float32 // phase increment per frame
	phase float32 // 0..2π
}

func newSquareOscillator(sampleRate, frequency float32) squareOscillator {
	return squareOscillator{w0: twoPi * frequency / sampleRate}
}

func (o *squareOscillator) process() float32 {
	y := float32(-1)
	if o.phase < math32.Pi {
		y = 1
	}
	y += o.polyBLEP(0)
	y -= o.polyBLEP(0.5)
	o.phase += o.w0
	if o.phase >= twoPi {
		o.phase -= twoPi
	}
	return y
}

// polyBLEP returns the correction for a discontinuity at the given offset of
// the cycle (0 = rising edge, 0.5 = falling edge).
func (o *squareOscillator) polyBLEP(offset float32) float32 {
	dt := o.w0 / twoPi
	t := o.phase/twoPi + offset
	if t >= 1 {
		t -= 1
	}
	switch {
	case t <= dt:
		a := t / dt
		return a + a - a*a - 1
	case t >= 1-dt:
		a := (t - 1) / dt
		return a*a + a + a + 1
	}
	return 0
}
