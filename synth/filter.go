package synth

import "github.com/chewxy/math32"

// lowPass is a two-pole resonant low-pass biquad, with the coefficients from
// the RBJ audio EQ cookbook, normalized by a0.
type lowPass struct {
	a1, a2, b0, b1, b2 float32
	x1, x2, y1, y2     float32
}

func newLowPass(sampleRate, cutoff, q float32) lowPass {
	w0 := twoPi * cutoff / sampleRate
	cos := math32.Cos(w0)
	alpha := math32.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return lowPass{
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
		b0: (1 - cos) / 2 / a0,
		b1: (1 - cos) / a0,
		b2: (1 - cos) / 2 / a0,
	}
}

func (f *lowPass) process(x float32) float32 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}
