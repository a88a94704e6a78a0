package clip

import "github.com/viterin/vek/vek32"

// Mono downmixes interleaved samples to one channel by averaging. Mono input
// is returned as is.
func Mono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	dst := make([]float32, frames)
	if channels == 2 {
		right := make([]float32, frames)
		for f := range frames {
			dst[f] = samples[2*f]
			right[f] = samples[2*f+1]
		}
		vek32.Add_Inplace(dst, right)
		vek32.MulNumber_Inplace(dst, 0.5)
		return dst
	}
	inv := 1 / float32(channels)
	for f := range frames {
		var sum float32
		for _, v := range samples[f*channels : (f+1)*channels] {
			sum += v
		}
		dst[f] = sum * inv
	}
	return dst
}
