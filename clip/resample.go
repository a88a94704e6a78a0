package clip

import "math"

// ResampledLen returns the number of frames a clip of the given length has
// after resampling from one rate to another.
func ResampledLen(frames int, from, to float64) int {
	if frames <= 0 || from <= 0 || to <= 0 {
		return 0
	}
	if from == to {
		return frames
	}
	return int(math.Round(float64(frames) * to / from))
}

// Resample converts mono samples from one rate to another using linear
// interpolation. The result is written to dst, which is grown as needed, and
// returned.
func Resample(dst, src []float32, from, to float64) []float32 {
	n := ResampledLen(len(src), from, to)
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	if from == to {
		copy(dst, src)
		return dst
	}
	step := from / to
	last := len(src) - 1
	for i := range dst {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			dst[i] = src[last]
			continue
		}
		frac := float32(pos - float64(j))
		dst[i] = src[j] + (src[j+1]-src[j])*frac
	}
	return dst
}
