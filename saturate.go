package vvvst

import (
	"math"
	"unsafe"
)

// Float is the set of sample types the saturating helpers work on.
type Float interface {
	~float32 | ~float64
}

// MaxOf returns the largest finite value of the float type.
func MaxOf[T Float]() T {
	var z T
	if unsafe.Sizeof(z) == 4 {
		return T(math.MaxFloat32)
	}
	m := math.MaxFloat64
	return T(m)
}

func saturate[T Float](v T) T {
	m := MaxOf[T]()
	switch {
	case v > m:
		return m
	case v < -m:
		return -m
	}
	return v
}

// SaturatingAdd returns a+b clamped to the finite range of T. Unlike plain
// addition, the result is never infinite, so it cannot poison a buffer that
// keeps being accumulated into. NaN inputs still give NaN.
func SaturatingAdd[T Float](a, b T) T { return saturate(a + b) }

// SaturatingSub returns a-b clamped to the finite range of T.
func SaturatingSub[T Float](a, b T) T { return saturate(a - b) }

// SaturatingMul returns a*b clamped to the finite range of T.
func SaturatingMul[T Float](a, b T) T { return saturate(a * b) }

// SaturatingAccumulate adds src*gain into dst element-wise, saturating. Only
// min(len(dst), len(src)) elements are touched.
func SaturatingAccumulate(dst, src []float32, gain float32) {
	n := min(len(dst), len(src))
	dst, src = dst[:n], src[:n]
	for i := range src {
		dst[i] = SaturatingAdd(dst[i], SaturatingMul(src[i], gain))
	}
}
