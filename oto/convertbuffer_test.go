package oto_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/oto"
)

func TestAppendFloat32LE(t *testing.T) {
	buffer := vvvst.AudioBuffer{{0.5, -0.25}, {1, -1}}
	prefix := []byte{0xAA}
	got := oto.AppendFloat32LE(prefix, buffer)
	if len(got) != 1+4*4 || got[0] != 0xAA {
		t.Fatalf("len = %d, first byte %x", len(got), got[0])
	}
	want := []float32{0.5, -0.25, 1, -1}
	for i, w := range want {
		if v := math.Float32frombits(binary.LittleEndian.Uint32(got[1+4*i:])); v != w {
			t.Errorf("sample %d = %v, want %v", i, v, w)
		}
	}
}

func TestAppendFloat32LEReusesCapacity(t *testing.T) {
	buffer := make(vvvst.AudioBuffer, 256)
	dst := make([]byte, 0, 256*8)
	allocs := testing.AllocsPerRun(10, func() {
		dst = oto.AppendFloat32LE(dst[:0], buffer)
	})
	if allocs != 0 {
		t.Fatalf("allocated %v times", allocs)
	}
}
