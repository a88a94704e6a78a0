package clip_test

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/vvvst/vvvst/clip"
	"github.com/vvvst/vvvst/internal/cliptest"
)

func TestSniff(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct {
		name string
		data []byte
		want string
	}{
		{"wav", cliptest.Constant(8000, 4, 1), clip.FormatWAV},
		{"aiff", []byte("FORM\x00\x00\x00\x00AIFF"), clip.FormatAIFF},
		{"aifc", []byte("FORM\x00\x00\x00\x00AIFC"), clip.FormatAIFF},
		{"ogg", []byte("OggS\x00\x02"), clip.FormatVorbis},
		{"id3", []byte("ID3\x04\x00"), clip.FormatMP3},
		{"mpeg sync", []byte{0xFF, 0xFB, 0x90, 0x00}, clip.FormatMP3},
		{"riff but not wave", []byte("RIFF\x00\x00\x00\x00AVI "), ""},
		{"empty", nil, ""},
		{"text", []byte("hello world"), ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := clip.Sniff(tt.data); got != tt.want {
				t.Fatalf("Sniff = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewVoiceMono16(t *testing.T) {
	t.Parallel()
	data := cliptest.WAV(8000, 1, []int16{0, 16384, -16384, 32767, -32768})
	v, err := clip.NewVoice(data)
	if err != nil {
		t.Fatalf("NewVoice failed: %v", err)
	}
	if v.Format() != clip.FormatWAV || v.SampleRate() != 8000 || v.Channels() != 1 || v.Frames() != 5 {
		t.Fatalf("unexpected metadata: format %s, %d Hz, %d channels, %d frames", v.Format(), v.SampleRate(), v.Channels(), v.Frames())
	}
	got, err := v.Render(8000)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768, -1}
	if !slices.Equal(got, want) {
		t.Fatalf("Render = %v, want %v", got, want)
	}
}

func TestNewVoiceDownmixesStereo(t *testing.T) {
	t.Parallel()
	data := cliptest.WAV(16000, 2, []int16{16384, 0, -16384, -16384, 8192, 24576})
	v, err := clip.NewVoice(data)
	if err != nil {
		t.Fatalf("NewVoice failed: %v", err)
	}
	if v.Channels() != 2 || v.Frames() != 3 {
		t.Fatalf("got %d channels, %d frames; want 2, 3", v.Channels(), v.Frames())
	}
	got, _ := v.Render(16000)
	if want := []float32{0.25, -0.5, 0.5}; !slices.Equal(got, want) {
		t.Fatalf("Render = %v, want %v", got, want)
	}
}

func TestNewVoice8Bit(t *testing.T) {
	t.Parallel()
	v, err := clip.NewVoice(cliptest.WAV8(8000, 1, []uint8{128, 192, 64, 0}))
	if err != nil {
		t.Fatalf("NewVoice failed: %v", err)
	}
	got, _ := v.Render(8000)
	if want := []float32{0, 0.5, -0.5, -1}; !slices.Equal(got, want) {
		t.Fatalf("Render = %v, want %v", got, want)
	}
}

func TestNewVoiceFloat(t *testing.T) {
	t.Parallel()
	v, err := clip.NewVoice(cliptest.WAVFloat(8000, 1, []float32{0, 0.5, -0.25, 1, -1}))
	if err != nil {
		t.Fatalf("NewVoice failed: %v", err)
	}
	if v.Format() != clip.FormatWAV || v.Frames() != 5 {
		t.Fatalf("unexpected metadata: format %s, %d frames", v.Format(), v.Frames())
	}
	got, _ := v.Render(8000)
	if want := []float32{0, 0.5, -0.25, 1, -1}; !slices.Equal(got, want) {
		t.Fatalf("Render = %v, want %v", got, want)
	}
}

func TestNewVoiceErrors(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct {
		name string
		data []byte
		want error
	}{
		{"garbage", []byte("definitely not audio"), clip.ErrUnknownFormat},
		{"empty", nil, clip.ErrUnknownFormat},
		{"no frames", cliptest.WAV(8000, 1, nil), clip.ErrEmptyClip},
		{"64-bit float wav", cliptest.WAVChunk(8000, 1, 64, 3, make([]byte, 16)), clip.ErrUnsupportedFormat},
		{"alaw wav", cliptest.WAVChunk(8000, 1, 8, 6, make([]byte, 16)), clip.ErrUnsupportedFormat},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := clip.NewVoice(tt.data); !errors.Is(err, tt.want) {
				t.Fatalf("NewVoice error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVoiceOwnsBytes(t *testing.T) {
	t.Parallel()
	data := cliptest.Constant(8000, 10, 100)
	v, err := clip.NewVoice(data)
	if err != nil {
		t.Fatalf("NewVoice failed: %v", err)
	}
	data[0] = 'X'
	b := v.Bytes()
	if b[0] != 'R' {
		t.Fatal("voice should keep its own copy of the input")
	}
	b[1] = 'X'
	if v.Bytes()[1] != 'I' {
		t.Fatal("Bytes should return a copy")
	}
	if v.Size() != len(data) {
		t.Fatalf("Size = %d, want %d", v.Size(), len(data))
	}
	w, _ := clip.NewVoice(v.Bytes())
	if !v.Equal(w) || v.Equal(nil) {
		t.Fatal("voices from the same bytes should be equal")
	}
}

func TestVoiceResampledLength(t *testing.T) {
	t.Parallel()
	v, err := clip.NewVoice(cliptest.Sine(44100, 44100, 440))
	if err != nil {
		t.Fatalf("NewVoice failed: %v", err)
	}
	if math.Abs(float64(v.Seconds())-1) > 1e-6 {
		t.Fatalf("Seconds = %v, want 1", v.Seconds())
	}
	if v.Duration() != time.Second {
		t.Fatalf("Duration = %v, want 1s", v.Duration())
	}
	if got := v.ResampledLen(48000); got != 48000 {
		t.Fatalf("ResampledLen = %d, want 48000", got)
	}
	samples, err := v.Render(48000)
	if err != nil || len(samples) != 48000 {
		t.Fatalf("Render = %d samples, %v; want 48000", len(samples), err)
	}
	if _, err := v.Render(0); !errors.Is(err, clip.ErrInvalidSampleRate) {
		t.Fatalf("Render(0) error = %v, want ErrInvalidSampleRate", err)
	}
}

func TestResampleLinear(t *testing.T) {
	t.Parallel()
	got := clip.Resample(nil, []float32{0, 1, 2, 3}, 1, 2)
	if want := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}; !slices.Equal(got, want) {
		t.Fatalf("upsampled = %v, want %v", got, want)
	}
	got = clip.Resample(got, []float32{0, 1, 2, 3, 4, 5}, 2, 1)
	if want := []float32{0, 2, 4}; !slices.Equal(got, want) {
		t.Fatalf("downsampled = %v, want %v", got, want)
	}
	if n := clip.ResampledLen(44100, 44100, 0); n != 0 {
		t.Fatalf("ResampledLen to 0 Hz = %d, want 0", n)
	}
}

func TestMono(t *testing.T) {
	t.Parallel()
	in := []float32{1, 1, 1, 1, 0, 0, 0, 2}
	if got := clip.Mono(in, 4); !slices.Equal(got, []float32{1, 0.5}) {
		t.Fatalf("Mono(4 channels) = %v", got)
	}
	if got := clip.Mono(in, 1); &got[0] != &in[0] {
		t.Fatal("mono input should pass through")
	}
}

func TestRegistryCustomDecoder(t *testing.T) {
	t.Parallel()
	r := clip.NewRegistry()
	if _, err := r.NewVoice(cliptest.Constant(8000, 4, 1)); !errors.Is(err, clip.ErrUnknownFormat) {
		t.Fatalf("empty registry error = %v, want ErrUnknownFormat", err)
	}
	r.Register(clip.FormatWAV, clip.WAVDecoder{})
	if _, ok := r.Get(clip.FormatWAV); !ok {
		t.Fatal("registered decoder not found")
	}
	if _, err := r.NewVoice(cliptest.Constant(8000, 4, 1)); err != nil {
		t.Fatalf("NewVoice failed: %v", err)
	}
}
