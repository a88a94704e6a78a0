package clip

import (
	"bytes"
	"fmt"
	"sync"
)

type (
	// PCM is decoded audio: interleaved samples in [-1, 1].
	PCM struct {
		SampleRate int
		Channels   int
		Samples    []float32
	}

	// Decoder decodes one container format completely into memory.
	Decoder interface {
		Decode(data []byte) (*PCM, error)
	}

	// Registry maps format names to decoders, and picks the format of a clip
	// from its leading bytes.
	Registry struct {
		codecs map[string]Decoder
		mtx    sync.Mutex
	}
)

const (
	FormatWAV    = "wav"
	FormatAIFF   = "aiff"
	FormatMP3    = "mp3"
	FormatVorbis = "ogg vorbis"
)

// Frames returns the number of frames, i.e. samples per channel.
func (p *PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// DefaultRegistry returns a registry with all the formats of this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FormatWAV, WAVDecoder{})
	r.Register(FormatAIFF, AIFFDecoder{})
	r.Register(FormatMP3, MP3Decoder{})
	r.Register(FormatVorbis, VorbisDecoder{})
	return r
}

func (r *Registry) Register(format string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.codecs[format] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	d, ok := r.codecs[format]
	return d, ok
}

// Decode sniffs the format of data and decodes it with the registered
// decoder.
func (r *Registry) Decode(data []byte) (format string, pcm *PCM, err error) {
	format = Sniff(data)
	if format == "" {
		return "", nil, ErrUnknownFormat
	}
	d, ok := r.Get(format)
	if !ok {
		return format, nil, fmt.Errorf("%w: no decoder registered for %s", ErrUnknownFormat, format)
	}
	pcm, err = d.Decode(data)
	if err != nil {
		return format, nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	if pcm.SampleRate <= 0 {
		return format, nil, fmt.Errorf("decoding %s: %w: %d Hz", format, ErrInvalidSampleRate, pcm.SampleRate)
	}
	if pcm.Channels <= 0 {
		return format, nil, fmt.Errorf("decoding %s: %w: %d channels", format, ErrUnsupportedFormat, pcm.Channels)
	}
	if pcm.Frames() == 0 {
		return format, nil, fmt.Errorf("decoding %s: %w", format, ErrEmptyClip)
	}
	return format, pcm, nil
}

// Sniff returns the format of data judging by its magic bytes, or "" if the
// format is not recognized.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("FORM")) &&
		(bytes.Equal(data[8:12], []byte("AIFF")) || bytes.Equal(data[8:12], []byte("AIFC"))):
		return FormatAIFF
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("OggS")):
		return FormatVorbis
	case len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3 // bare MPEG audio frame sync
	}
	return ""
}

// intScale returns the divisor that maps signed integer samples of the given
// bit depth to [-1, 1].
func intScale(bitDepth int) float32 {
	return float32(int64(1) << (bitDepth - 1))
}
