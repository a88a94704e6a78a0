package clip

import (
	"bytes"
	"fmt"
	"math"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// WAVDecoder decodes integer PCM and 32-bit IEEE float .wav files with
// go-audio/wav.
type WAVDecoder struct{}

func (WAVDecoder) Decode(data []byte) (*PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnknownFormat)
	}
	isFloat := dec.WavAudioFormat == wavFormatFloat
	switch dec.WavAudioFormat {
	case wavFormatPCM, wavFormatFloat, wavFormatExtensible:
	default:
		return nil, fmt.Errorf("%w: wav format tag %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	switch {
	case isFloat && dec.BitDepth == 32:
	case !isFloat && (dec.BitDepth == 8 || dec.BitDepth == 16 || dec.BitDepth == 24 || dec.BitDepth == 32):
	default:
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading wav samples: %w", err)
	}
	if isFloat {
		// the decoder hands out the raw 32 bits of each sample as an int
		samples := make([]float32, len(buf.Data))
		for i, v := range buf.Data {
			samples[i] = math.Float32frombits(uint32(int32(v)))
		}
		return &PCM{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans), Samples: samples}, nil
	}
	bitDepth := int(dec.BitDepth)
	scale := intScale(bitDepth)
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			v -= 128 // 8-bit wav is unsigned
		}
		samples[i] = float32(v) / scale
	}
	return &PCM{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans), Samples: samples}, nil
}
