package clip

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

// AIFFDecoder decodes .aiff files with go-audio/aiff.
type AIFFDecoder struct{}

func (AIFFDecoder) Decode(data []byte) (*PCM, error) {
	dec := aiff.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid aiff file", ErrUnknownFormat)
	}
	dec.ReadInfo()
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit aiff", ErrUnsupportedFormat, bitDepth)
	}
	format := dec.Format()
	if format == nil || format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: aiff without channel layout", ErrUnsupportedFormat)
	}
	scale := intScale(bitDepth)
	buf := &goaudio.IntBuffer{Data: make([]int, 4096), Format: format}
	var samples []float32
	for {
		buf.Data = buf.Data[:cap(buf.Data)]
		n, err := dec.PCMBuffer(buf)
		for _, v := range buf.Data[:n] {
			samples = append(samples, float32(v)/scale)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading aiff samples: %w", err)
		}
		if n == 0 || err != nil {
			break
		}
	}
	return &PCM{SampleRate: format.SampleRate, Channels: format.NumChannels, Samples: samples}, nil
}
