package clip

import (
	"bytes"
	"fmt"

	"github.com/jfreymuth/oggvorbis"
)

// VorbisDecoder decodes Ogg Vorbis streams with oggvorbis.
type VorbisDecoder struct{}

func (VorbisDecoder) Decode(data []byte) (*PCM, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
	}
	return &PCM{SampleRate: format.SampleRate, Channels: format.Channels, Samples: samples}, nil
}
