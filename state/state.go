// Package state serializes the plugin parameters for the host to save with
// the project.
//
// A state blob is zstd-compressed. Decompressed, it starts with the magic
// "VVST" and a little-endian uint32 version, followed by length-prefixed
// sections whose layout depends on the version. Version 1 holds two YAML
// documents: the parameters and the critical parameters.
package state

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/clip"
)

// Version is the state version written by Marshal.
const Version = 1

const (
	magic = "VVST"
	// maxDecodedSize bounds the decompressed size of a state blob.
	maxDecodedSize = 1 << 30
)

var (
	ErrUnsupportedVersion = errors.New("state: unsupported version")
	ErrCorruptState       = errors.New("state: corrupt state")
)

type (
	paramsV1 struct {
		Project string                    `yaml:"project"`
		Phrases []vvvst.Phrase            `yaml:"phrases"`
		Voices  map[vvvst.VoiceKey]string `yaml:"voices"` // base64 of the encoded clips
	}

	criticalParamsV1 struct {
		Tracks  map[vvvst.TrackID]vvvst.Track `yaml:"tracks"`
		Routing vvvst.Routing                 `yaml:"routing"`
	}
)

// Marshal serializes the parameters into a compressed state blob.
func Marshal(p Params, c CriticalParams) ([]byte, error) {
	wp := paramsV1{
		Project: p.Project,
		Phrases: p.Phrases.Sorted(),
		Voices:  make(map[vvvst.VoiceKey]string, len(p.Voices)),
	}
	for k, v := range p.Voices {
		wp.Voices[k] = base64.StdEncoding.EncodeToString(v.Bytes())
	}
	paramsYAML, err := yaml.Marshal(wp)
	if err != nil {
		return nil, fmt.Errorf("state: could not marshal params: %w", err)
	}
	criticalYAML, err := yaml.Marshal(criticalParamsV1{Tracks: c.Tracks, Routing: c.Routing})
	if err != nil {
		return nil, fmt.Errorf("state: could not marshal critical params: %w", err)
	}
	var frame bytes.Buffer
	frame.WriteString(magic)
	frame.Write(binary.LittleEndian.AppendUint32(nil, Version))
	writeSection(&frame, paramsYAML)
	writeSection(&frame, criticalYAML)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("state: could not create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(frame.Bytes(), nil), nil
}

// Unmarshal parses a state blob. Voices are decoded again; a clip that no
// longer decodes makes the whole blob invalid.
func Unmarshal(blob []byte) (Params, CriticalParams, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return Params{}, CriticalParams{}, fmt.Errorf("state: could not create zstd decoder: %w", err)
	}
	defer dec.Close()
	frame, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return Params{}, CriticalParams{}, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	if len(frame) < len(magic)+4 || string(frame[:len(magic)]) != magic {
		return Params{}, CriticalParams{}, fmt.Errorf("%w: bad magic", ErrCorruptState)
	}
	version := binary.LittleEndian.Uint32(frame[len(magic):])
	rest := frame[len(magic)+4:]
	switch version {
	case 1:
		return unmarshalV1(rest)
	}
	return Params{}, CriticalParams{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
}

func unmarshalV1(rest []byte) (Params, CriticalParams, error) {
	paramsYAML, rest, err := readSection(rest)
	if err != nil {
		return Params{}, CriticalParams{}, err
	}
	criticalYAML, _, err := readSection(rest)
	if err != nil {
		return Params{}, CriticalParams{}, err
	}
	var wp paramsV1
	if err := yaml.Unmarshal(paramsYAML, &wp); err != nil {
		return Params{}, CriticalParams{}, fmt.Errorf("%w: params: %w", ErrCorruptState, err)
	}
	var wc criticalParamsV1
	if err := yaml.Unmarshal(criticalYAML, &wc); err != nil {
		return Params{}, CriticalParams{}, fmt.Errorf("%w: critical params: %w", ErrCorruptState, err)
	}
	p := NewParams()
	p.Project = wp.Project
	p.Phrases = vvvst.NewPhraseSet(wp.Phrases...)
	for k, encoded := range wp.Voices {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return Params{}, CriticalParams{}, fmt.Errorf("%w: voice %q: %w", ErrCorruptState, k, err)
		}
		v, err := clip.NewVoice(data)
		if err != nil {
			return Params{}, CriticalParams{}, fmt.Errorf("%w: voice %q: %w", ErrCorruptState, k, err)
		}
		p.Voices[k] = v
	}
	c := NewCriticalParams()
	if wc.Tracks != nil {
		c.Tracks = wc.Tracks
	}
	c.Routing.ChannelMode = wc.Routing.ChannelMode
	if wc.Routing.ChannelIndex != nil {
		c.Routing.ChannelIndex = wc.Routing.ChannelIndex
	}
	return p, c, nil
}

// MarshalString returns the state blob as standard base64, which is how
// hosts that cannot store binary chunks receive it.
func MarshalString(p Params, c CriticalParams) (string, error) {
	blob, err := Marshal(p, c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// UnmarshalString parses a base64 state blob.
func UnmarshalString(s string) (Params, CriticalParams, error) {
	blob, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Params{}, CriticalParams{}, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	return Unmarshal(blob)
}

func writeSection(buf *bytes.Buffer, section []byte) {
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(section))))
	buf.Write(section)
}

func readSection(b []byte) (section, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated section header", ErrCorruptState)
	}
	n := binary.LittleEndian.Uint32(b)
	b = b[4:]
	if uint64(n) > uint64(len(b)) {
		return nil, nil, fmt.Errorf("%w: section of %d bytes, only %d left", ErrCorruptState, n, len(b))
	}
	return slices.Clip(b[:n]), b[n:], nil
}
