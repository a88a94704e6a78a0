package vvvst

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"
)

// NumChannels is the number of output channels the plugin exposes to the
// host. In stereo mode, channel group i writes to channels 2*i and 2*i+1.
const NumChannels = 64

type (
	// TrackID identifies a track. It is opaque; the UI assigns it.
	TrackID string

	// VoiceKey identifies a singing voice clip. The empty key means "no
	// voice", i.e. the phrase is synthesized from its notes.
	VoiceKey string

	// Note is one note of a phrase. Start and End are in seconds, relative to
	// the start of the project (not the phrase).
	Note struct {
		Start      float32 `yaml:"start"`
		End        float32 `yaml:"end"`
		NoteNumber uint8   `yaml:"noteNumber"`
	}

	// Phrase is a timed request to produce audio on a track: either a
	// pre-rendered voice clip (Voice non-empty), or a sequence of notes to
	// synthesize. Phrases are values; two phrases with equal fields are the
	// same phrase.
	Phrase struct {
		Start   float32  `yaml:"start"`
		TrackID TrackID  `yaml:"trackId"`
		Voice   VoiceKey `yaml:"voice,omitempty"`
		Notes   []Note   `yaml:"notes,flow,omitempty"`
	}

	// PhraseKey is the canonical encoding of a Phrase, usable as a map key.
	PhraseKey string

	// PhraseSet is a set of phrases, keyed by their canonical encoding.
	PhraseSet map[PhraseKey]Phrase

	// Track is an independent mix bus.
	Track struct {
		Name string  `yaml:"name"`
		Solo bool    `yaml:"solo,omitempty"`
		Mute bool    `yaml:"mute,omitempty"`
		Pan  float32 `yaml:"pan"`
		Gain float32 `yaml:"gain"`
	}

	// ChannelMode selects whether each track writes to a channel pair or a
	// single channel.
	ChannelMode int

	// Routing maps tracks to output channel groups.
	Routing struct {
		ChannelMode  ChannelMode       `yaml:"channelMode"`
		ChannelIndex map[TrackID]uint8 `yaml:"channelIndex,omitempty"`
	}
)

const (
	Stereo ChannelMode = iota
	Mono
)

func (v VoiceKey) IsNone() bool { return v == "" }

// HasVoice reports whether the phrase refers to a pre-rendered clip.
func (p Phrase) HasVoice() bool { return !p.Voice.IsNone() }

// Key returns the canonical encoding of the phrase. -0 is folded into +0 and
// all NaNs into one NaN, so that phrases comparing equal field by field get
// equal keys.
func (p Phrase) Key() PhraseKey {
	var b strings.Builder
	b.Grow(16 + len(p.TrackID) + len(p.Voice) + 9*len(p.Notes))
	var scratch [8]byte
	writeStr := func(s string) {
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(s)))
		b.Write(scratch[:4])
		b.WriteString(s)
	}
	writeFloat := func(f float32) {
		binary.LittleEndian.PutUint32(scratch[:4], canonicalBits(f))
		b.Write(scratch[:4])
	}
	writeFloat(p.Start)
	writeStr(string(p.TrackID))
	writeStr(string(p.Voice))
	for _, n := range p.Notes {
		writeFloat(n.Start)
		writeFloat(n.End)
		b.WriteByte(n.NoteNumber)
	}
	return PhraseKey(b.String())
}

func canonicalBits(f float32) uint32 {
	switch {
	case f == 0:
		return 0
	case f != f:
		return 0x7fc00000
	}
	return math.Float32bits(f)
}

// Copy returns a deep copy of the phrase.
func (p Phrase) Copy() Phrase {
	p.Notes = slices.Clone(p.Notes)
	return p
}

// NewPhraseSet builds a set out of a list of phrases. Duplicates collapse.
func NewPhraseSet(phrases ...Phrase) PhraseSet {
	ret := make(PhraseSet, len(phrases))
	for _, p := range phrases {
		ret[p.Key()] = p.Copy()
	}
	return ret
}

// Contains reports whether the set holds a phrase equal to p.
func (s PhraseSet) Contains(p Phrase) bool {
	_, ok := s[p.Key()]
	return ok
}

// Difference returns the phrases of s that are not in other.
func (s PhraseSet) Difference(other PhraseSet) PhraseSet {
	ret := PhraseSet{}
	for k, p := range s {
		if _, ok := other[k]; !ok {
			ret[k] = p
		}
	}
	return ret
}

// Equal reports whether the sets contain exactly the same phrases.
func (s PhraseSet) Equal(other PhraseSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Keys returns the keys of the set in ascending order.
func (s PhraseSet) Keys() []PhraseKey {
	keys := make([]PhraseKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Sorted returns the phrases in key order, which is deterministic.
func (s PhraseSet) Sorted() []Phrase {
	keys := s.Keys()
	ret := make([]Phrase, len(keys))
	for i, k := range keys {
		ret[i] = s[k]
	}
	return ret
}

// Clone returns a shallow copy of the set. Phrases are treated as immutable
// once they are in a set, so sharing their note slices is fine.
func (s PhraseSet) Clone() PhraseSet {
	ret := make(PhraseSet, len(s))
	for k, p := range s {
		ret[k] = p
	}
	return ret
}

// MissingVoices returns, in sorted order, the voice keys referenced by the
// phrases for which has returns false.
func (s PhraseSet) MissingVoices(has func(VoiceKey) bool) []VoiceKey {
	var ret []VoiceKey
	for _, p := range s {
		if p.HasVoice() && !has(p.Voice) && !slices.Contains(ret, p.Voice) {
			ret = append(ret, p.Voice)
		}
	}
	slices.Sort(ret)
	return ret
}

// DefaultRouting returns stereo routing with no explicit channel indices; all
// tracks go to channel group 0.
func DefaultRouting() Routing {
	return Routing{ChannelMode: Stereo, ChannelIndex: map[TrackID]uint8{}}
}

// ChannelGroup returns the channel group of the track; unmapped tracks go to
// group 0.
func (r Routing) ChannelGroup(id TrackID) int {
	return int(r.ChannelIndex[id])
}

// Copy returns a deep copy of the routing.
func (r Routing) Copy() Routing {
	idx := make(map[TrackID]uint8, len(r.ChannelIndex))
	for k, v := range r.ChannelIndex {
		idx[k] = v
	}
	r.ChannelIndex = idx
	return r
}

func (m ChannelMode) String() string {
	switch m {
	case Stereo:
		return "stereo"
	case Mono:
		return "mono"
	}
	return fmt.Sprintf("ChannelMode(%d)", int(m))
}

func (m ChannelMode) MarshalText() ([]byte, error) {
	switch m {
	case Stereo, Mono:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("invalid channel mode %d", int(m))
}

func (m *ChannelMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "stereo", "":
		*m = Stereo
	case "mono":
		*m = Mono
	default:
		return fmt.Errorf("unknown channel mode %q", text)
	}
	return nil
}

// Gains returns the left and right multipliers of the track, including pan
// and gain. The pan law is linear: negative pan attenuates the right channel,
// positive pan the left.
func (t Track) Gains() (left, right float32) {
	left, right = 1, 1
	if t.Pan < 0 {
		right = 1 + t.Pan
	} else {
		left = 1 - t.Pan
	}
	return left * t.Gain, right * t.Gain
}

// AnySolo reports whether any of the tracks is soloed.
func AnySolo(tracks map[TrackID]Track) bool {
	for _, t := range tracks {
		if t.Solo {
			return true
		}
	}
	return false
}

// Audible reports whether the track should be heard, given whether any track
// is soloed. When a track is soloed, only soloed tracks play; otherwise muted
// tracks are skipped.
func (t Track) Audible(anySolo bool) bool {
	if anySolo {
		return t.Solo
	}
	return !t.Mute
}
