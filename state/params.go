package state

import (
	"maps"
	"slices"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/clip"
)

type (
	// Params are the plugin parameters that only the mix updater and the UI
	// need. The render step never reads them.
	Params struct {
		Project string
		Phrases vvvst.PhraseSet
		Voices  map[vvvst.VoiceKey]*clip.Voice
	}

	// CriticalParams are read by the render step on every callback; their
	// write lock must only ever be held briefly.
	CriticalParams struct {
		Tracks  map[vvvst.TrackID]vvvst.Track
		Routing vvvst.Routing
	}
)

func NewParams() Params {
	return Params{Phrases: vvvst.PhraseSet{}, Voices: map[vvvst.VoiceKey]*clip.Voice{}}
}

func NewCriticalParams() CriticalParams {
	return CriticalParams{Tracks: map[vvvst.TrackID]vvvst.Track{}, Routing: vvvst.DefaultRouting()}
}

// Copy returns a copy that shares no maps with p. Voices and phrases are
// immutable and are shared.
func (p Params) Copy() Params {
	return Params{Project: p.Project, Phrases: p.Phrases.Clone(), Voices: maps.Clone(p.Voices)}
}

func (c CriticalParams) Copy() CriticalParams {
	return CriticalParams{Tracks: maps.Clone(c.Tracks), Routing: c.Routing.Copy()}
}

// VoiceKeys returns the keys of the voices in sorted order.
func (p Params) VoiceKeys() []vvvst.VoiceKey {
	return slices.Sorted(maps.Keys(p.Voices))
}

// HasVoice reports whether a voice is stored under the key.
func (p Params) HasVoice(key vvvst.VoiceKey) bool {
	_, ok := p.Voices[key]
	return ok
}
