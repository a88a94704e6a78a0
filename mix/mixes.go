// Package mix keeps the per-track audio of all phrases rendered, and patches
// it incrementally as phrases come and go.
package mix

import (
	"sync"

	"github.com/vvvst/vvvst"
)

// Mixes is the rendered audio of all phrases, one buffer per track. The
// embedded lock guards all fields: the Updater is the only writer, the render
// step reads with TryRLock.
type Mixes struct {
	sync.RWMutex

	// Samples holds the mono mix of each track. A track buffer may be shorter
	// than SamplesLen; the missing tail is silence. A track without a buffer
	// is silent.
	Samples map[vvvst.TrackID][]float32
	// SampleRate is the rate Samples were rendered at. 0 means nothing has
	// been rendered yet.
	SampleRate float32
	// SamplesLen is the length of the mix in frames. It only grows while the
	// sample rate stays the same.
	SamplesLen int
	// Source is exactly the set of phrases Samples were rendered from.
	Source vvvst.PhraseSet

	// extents records where each phrase of Source was rendered, and with
	// which voice clip.
	extents map[vvvst.PhraseKey]extent
}

func NewMixes() *Mixes {
	return &Mixes{
		Samples: map[vvvst.TrackID][]float32{},
		Source:  vvvst.PhraseSet{},
		extents: map[vvvst.PhraseKey]extent{},
	}
}

// Empty reports whether there is nothing to play. The caller must hold the
// read lock.
func (m *Mixes) Empty() bool {
	return m.SamplesLen == 0
}

// DropTracks invalidates the buffers of deleted tracks. Their phrases are
// forgotten too, so that if they are still live, the next update renders them
// again. It must not run concurrently with Update; Updater.DropTracks takes
// care of that.
func (m *Mixes) DropTracks(ids ...vvvst.TrackID) {
	if len(ids) == 0 {
		return
	}
	m.Lock()
	defer m.Unlock()
	source := m.Source.Clone()
	extents := make(map[vvvst.PhraseKey]extent, len(m.extents))
	for k, e := range m.extents {
		extents[k] = e
	}
	for _, id := range ids {
		delete(m.Samples, id)
		for k, p := range source {
			if p.TrackID == id {
				delete(source, k)
				delete(extents, k)
			}
		}
	}
	m.Source = source
	m.extents = extents
}
