package mix

import (
	"fmt"
	"math"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/clip"
	"github.com/vvvst/vvvst/synth"
)

// extent is the frame range [start, end) a phrase contributes to on its
// track, and the clip it was resolved to (nil when the phrase is
// synthesized from its notes).
type extent struct {
	track      vvvst.TrackID
	start, end int
	voice      *clip.Voice
}

func (e extent) empty() bool { return e.end <= e.start }

// secondsToFrame converts a time to a frame index, rounding down.
func secondsToFrame(t, sampleRate float32) int {
	f := math.Floor(float64(t) * float64(sampleRate))
	switch {
	case f != f:
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// phraseExtent computes where the phrase sounds at the given rate. A phrase
// whose clip is known spans the resampled clip; otherwise its notes are
// synthesized and it spans them including the release tail of the last one.
// Negative frames are cut off.
func phraseExtent(p vvvst.Phrase, voices map[vvvst.VoiceKey]*clip.Voice, sampleRate float32, params synth.Params) extent {
	e := extent{track: p.TrackID}
	if v, ok := voices[p.Voice]; ok && p.HasVoice() {
		e.voice = v
		e.start = secondsToFrame(p.Start, sampleRate)
		e.end = e.start + v.ResampledLen(sampleRate)
	} else {
		// no clip yet: the synth stands in until it arrives
		if len(p.Notes) == 0 {
			return e
		}
		release := params.ReleaseFrames(sampleRate)
		e.start = secondsToFrame(p.Start, sampleRate)
		e.end = e.start
		for _, n := range p.Notes {
			start, end := noteFrames(n, sampleRate)
			e.start = min(e.start, start)
			e.end = max(e.end, end+release)
		}
	}
	e.start = max(e.start, 0)
	e.end = max(e.end, e.start)
	return e
}

// noteFrames returns the frame at which the note starts and the frame at
// which it is released. A note ending before it starts is released at once.
func noteFrames(n vvvst.Note, sampleRate float32) (start, end int) {
	start = secondsToFrame(n.Start, sampleRate)
	end = max(secondsToFrame(n.End, sampleRate), start)
	return start, end
}

// renderPhrase renders the phrase into a new buffer covering exactly its
// extent.
func renderPhrase(p vvvst.Phrase, e extent, sampleRate float32, params synth.Params) ([]float32, error) {
	if e.empty() {
		return nil, nil
	}
	out := make([]float32, e.end-e.start)
	if e.voice != nil {
		samples, err := e.voice.Render(sampleRate)
		if err != nil {
			return nil, fmt.Errorf("rendering voice %q: %w", p.Voice, err)
		}
		// the clip may start before frame 0, in which case its head is cut
		offset := secondsToFrame(p.Start, sampleRate)
		for i, s := range samples {
			if f := offset + i - e.start; f >= 0 && f < len(out) {
				out[f] = s
			}
		}
		return out, nil
	}
	for _, n := range p.Notes {
		if err := renderNote(out, e.start, n, sampleRate, params); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// renderNote runs a synth voice for the note and accumulates its output into
// out, whose first sample is at frame origin.
func renderNote(out []float32, origin int, n vvvst.Note, sampleRate float32, params synth.Params) error {
	v, err := synth.NewVoice(sampleRate, n.NoteNumber, params)
	if err != nil {
		return err
	}
	start, end := noteFrames(n, sampleRate)
	held := end - start
	for i := 0; ; i++ {
		if i == held {
			v.NoteOff()
		}
		s, ok := v.Process()
		if !ok {
			return nil
		}
		if f := start + i - origin; f >= 0 && f < len(out) {
			out[f] = vvvst.SaturatingAdd(out[f], s)
		}
	}
}
