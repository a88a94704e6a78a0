// Package midiimport turns standard MIDI files into note phrases.
package midiimport

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/vvvst/vvvst"
)

var (
	ErrTimeFormat = errors.New("midiimport: only metric time formats are supported")
	ErrNoNotes    = errors.New("midiimport: the file contains no notes")
)

const defaultBPM = 120

type (
	// Options control how MIDI tracks map to phrases.
	Options struct {
		// TrackPrefix is prepended to the MIDI track index to form the track
		// id of each phrase; "midi-" if empty.
		TrackPrefix string
		// Offset is added to every note start and end, in seconds.
		Offset float32
	}

	tempoChange struct {
		tick uint64
		bpm  float64
	}

	// clock converts absolute ticks to seconds through a tempo map.
	clock struct {
		resolution float64
		changes    []tempoChange
	}
)

// Read parses a standard MIDI file and returns one phrase per MIDI track that
// has notes. Notes still held at the end of their track end there.
func Read(r io.Reader, opts Options) ([]vvvst.Phrase, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("midiimport: %w", err)
	}
	return Phrases(s, opts)
}

// Phrases converts an already parsed file.
func Phrases(s *smf.SMF, opts Options) ([]vvvst.Phrase, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, ErrTimeFormat
	}
	if opts.TrackPrefix == "" {
		opts.TrackPrefix = "midi-"
	}
	c := newClock(s, float64(uint16(ticks)))
	var ret []vvvst.Phrase
	for i, track := range s.Tracks {
		notes := trackNotes(track, c, opts.Offset)
		if len(notes) == 0 {
			continue
		}
		start := notes[0].Start
		ret = append(ret, vvvst.Phrase{
			Start:   start,
			TrackID: vvvst.TrackID(opts.TrackPrefix + strconv.Itoa(i)),
			Notes:   notes,
		})
	}
	if len(ret) == 0 {
		return nil, ErrNoNotes
	}
	return ret, nil
}

func trackNotes(track smf.Track, c clock, offset float32) []vvvst.Note {
	type key struct{ channel, key uint8 }
	held := map[key]uint64{}
	var notes []vvvst.Note
	var tick uint64
	for _, ev := range track {
		tick += uint64(ev.Delta)
		var channel, k, velocity uint8
		msg := midi.Message(ev.Message)
		switch {
		case msg.GetNoteStart(&channel, &k, &velocity):
			if _, ok := held[key{channel, k}]; ok {
				// retriggered without a note off; end the previous one here
				notes = append(notes, c.note(held[key{channel, k}], tick, k, offset))
			}
			held[key{channel, k}] = tick
		case msg.GetNoteEnd(&channel, &k):
			if start, ok := held[key{channel, k}]; ok {
				notes = append(notes, c.note(start, tick, k, offset))
				delete(held, key{channel, k})
			}
		}
	}
	for hk, start := range held {
		notes = append(notes, c.note(start, tick, hk.key, offset))
	}
	slices.SortFunc(notes, func(a, b vvvst.Note) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return int(a.NoteNumber) - int(b.NoteNumber)
	})
	return notes
}

// newClock collects the tempo changes of all tracks. In format 1 files they
// live in the first track, but they apply to all.
func newClock(s *smf.SMF, resolution float64) clock {
	c := clock{resolution: resolution}
	for _, track := range s.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				c.changes = append(c.changes, tempoChange{tick: tick, bpm: bpm})
			}
		}
	}
	slices.SortStableFunc(c.changes, func(a, b tempoChange) int {
		switch {
		case a.tick < b.tick:
			return -1
		case a.tick > b.tick:
			return 1
		}
		return 0
	})
	return c
}

// seconds returns the time of an absolute tick.
func (c clock) seconds(tick uint64) float64 {
	var secs float64
	var last uint64
	bpm := float64(defaultBPM)
	for _, ch := range c.changes {
		if ch.tick >= tick {
			break
		}
		secs += float64(ch.tick-last) / c.resolution * 60 / bpm
		last, bpm = ch.tick, ch.bpm
	}
	return secs + float64(tick-last)/c.resolution*60/bpm
}

func (c clock) note(start, end uint64, key uint8, offset float32) vvvst.Note {
	return vvvst.Note{
		Start:      float32(c.seconds(start)) + offset,
		End:        float32(c.seconds(end)) + offset,
		NoteNumber: key,
	}
}
