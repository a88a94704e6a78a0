package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/midiimport"
)

type (
	// Project is an offline rendering job: everything a host and a UI would
	// feed the plugin, in one .yml file. Paths are relative to the file.
	Project struct {
		SampleRate int                           `yaml:"sampleRate"`
		Tracks     map[vvvst.TrackID]vvvst.Track `yaml:"tracks"`
		Routing    vvvst.Routing                 `yaml:"routing"`
		Voices     map[vvvst.VoiceKey]string     `yaml:"voices"`
		Phrases    []vvvst.Phrase                `yaml:"phrases"`
		MIDI       []MIDIImport                  `yaml:"midi"`
	}

	MIDIImport struct {
		File        string  `yaml:"file"`
		TrackPrefix string  `yaml:"trackPrefix"`
		Offset      float32 `yaml:"offset"`
	}

	// job is a loaded project, ready to be fed to the plugin.
	job struct {
		sampleRate int
		tracks     map[vvvst.TrackID]vvvst.Track
		routing    vvvst.Routing
		voices     map[vvvst.VoiceKey][]byte
		phrases    []vvvst.Phrase
	}
)

const defaultSampleRate = 48000

func loadProject(filename string) (*job, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read project: %w", err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("could not parse project %v: %w", filename, err)
	}
	dir := filepath.Dir(filename)
	j := &job{
		sampleRate: p.SampleRate,
		tracks:     p.Tracks,
		routing:    p.Routing,
		voices:     map[vvvst.VoiceKey][]byte{},
		phrases:    p.Phrases,
	}
	if j.sampleRate <= 0 {
		j.sampleRate = defaultSampleRate
	}
	if j.routing.ChannelIndex == nil {
		j.routing.ChannelIndex = map[vvvst.TrackID]uint8{}
	}
	for key, path := range p.Voices {
		clipBytes, err := os.ReadFile(resolve(dir, path))
		if err != nil {
			return nil, fmt.Errorf("could not read voice %q: %w", key, err)
		}
		j.voices[key] = clipBytes
	}
	for _, m := range p.MIDI {
		f, err := os.Open(resolve(dir, m.File))
		if err != nil {
			return nil, fmt.Errorf("could not open MIDI file: %w", err)
		}
		phrases, err := midiimport.Read(f, midiimport.Options{TrackPrefix: m.TrackPrefix, Offset: m.Offset})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("could not import %v: %w", m.File, err)
		}
		j.phrases = append(j.phrases, phrases...)
	}
	// tracks that only appear in phrases play at unity gain
	if j.tracks == nil {
		j.tracks = map[vvvst.TrackID]vvvst.Track{}
	}
	for _, ph := range j.phrases {
		if _, ok := j.tracks[ph.TrackID]; !ok {
			j.tracks[ph.TrackID] = vvvst.Track{Name: string(ph.TrackID), Gain: 1}
		}
	}
	return j, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
