// Package plugin ties the mix cache, its updater and the plugin parameters
// together behind the surface a host and a UI talk to.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/clip"
	"github.com/vvvst/vvvst/config"
	"github.com/vvvst/vvvst/mix"
	"github.com/vvvst/vvvst/state"
	"github.com/vvvst/vvvst/synth"
)

type (
	// Plugin is one instance of the plugin. Process must only be called from
	// one goroutine at a time (the audio thread); everything else is safe for
	// concurrent use.
	Plugin struct {
		rt Runtime

		paramsMu sync.RWMutex
		params   state.Params

		// critical is read by Process with TryRLock.
		critical struct {
			sync.RWMutex
			state.CriticalParams
		}

		mixes   *mix.Mixes
		updater *mix.Updater
		worker  *worker

		notifications chan Notification
		detached      atomic.Bool

		// transport as seen by the previous Process call; audio thread only
		transport transport

		cancel context.CancelFunc
		done   chan struct{}
	}

	// transport starts out stopped at frame 0
	transport struct {
		playing      bool
		position     int64
		lastReported int64
	}
)

// New returns a plugin with empty parameters. A zero Runtime is usable; it
// gets a discarding logger and the default configuration.
func New(rt Runtime) (*Plugin, error) {
	if rt.Logger == nil {
		rt.Logger = discardLogger()
	}
	if rt.Config == (config.Config{}) {
		rt.Config = config.Default()
	}
	if !(rt.Config.PositionHz > 0) {
		rt.Config.PositionHz = config.Default().PositionHz
	}
	mixes := mix.NewMixes()
	updater, err := mix.NewUpdater(mixes, mix.Config{
		SectionFrames: rt.Config.SectionFrames,
		Workers:       rt.Config.RenderWorkers,
		MaxSeconds:    float32(rt.Config.MaxSeconds),
		Synth:         synth.DefaultParams(),
	}, rt.Logger.With("component", "mix"))
	if err != nil {
		return nil, fmt.Errorf("plugin.New failed: %w", err)
	}
	p := &Plugin{
		rt:            rt,
		params:        state.NewParams(),
		mixes:         mixes,
		updater:       updater,
		notifications: make(chan Notification, max(rt.Config.NotifyBuffer, 1)),
	}
	p.critical.CriticalParams = state.NewCriticalParams()
	p.worker = newWorker(p.UpdateNow, rt.Logger.With("component", "worker"))
	return p, nil
}

// Start launches the background worker that keeps the mix up to date. It
// stops when ctx is done or Close is called.
func (p *Plugin) Start(ctx context.Context) {
	if p.done != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.worker.run(ctx)
	}()
	p.worker.request()
}

// Close stops the background worker and waits for it to finish.
func (p *Plugin) Close() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	p.rt.Logger.Info("plugin closed")
	return nil
}

// UpdateNow brings the mix up to date with the current parameters at the
// given rate, in the calling goroutine. It is what the background worker
// runs; offline renderers and tests call it directly.
func (p *Plugin) UpdateNow(ctx context.Context, sampleRate float32) (mix.Report, error) {
	p.paramsMu.RLock()
	in := mix.Input{SampleRate: sampleRate, Phrases: p.params.Phrases.Clone(), Voices: maps.Clone(p.params.Voices)}
	p.paramsMu.RUnlock()
	return p.updater.Update(ctx, in)
}

// Notifications returns the channel transport notifications are delivered
// on. Notifications that do not fit in its buffer are dropped.
func (p *Plugin) Notifications() <-chan Notification {
	return p.notifications
}

// DetachNotifications stops all further notifications, e.g. when the UI goes
// away.
func (p *Plugin) DetachNotifications() {
	p.detached.Store(true)
}

// SetPhrases replaces all phrases and returns the voice keys they reference
// that have no clip yet.
func (p *Plugin) SetPhrases(phrases []vvvst.Phrase) (missing []vvvst.VoiceKey) {
	set := vvvst.NewPhraseSet(phrases...)
	p.paramsMu.Lock()
	p.params.Phrases = set
	missing = set.MissingVoices(p.params.HasVoice)
	p.paramsMu.Unlock()
	p.worker.request()
	return missing
}

// SetVoices adds or replaces voice clips. Clips that fail to decode are
// skipped; their errors are joined in the returned error. Resending a clip
// that is already stored changes nothing.
func (p *Plugin) SetVoices(voices map[vvvst.VoiceKey][]byte) error {
	decoded := make(map[vvvst.VoiceKey]*clip.Voice, len(voices))
	var errs []error
	for _, key := range slices.Sorted(maps.Keys(voices)) {
		v, err := clip.NewVoice(voices[key])
		if err != nil {
			p.rt.Logger.Warn("skipping voice", "voice", key, "err", err)
			errs = append(errs, fmt.Errorf("voice %q: %w", key, err))
			continue
		}
		decoded[key] = v
	}
	changed := false
	p.paramsMu.Lock()
	for key, v := range decoded {
		// the mix tells clips apart by pointer, so an identical clip keeps
		// the one already stored
		if old, ok := p.params.Voices[key]; ok && old.Equal(v) {
			continue
		}
		p.params.Voices[key] = v
		changed = true
		p.rt.Logger.Debug("voice stored", "voice", key, "format", v.Format(), "duration", v.Duration())
	}
	p.paramsMu.Unlock()
	if changed {
		p.worker.request()
	}
	return errors.Join(errs...)
}

// SetTracks replaces the track table. Buffers of tracks that are gone are
// dropped from the mix.
func (p *Plugin) SetTracks(tracks map[vvvst.TrackID]vvvst.Track) {
	tracks = maps.Clone(tracks)
	p.critical.Lock()
	var gone []vvvst.TrackID
	for id := range p.critical.Tracks {
		if _, ok := tracks[id]; !ok {
			gone = append(gone, id)
		}
	}
	p.critical.Tracks = tracks
	p.critical.Unlock()
	if len(gone) > 0 {
		p.updater.DropTracks(gone...)
		p.worker.request()
	}
}

func (p *Plugin) SetRouting(r vvvst.Routing) {
	r = r.Copy()
	p.critical.Lock()
	p.critical.Routing = r
	p.critical.Unlock()
}

// SetProject stores the project document of the UI. The plugin does not
// interpret it.
func (p *Plugin) SetProject(project string) {
	p.paramsMu.Lock()
	p.params.Project = project
	p.paramsMu.Unlock()
}

func (p *Plugin) Project() string {
	p.paramsMu.RLock()
	defer p.paramsMu.RUnlock()
	return p.params.Project
}

// Phrases returns the current phrases in a deterministic order.
func (p *Plugin) Phrases() []vvvst.Phrase {
	p.paramsMu.RLock()
	defer p.paramsMu.RUnlock()
	return p.params.Phrases.Sorted()
}

func (p *Plugin) VoiceKeys() []vvvst.VoiceKey {
	p.paramsMu.RLock()
	defer p.paramsMu.RUnlock()
	return p.params.VoiceKeys()
}

// MissingVoices returns the voice keys referenced by phrases but not yet
// supplied.
func (p *Plugin) MissingVoices() []vvvst.VoiceKey {
	p.paramsMu.RLock()
	defer p.paramsMu.RUnlock()
	return p.params.Phrases.MissingVoices(p.params.HasVoice)
}

func (p *Plugin) Tracks() map[vvvst.TrackID]vvvst.Track {
	p.critical.RLock()
	defer p.critical.RUnlock()
	return maps.Clone(p.critical.Tracks)
}

func (p *Plugin) Routing() vvvst.Routing {
	p.critical.RLock()
	defer p.critical.RUnlock()
	return p.critical.Routing.Copy()
}

// GetState serializes the parameters for the host. On failure, which only
// happens on a broken encoder, it logs and returns the empty string.
func (p *Plugin) GetState() string {
	p.paramsMu.RLock()
	params := p.params.Copy()
	p.paramsMu.RUnlock()
	p.critical.RLock()
	critical := p.critical.CriticalParams.Copy()
	p.critical.RUnlock()
	s, err := state.MarshalString(params, critical)
	if err != nil {
		p.rt.Logger.Error("could not save state", "err", err)
		return ""
	}
	return s
}

// SetState replaces all parameters with those decoded from s. An empty s is
// ignored. If s cannot be decoded, the parameters are left as they were.
func (p *Plugin) SetState(s string) error {
	if s == "" {
		return nil
	}
	params, critical, err := state.UnmarshalString(s)
	if err != nil {
		p.rt.Logger.Warn("could not load state", "err", err)
		return fmt.Errorf("SetState failed: %w", err)
	}
	p.paramsMu.Lock()
	p.params = params
	p.paramsMu.Unlock()
	p.critical.Lock()
	var gone []vvvst.TrackID
	for id := range p.critical.Tracks {
		if _, ok := critical.Tracks[id]; !ok {
			gone = append(gone, id)
		}
	}
	p.critical.CriticalParams = critical
	p.critical.Unlock()
	p.updater.DropTracks(gone...)
	p.rt.Logger.Info("state loaded", "phrases", len(params.Phrases), "voices", len(params.Voices), "tracks", len(critical.Tracks))
	p.worker.request()
	return nil
}
