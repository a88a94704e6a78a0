package mix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/clip"
	"github.com/vvvst/vvvst/synth"
)

// ErrNotReady is returned by Update when the sample rate is not known yet.
var ErrNotReady = errors.New("mix: sample rate not known")

type (
	// Config tunes the Updater. Zero fields take their defaults.
	Config struct {
		SectionFrames int          // granularity of dirty tracking
		Workers       int          // phrases rendered in parallel
		MaxSeconds    float32      // phrases reaching past this are left out
		Synth         synth.Params // used for phrases without a voice clip
	}

	// Input is the live state the mix should reflect.
	Input struct {
		SampleRate float32
		Phrases    vvvst.PhraseSet
		Voices     map[vvvst.VoiceKey]*clip.Voice
	}

	// Report describes what an Update did.
	Report struct {
		NoOp          bool // nothing changed, the mix was not touched
		Full          bool // the sample rate changed, everything was rendered
		Added         int
		Removed       int
		Rendered      int // phrases rendered, including unchanged ones under dirty sections
		Skipped       int // phrases that failed to render or run too long, left silent
		DirtySections int
		SamplesLen    int
		Elapsed       time.Duration
	}

	// Updater patches a Mixes to match an Input, rendering only the sections
	// touched by added or removed phrases. Calls to Update are serialized.
	Updater struct {
		mixes  *Mixes
		cfg    Config
		logger *slog.Logger
		mu     sync.Mutex
	}

	// rendered is the audio of one phrase, placed at frame start of track.
	rendered struct {
		key     vvvst.PhraseKey
		track   vvvst.TrackID
		start   int
		samples []float32
	}
)

// MaxSeconds is the default limit on the length of the mix.
const MaxSeconds = 3600

// DefaultConfig returns the section size, one worker per CPU, an hour long
// limit and the default synth.
func DefaultConfig() Config {
	return Config{SectionFrames: SectionFrames, Workers: runtime.GOMAXPROCS(0), MaxSeconds: MaxSeconds, Synth: synth.DefaultParams()}
}

// NewUpdater returns an updater writing to mixes. It fails if the synth
// parameters are invalid.
func NewUpdater(mixes *Mixes, cfg Config, logger *slog.Logger) (*Updater, error) {
	if cfg.SectionFrames <= 0 {
		cfg.SectionFrames = SectionFrames
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if !(cfg.MaxSeconds > 0) {
		cfg.MaxSeconds = MaxSeconds
	}
	if err := cfg.Synth.Validate(); err != nil {
		return nil, fmt.Errorf("mix: invalid synth parameters: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Updater{mixes: mixes, cfg: cfg, logger: logger}, nil
}

// Update brings the mix in line with in. Only the write of the final patch
// holds the write lock of the Mixes; decoding and synthesis run under no
// lock. If the context is cancelled before the patch, the mix is left as it
// was.
func (u *Updater) Update(ctx context.Context, in Input) (Report, error) {
	if !(in.SampleRate > 0) {
		return Report{}, ErrNotReady
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	begin := time.Now()

	m := u.mixes
	m.RLock()
	oldRate, oldLen := m.SampleRate, m.SamplesLen
	oldSource, oldExtents := m.Source, m.extents
	trackLens := make(map[vvvst.TrackID]int, len(m.Samples))
	for id, buf := range m.Samples {
		trackLens[id] = len(buf)
	}
	m.RUnlock()

	full := oldRate != in.SampleRate
	limit := secondsToFrame(u.cfg.MaxSeconds, in.SampleRate)
	tooLong := 0
	live := make(map[vvvst.PhraseKey]extent, len(in.Phrases))
	for k, p := range in.Phrases {
		e := phraseExtent(p, in.Voices, in.SampleRate, u.cfg.Synth)
		if e.end > limit {
			u.logger.Warn("phrase runs past the maximum mix length, skipping", "track", p.TrackID, "start", p.Start,
				"voice", p.Voice, "maxSeconds", u.cfg.MaxSeconds)
			e = extent{track: e.track, voice: e.voice}
			tooLong++
		}
		live[k] = e
	}

	var report Report
	report.Full = full
	dirty := map[vvvst.TrackID]sections{}
	markDirty := func(e extent) {
		s, ok := dirty[e.track]
		if !ok {
			s = sections{}
			dirty[e.track] = s
		}
		s.mark(e.start, e.end, u.cfg.SectionFrames)
	}
	if !full {
		// a phrase whose clip changed counts as removed and added again, so
		// that both its old and its new extent get dirty
		for k, e := range live {
			old, ok := oldExtents[k]
			if _, inSource := oldSource[k]; !inSource || !ok || old.voice != e.voice {
				report.Added++
				markDirty(e)
				if ok && inSource {
					report.Removed++
					markDirty(old)
				}
			}
		}
		for k, old := range oldExtents {
			if _, ok := live[k]; !ok {
				report.Removed++
				markDirty(old)
			}
		}
		if report.Added == 0 && report.Removed == 0 {
			report.NoOp = true
			report.SamplesLen = oldLen
			return report, nil
		}
	} else {
		report.Added = len(live)
		report.Removed = len(oldExtents)
	}

	// choose what to render: everything on a rate change, otherwise the live
	// phrases under dirty sections
	var jobs []vvvst.PhraseKey
	for _, k := range in.Phrases.Keys() {
		e := live[k]
		if e.empty() {
			continue
		}
		if full || dirty[e.track].overlaps(e.start, e.end, u.cfg.SectionFrames) {
			jobs = append(jobs, k)
		}
	}
	pieces := make([]rendered, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Workers)
	var skipped sync.Map
	for i, k := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, e := in.Phrases[k], live[k]
			samples, err := renderPhrase(p, e, in.SampleRate, u.cfg.Synth)
			if err != nil {
				// one bad phrase must not spoil the mix; it stays silent
				u.logger.Warn("could not render phrase", "track", p.TrackID, "start", p.Start, "voice", p.Voice, "err", err)
				skipped.Store(k, struct{}{})
				return nil
			}
			pieces[i] = rendered{key: k, track: e.track, start: e.start, samples: samples}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	skipped.Range(func(any, any) bool { report.Skipped++; return true })
	report.Rendered = len(jobs) - report.Skipped
	report.Skipped += tooLong

	// sum into scratch buffers in key order, so the result does not depend
	// on scheduling
	scratch := map[vvvst.TrackID][]float32{}
	if full {
		for _, e := range live {
			if !e.empty() {
				scratch[e.track] = growTo(scratch[e.track], e.end)
			}
		}
	} else {
		for id := range dirty {
			need := trackLens[id]
			for _, e := range live {
				if e.track == id {
					need = max(need, e.end)
				}
			}
			scratch[id] = make([]float32, need)
		}
	}
	for _, p := range pieces {
		if p.samples == nil {
			continue
		}
		vvvst.SaturatingAccumulate(scratch[p.track][p.start:], p.samples, 1)
	}

	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	if full {
		samplesLen := 0
		for _, buf := range scratch {
			samplesLen = max(samplesLen, len(buf))
		}
		m.Lock()
		m.Samples = scratch
		m.SampleRate = in.SampleRate
		m.SamplesLen = samplesLen
		m.Source = in.Phrases.Clone()
		m.extents = live
		m.Unlock()
		report.SamplesLen = samplesLen
		report.DirtySections = (samplesLen + u.cfg.SectionFrames - 1) / u.cfg.SectionFrames
		report.Elapsed = time.Since(begin)
		u.logger.Info("mix rendered", "sampleRate", in.SampleRate, "phrases", len(live), "samplesLen", samplesLen, "elapsed", report.Elapsed)
		return report, nil
	}

	// buffers that must grow are copied outside the write lock; nobody else
	// writes them, so the copy cannot go stale
	grown := map[vvvst.TrackID][]float32{}
	m.RLock()
	for id, s := range scratch {
		if old := m.Samples[id]; len(old) < len(s) {
			buf := make([]float32, len(s))
			copy(buf, old)
			grown[id] = buf
		}
	}
	m.RUnlock()

	m.Lock()
	samplesLen := oldLen
	for id, s := range scratch {
		buf, ok := grown[id]
		if !ok {
			buf = m.Samples[id]
		}
		for _, run := range dirty[id].runs() {
			lo := run[0] * u.cfg.SectionFrames
			hi := min(run[1]*u.cfg.SectionFrames, len(s))
			if lo < hi {
				copy(buf[lo:hi], s[lo:hi])
			}
			report.DirtySections += run[1] - run[0]
		}
		m.Samples[id] = buf
		samplesLen = max(samplesLen, len(buf))
	}
	m.SamplesLen = samplesLen
	m.Source = in.Phrases.Clone()
	m.extents = live
	m.Unlock()

	report.SamplesLen = samplesLen
	report.Elapsed = time.Since(begin)
	u.logger.Info("mix patched", "added", report.Added, "removed", report.Removed, "rendered", report.Rendered,
		"dirtySections", report.DirtySections, "samplesLen", samplesLen, "elapsed", report.Elapsed)
	return report, nil
}

// DropTracks drops the buffers of deleted tracks, waiting for a running
// Update to finish first.
func (u *Updater) DropTracks(ids ...vvvst.TrackID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mixes.DropTracks(ids...)
}

func growTo(buf []float32, n int) []float32 {
	if len(buf) >= n {
		return buf
	}
	return append(buf, make([]float32, n-len(buf))...)
}
