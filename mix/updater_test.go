package mix_test

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"slices"
	"testing"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/clip"
	"github.com/vvvst/vvvst/internal/cliptest"
	"github.com/vvvst/vvvst/mix"
	"github.com/vvvst/vvvst/synth"
)

const testRate = 48000

func newUpdater(t *testing.T) (*mix.Mixes, *mix.Updater) {
	t.Helper()
	m := mix.NewMixes()
	cfg := mix.DefaultConfig()
	cfg.SectionFrames = 4096
	u, err := mix.NewUpdater(m, cfg, nil)
	if err != nil {
		t.Fatalf("NewUpdater: %v", err)
	}
	return m, u
}

// constantVoice is a one second clip at 24 kHz holding value/32768.
func constantVoice(t *testing.T, value int16) *clip.Voice {
	t.Helper()
	v, err := clip.NewVoice(cliptest.Constant(24000, 24000, value))
	if err != nil {
		t.Fatalf("NewVoice: %v", err)
	}
	return v
}

func update(t *testing.T, u *mix.Updater, phrases vvvst.PhraseSet, voices map[vvvst.VoiceKey]*clip.Voice) mix.Report {
	t.Helper()
	r, err := u.Update(context.Background(), mix.Input{SampleRate: testRate, Phrases: phrases, Voices: voices})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	return r
}

func snapshot(m *mix.Mixes) map[vvvst.TrackID][]float32 {
	m.RLock()
	defer m.RUnlock()
	ret := map[vvvst.TrackID][]float32{}
	for id, buf := range m.Samples {
		ret[id] = slices.Clone(buf)
	}
	return ret
}

func hashRange(buf []float32, lo, hi int) uint64 {
	h := fnv.New64a()
	for _, v := range buf[lo:hi] {
		b := math.Float32bits(v)
		h.Write([]byte{byte(b), byte(b >> 8), byte(b >> 16), byte(b >> 24)})
	}
	return h.Sum64()
}

func allZero(buf []float32) bool {
	for _, v := range buf {
		if v != 0 {
			return false
		}
	}
	return true
}

func TestUpdateNotReady(t *testing.T) {
	_, u := newUpdater(t)
	for _, sr := range []float32{0, -1, float32(math.NaN())} {
		if _, err := u.Update(context.Background(), mix.Input{SampleRate: sr}); !errors.Is(err, mix.ErrNotReady) {
			t.Errorf("Update at %v Hz: err = %v, want ErrNotReady", sr, err)
		}
	}
}

func TestNewUpdaterInvalidSynth(t *testing.T) {
	cfg := mix.DefaultConfig()
	cfg.Synth.Release = 0
	if _, err := mix.NewUpdater(mix.NewMixes(), cfg, nil); !errors.Is(err, synth.ErrInvalidEnvelope) {
		t.Fatalf("err = %v, want ErrInvalidEnvelope", err)
	}
}

func TestUpdateClipPlacement(t *testing.T) {
	m, u := newUpdater(t)
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 16384)}
	phrases := vvvst.NewPhraseSet(vvvst.Phrase{Start: 2, TrackID: "t", Voice: "a"})
	r := update(t, u, phrases, voices)
	if !r.Full || r.Added != 1 || r.Rendered != 1 {
		t.Fatalf("report = %+v", r)
	}
	if m.SampleRate != testRate || m.SamplesLen != 144000 {
		t.Fatalf("rate %v len %d, want %d and 144000", m.SampleRate, m.SamplesLen, testRate)
	}
	buf := m.Samples["t"]
	for _, tt := range []struct {
		frame int
		want  float32
	}{{0, 0}, {95999, 0}, {96000, 0.5}, {120000, 0.5}, {143999, 0.5}} {
		if got := buf[tt.frame]; got != tt.want {
			t.Errorf("frame %d = %v, want %v", tt.frame, got, tt.want)
		}
	}
	if !m.Source.Equal(phrases) {
		t.Fatal("Source differs from the input phrases")
	}
}

func TestUpdateNoOp(t *testing.T) {
	m, u := newUpdater(t)
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 8192)}
	phrases := vvvst.NewPhraseSet(
		vvvst.Phrase{Start: 0.5, TrackID: "t", Voice: "a"},
		vvvst.Phrase{Start: 1, TrackID: "u", Notes: []vvvst.Note{{Start: 1, End: 1.5, NoteNumber: 60}}},
	)
	update(t, u, phrases, voices)
	before := snapshot(m)
	r := update(t, u, phrases.Clone(), voices)
	if !r.NoOp || r.Rendered != 0 {
		t.Fatalf("second update was not a no-op: %+v", r)
	}
	after := snapshot(m)
	for id, buf := range before {
		if !slices.Equal(buf, after[id]) {
			t.Fatalf("track %q changed on a no-op update", id)
		}
	}
}

func TestUpdateLocality(t *testing.T) {
	m, u := newUpdater(t)
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 8192), "b": constantVoice(t, 4096)}
	first := vvvst.Phrase{Start: 0, TrackID: "t", Voice: "a"}
	update(t, u, vvvst.NewPhraseSet(first), voices)
	before := snapshot(m)["t"]
	h := hashRange(before, 0, len(before))

	far := vvvst.Phrase{Start: 10, TrackID: "t", Voice: "b"}
	other := vvvst.Phrase{Start: 0, TrackID: "u", Voice: "b"}
	r := update(t, u, vvvst.NewPhraseSet(first, far, other), voices)
	if r.Full || r.Added != 2 || r.Removed != 0 || r.Rendered != 2 {
		t.Fatalf("report = %+v", r)
	}
	after := snapshot(m)["t"]
	if got := hashRange(after, 0, len(before)); got != h {
		t.Fatal("untouched region of track t changed")
	}
	if m.SamplesLen != 11*testRate || len(after) != 11*testRate {
		t.Fatalf("SamplesLen = %d, len = %d, want %d", m.SamplesLen, len(after), 11*testRate)
	}
	if after[10*testRate] != 0.125 {
		t.Fatalf("far phrase sample = %v, want 0.125", after[10*testRate])
	}
}

func TestUpdateRemovalRestores(t *testing.T) {
	m, u := newUpdater(t)
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 8192), "b": constantVoice(t, 4096)}
	base := vvvst.NewPhraseSet(
		vvvst.Phrase{Start: 0, TrackID: "t", Voice: "a"},
		vvvst.Phrase{Start: 3, TrackID: "t", Voice: "a"},
	)
	update(t, u, base, voices)
	before := snapshot(m)["t"]

	withExtra := base.Clone()
	extra := vvvst.Phrase{Start: 0.5, TrackID: "t", Voice: "b"}
	withExtra[extra.Key()] = extra
	update(t, u, withExtra, voices)
	if got := snapshot(m)["t"][testRate/2]; got != 0.375 {
		t.Fatalf("overlap sample = %v, want 0.375", got)
	}

	r := update(t, u, base, voices)
	if r.Removed != 1 || r.Added != 0 {
		t.Fatalf("report = %+v", r)
	}
	after := snapshot(m)["t"]
	if !slices.Equal(after[:len(before)], before) {
		t.Fatal("removing the phrase did not restore the previous mix")
	}
	for i, v := range after[len(before):] {
		if v != 0 {
			t.Fatalf("tail frame %d = %v, want 0", len(before)+i, v)
		}
	}
}

func TestUpdateMonotonicLength(t *testing.T) {
	m, u := newUpdater(t)
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 8192)}
	long := vvvst.NewPhraseSet(vvvst.Phrase{Start: 5, TrackID: "t", Voice: "a"})
	update(t, u, long, voices)
	if m.SamplesLen != 6*testRate {
		t.Fatalf("SamplesLen = %d", m.SamplesLen)
	}
	r := update(t, u, vvvst.NewPhraseSet(vvvst.Phrase{Start: 0, TrackID: "t", Voice: "a"}), voices)
	if r.SamplesLen != 6*testRate || m.SamplesLen != 6*testRate {
		t.Fatalf("SamplesLen shrank to %d", m.SamplesLen)
	}

	// a new rate starts over
	r, err := u.Update(context.Background(), mix.Input{SampleRate: 24000, Phrases: vvvst.NewPhraseSet(vvvst.Phrase{Start: 0, TrackID: "t", Voice: "a"}), Voices: voices})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Full || m.SamplesLen != 24000 || m.SampleRate != 24000 {
		t.Fatalf("after rate change: %+v, SamplesLen %d", r, m.SamplesLen)
	}
}

func TestUpdateNotes(t *testing.T) {
	m, u := newUpdater(t)
	p := vvvst.Phrase{Start: 1, TrackID: "t", Notes: []vvvst.Note{
		{Start: 1, End: 1.25, NoteNumber: 69},
		{Start: 1.5, End: 1.75, NoteNumber: 72},
	}}
	update(t, u, vvvst.NewPhraseSet(p), nil)
	release := synth.DefaultParams().ReleaseFrames(testRate)
	if want := 84000 + release; m.SamplesLen != want {
		t.Fatalf("SamplesLen = %d, want %d", m.SamplesLen, want)
	}
	buf := m.Samples["t"]
	for i := 0; i < testRate; i++ {
		if buf[i] != 0 {
			t.Fatalf("frame %d before the phrase = %v", i, buf[i])
		}
	}
	var peak float32
	for _, v := range buf[testRate : testRate+testRate/4] {
		peak = max(peak, float32(math.Abs(float64(v))))
	}
	if peak == 0 {
		t.Fatal("first note is silent")
	}
	// between the release of the first note and the second note
	for i := 60000 + release; i < 72000; i++ {
		if buf[i] != 0 {
			t.Fatalf("frame %d between notes = %v", i, buf[i])
		}
	}
}

func TestUpdateMissingVoice(t *testing.T) {
	m, u := newUpdater(t)
	p := vvvst.Phrase{Start: 0, TrackID: "t", Voice: "late", Notes: []vvvst.Note{{Start: 0, End: 0.5, NoteNumber: 69}}}
	phrases := vvvst.NewPhraseSet(p)

	// until the clip arrives, the notes are synthesized
	r := update(t, u, phrases, nil)
	release := synth.DefaultParams().ReleaseFrames(testRate)
	if r.Rendered != 1 || m.SamplesLen != 24000+release || !m.Source.Contains(p) {
		t.Fatalf("missing clip: %+v, SamplesLen %d", r, m.SamplesLen)
	}
	var peak float32
	for _, v := range m.Samples["t"][:24000] {
		peak = max(peak, float32(math.Abs(float64(v))))
	}
	if peak == 0 {
		t.Fatal("phrase with notes but no clip is silent")
	}
	synthLen := m.SamplesLen

	// once it does, the clip replaces the synth exactly
	voices := map[vvvst.VoiceKey]*clip.Voice{"late": constantVoice(t, 8192)}
	r = update(t, u, phrases, voices)
	if r.NoOp || r.Added != 1 || r.Removed != 1 || r.Rendered != 1 {
		t.Fatalf("clip arrival not rendered: %+v", r)
	}
	if want := max(synthLen, testRate); m.SamplesLen != want {
		t.Fatalf("SamplesLen = %d, want %d", m.SamplesLen, want)
	}
	fm, fu := newUpdater(t)
	update(t, fu, phrases, voices)
	buf, fresh := m.Samples["t"], fm.Samples["t"]
	if len(fresh) != testRate || !slices.Equal(buf[:testRate], fresh) {
		t.Fatal("clip output differs from a fresh render of the clip")
	}
	if !allZero(buf[testRate:]) {
		t.Fatal("synth output left behind after the clip arrived")
	}
	for _, v := range fresh {
		if v != 0.25 {
			t.Fatalf("clip sample = %v, want 0.25", v)
		}
	}

	// neither a clip nor notes: silent
	m, u = newUpdater(t)
	q := vvvst.Phrase{Start: 0, TrackID: "t", Voice: "late"}
	update(t, u, vvvst.NewPhraseSet(q), nil)
	if m.SamplesLen != 0 || !m.Source.Contains(q) {
		t.Fatalf("empty phrase: SamplesLen %d, in source %v", m.SamplesLen, m.Source.Contains(q))
	}
}

func TestUpdateTooLong(t *testing.T) {
	m, u := newUpdater(t)
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 8192)}
	far := vvvst.Phrase{Start: 1e6, TrackID: "t", Voice: "a"}
	farNotes := vvvst.Phrase{TrackID: "u", Notes: []vvvst.Note{{Start: 1e6, End: 1e6 + 1, NoteNumber: 60}}}
	near := vvvst.Phrase{Start: 0, TrackID: "t", Voice: "a"}
	phrases := vvvst.NewPhraseSet(far, farNotes, near)
	r := update(t, u, phrases, voices)
	if r.Skipped != 2 || r.Rendered != 1 || m.SamplesLen != testRate {
		t.Fatalf("phrases past the limit: %+v", r)
	}
	if len(m.Samples["t"]) != testRate || len(m.Samples["u"]) != 0 || !m.Source.Contains(far) {
		t.Fatalf("track lengths %d, %d", len(m.Samples["t"]), len(m.Samples["u"]))
	}
	if r := update(t, u, phrases, voices); !r.NoOp {
		t.Fatalf("second update: %+v", r)
	}

	cfg := mix.DefaultConfig()
	cfg.MaxSeconds = 2
	short, err := mix.NewUpdater(mix.NewMixes(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	edge := vvvst.Phrase{Start: 1.5, TrackID: "t", Voice: "a"}
	r, err = short.Update(context.Background(), mix.Input{SampleRate: testRate, Phrases: vvvst.NewPhraseSet(edge, near), Voices: voices})
	if err != nil {
		t.Fatal(err)
	}
	if r.Skipped != 1 || r.SamplesLen != testRate {
		t.Fatalf("phrase ending past MaxSeconds: %+v", r)
	}
}

func TestUpdateClipReplaced(t *testing.T) {
	m, u := newUpdater(t)
	phrases := vvvst.NewPhraseSet(vvvst.Phrase{Start: 0, TrackID: "t", Voice: "a"})
	long, err := clip.NewVoice(cliptest.Constant(24000, 48000, 8192))
	if err != nil {
		t.Fatal(err)
	}
	update(t, u, phrases, map[vvvst.VoiceKey]*clip.Voice{"a": long})
	update(t, u, phrases, map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 4096)})
	buf := m.Samples["t"]
	if buf[0] != 0.125 {
		t.Fatalf("head = %v, want the new clip", buf[0])
	}
	for i := testRate; i < 2*testRate; i++ {
		if buf[i] != 0 {
			t.Fatalf("frame %d of the old clip's tail = %v", i, buf[i])
		}
	}
}

func TestUpdateCancelled(t *testing.T) {
	m, u := newUpdater(t)
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 8192)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := u.Update(ctx, mix.Input{SampleRate: testRate, Phrases: vvvst.NewPhraseSet(vvvst.Phrase{TrackID: "t", Voice: "a"}), Voices: voices})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if m.SampleRate != 0 || len(m.Source) != 0 {
		t.Fatal("cancelled update touched the mix")
	}
}

func TestDropTracks(t *testing.T) {
	m, u := newUpdater(t)
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": constantVoice(t, 8192)}
	phrases := vvvst.NewPhraseSet(
		vvvst.Phrase{TrackID: "t", Voice: "a"},
		vvvst.Phrase{TrackID: "u", Voice: "a"},
	)
	update(t, u, phrases, voices)
	u.DropTracks("u")
	if _, ok := m.Samples["u"]; ok || len(m.Source) != 1 {
		t.Fatalf("track u not dropped: %d phrases left", len(m.Source))
	}
	r := update(t, u, phrases, voices)
	if r.Added != 1 || m.Samples["u"][0] != 0.25 {
		t.Fatalf("dropped track not rendered again: %+v", r)
	}
}

func TestUpdateClipResampled(t *testing.T) {
	m, u := newUpdater(t)
	v, err := clip.NewVoice(cliptest.Constant(44100, 44100, 8192))
	if err != nil {
		t.Fatal(err)
	}
	voices := map[vvvst.VoiceKey]*clip.Voice{"a": v}
	update(t, u, vvvst.NewPhraseSet(vvvst.Phrase{Start: 2, TrackID: "t", Voice: "a"}), voices)
	buf := m.Samples["t"]
	if len(buf) != 144000 {
		t.Fatalf("len = %d, want 144000", len(buf))
	}
	for i, v := range buf {
		want := float32(0)
		if i >= 96000 {
			want = 0.25
		}
		if v != want {
			t.Fatalf("frame %d = %v, want %v", i, v, want)
		}
	}
}
