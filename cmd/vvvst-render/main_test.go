package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vvvst/vvvst/config"
	"github.com/vvvst/vvvst/internal/cliptest"
	"github.com/vvvst/vvvst/plugin"
)

const testProject = `
sampleRate: 24000
tracks:
  lead: {name: Lead, pan: -1, gain: 1}
routing:
  channelMode: stereo
voices:
  hello: clips/hello.wav
phrases:
  - start: 0.5
    trackId: lead
    voice: hello
`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "clips"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "clips", "hello.wav"), cliptest.Constant(24000, 12000, 16384), 0o644); err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(dir, "song.yml")
	if err := os.WriteFile(name, []byte(testProject), 0o644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestLoadProject(t *testing.T) {
	j, err := loadProject(writeProject(t))
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}
	if j.sampleRate != 24000 || len(j.voices["hello"]) == 0 || len(j.phrases) != 1 {
		t.Fatalf("job = %+v", j)
	}
	if j.tracks["lead"].Pan != -1 {
		t.Fatalf("tracks = %v", j.tracks)
	}
}

func TestRender(t *testing.T) {
	j, err := loadProject(writeProject(t))
	if err != nil {
		t.Fatal(err)
	}
	buffer, err := render(plugin.Runtime{Config: config.Default()}, j)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(buffer) != 24000 {
		t.Fatalf("len = %d, want 24000", len(buffer))
	}
	if buffer[11999] != [2]float32{} || buffer[12000] != [2]float32{0.5, 0} || buffer[23999] != [2]float32{0.5, 0} {
		t.Fatalf("frames %v %v %v", buffer[11999], buffer[12000], buffer[23999])
	}
	if peak := buffer.Peak(); peak != 0.5 {
		t.Fatalf("peak = %v", peak)
	}
}

func TestSeekBufferWav(t *testing.T) {
	j, err := loadProject(writeProject(t))
	if err != nil {
		t.Fatal(err)
	}
	buffer, err := render(plugin.Runtime{Config: config.Default()}, j)
	if err != nil {
		t.Fatal(err)
	}
	w := &seekBuffer{}
	if err := buffer.Wav(w, j.sampleRate, 16); err != nil {
		t.Fatalf("Wav: %v", err)
	}
	b := w.Bytes()
	if string(b[:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("header = %q", b[:12])
	}
	if want := 44 + 24000*2*2; len(b) != want {
		t.Fatalf("len = %d, want %d", len(b), want)
	}
}
