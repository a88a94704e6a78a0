package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vvvst/vvvst"
	"github.com/vvvst/vvvst/config"
	"github.com/vvvst/vvvst/oto"
	"github.com/vvvst/vvvst/plugin"
	"github.com/vvvst/vvvst/version"
)

const blockSize = 1024

func main() {
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	play := flag.Bool("p", false, "Play the rendered projects (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered project as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered project as .wav file.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting .raw.")
	bits := flag.Int("b", 16, "Bit depth of .wav output: 8, 16, 24 or 32.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut {
		*play = true
	}
	rt, err := plugin.NewRuntime(config.Load())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
	}
	audioContexts := map[int]*oto.OtoContext{}
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
				}
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			_, name := filepath.Split(filename)
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		j, err := loadProject(filename)
		if err != nil {
			return err
		}
		buffer, err := render(rt, j)
		if err != nil {
			return err
		}
		fmt.Printf("%v: %d frames at %d Hz, peak %.3f\n", filename, len(buffer), j.sampleRate, buffer.Peak())
		if *rawOut {
			raw, err := buffer.Raw(*pcm)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %v", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %v", err)
			}
		}
		if *wavOut {
			w := &seekBuffer{}
			if err := buffer.Wav(w, j.sampleRate, *bits); err != nil {
				return fmt.Errorf("could not generate .wav file: %v", err)
			}
			if err := output(".wav", w.Bytes()); err != nil {
				return fmt.Errorf("error outputting .wav file: %v", err)
			}
		}
		if *play {
			// oto allows one context per process, so projects at other rates
			// than the first one cannot be previewed
			ctx, ok := audioContexts[j.sampleRate]
			if !ok {
				if len(audioContexts) > 0 {
					return fmt.Errorf("cannot play at %d Hz after playing at another rate", j.sampleRate)
				}
				ctx, err = oto.NewContext(j.sampleRate)
				if err != nil {
					return fmt.Errorf("could not acquire oto AudioContext: %v", err)
				}
				audioContexts[j.sampleRate] = ctx
			}
			sink := ctx.Output()
			if err := sink.WriteAudio(buffer); err != nil {
				sink.Close()
				return err
			}
			if err := sink.Close(); err != nil {
				return err
			}
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			files, err := filepath.Glob(filepath.Join(param, "*.yml"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for yml files: %v\n", param, err)
				retval = 1
				continue
			}
			for _, file := range files {
				if err := process(file); err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else if err := process(param); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
			retval = 1
		}
	}
	for _, ctx := range audioContexts {
		ctx.Close()
	}
	os.Exit(retval)
}

// render feeds the job to a fresh plugin and runs its render step over the
// whole mix, the way a host would. Only the first output channel pair is
// kept.
func render(rt plugin.Runtime, j *job) (vvvst.AudioBuffer, error) {
	p, err := plugin.New(rt)
	if err != nil {
		return nil, err
	}
	if err := p.SetVoices(j.voices); err != nil {
		fmt.Fprintf(os.Stderr, "some voices were skipped: %v\n", err)
	}
	if missing := p.SetPhrases(j.phrases); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "phrases refer to missing voices %v; they will be silent\n", missing)
	}
	p.SetTracks(j.tracks)
	p.SetRouting(j.routing)
	report, err := p.UpdateNow(context.Background(), float32(j.sampleRate))
	if err != nil {
		return nil, fmt.Errorf("could not render the mix: %w", err)
	}
	outputs := make([][]float32, vvvst.NumChannels)
	for i := range outputs {
		outputs[i] = make([]float32, blockSize)
	}
	buffer := make(vvvst.AudioBuffer, report.SamplesLen)
	for pos := 0; pos < report.SamplesLen; pos += blockSize {
		p.Process(outputs, float32(j.sampleRate), true, int64(pos))
		buffer[pos:min(pos+blockSize, report.SamplesLen)].Fill(outputs[0], outputs[1])
	}
	return buffer, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "VVVST command line utility for rendering .yml projects offline.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}

// seekBuffer is an in-memory io.WriteSeeker, as the .wav encoder patches its
// header after writing the samples.
type seekBuffer struct {
	buf bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	b := s.buf.Bytes()
	if extra := s.pos + len(p) - len(b); extra > 0 {
		s.buf.Write(make([]byte, extra))
		b = s.buf.Bytes()
	}
	copy(b[s.pos:], p)
	s.pos += len(p)
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case 0:
	case 1:
		base = s.pos
	case 2:
		base = s.buf.Len()
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	n := base + int(offset)
	if n < 0 {
		return 0, fmt.Errorf("seek: negative position %d", n)
	}
	s.pos = n
	return int64(n), nil
}

func (s *seekBuffer) Bytes() []byte { return s.buf.Bytes() }
