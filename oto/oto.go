package oto

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vvvst/vvvst"
)

type (
	OtoContext struct {
		ctx *oto.Context
	}

	OtoOutput struct {
		player    *oto.Player
		pipe      *io.PipeWriter
		tmpBuffer []byte
	}
)

const otoBufferSize = 50 * time.Millisecond

// NewContext opens the sound card for stereo float32 output at the given
// sample rate. It blocks until the device is ready.
func NewContext(sampleRate int) (*OtoContext, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{ctx: ctx}, nil
}

// Output starts a new player. Audio written to the returned sink is queued for
// playback; writes block while the player is behind.
func (c *OtoContext) Output() vvvst.AudioSink {
	r, w := io.Pipe()
	player := c.ctx.NewPlayer(r)
	player.Play()
	return &OtoOutput{player: player, pipe: w}
}

// Close suspends the device; oto contexts cannot be reopened within a process.
func (c *OtoContext) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *OtoOutput) WriteAudio(buffer vvvst.AudioBuffer) error {
	// reuse the capacity of tmpBuffer by setting its length to zero
	o.tmpBuffer = AppendFloat32LE(o.tmpBuffer[:0], buffer)
	if _, err := o.pipe.Write(o.tmpBuffer); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

// Close waits until the queued audio has been played, then disposes of the
// player.
func (o *OtoOutput) Close() error {
	o.pipe.Close()
	for o.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	err := o.player.Err()
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if cerr := o.player.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
