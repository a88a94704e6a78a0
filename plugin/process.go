package plugin

import (
	"github.com/vvvst/vvvst"
)

// Process renders one host callback. outputs holds one slice per output
// channel, all of the same length. position is the transport position of the
// first frame and may be negative before the song starts.
//
// Process never blocks and never allocates: if the mix or the track table is
// being written to, or the mix was rendered at another sample rate, the
// callback is silent and the mix is brought up to date in the background.
func (p *Plugin) Process(outputs [][]float32, sampleRate float32, playing bool, position int64) {
	for _, ch := range outputs {
		clear(ch)
	}
	p.worker.setRate(sampleRate)
	p.mixInto(outputs, sampleRate, playing, position)
	p.notifyTransport(sampleRate, playing, position)
}

func (p *Plugin) mixInto(outputs [][]float32, sampleRate float32, playing bool, position int64) {
	if !p.critical.TryRLock() {
		return
	}
	defer p.critical.RUnlock()
	m := p.mixes
	if !m.TryRLock() {
		return
	}
	defer m.RUnlock()
	if m.SampleRate != sampleRate {
		if sampleRate > 0 {
			p.worker.request()
		}
		return
	}
	if !playing || m.Empty() {
		return
	}
	anySolo := vvvst.AnySolo(p.critical.Tracks)
	mode := p.critical.Routing.ChannelMode
	for id, track := range p.critical.Tracks {
		if !track.Audible(anySolo) {
			continue
		}
		buf := m.Samples[id]
		if len(buf) == 0 {
			continue
		}
		group := p.critical.Routing.ChannelGroup(id)
		switch mode {
		case vvvst.Mono:
			if group < len(outputs) {
				mixTrack(outputs[group], buf, m.SamplesLen, position, track.Gain)
			}
		default:
			left, right := track.Gains()
			if l := 2 * group; l < len(outputs) {
				mixTrack(outputs[l], buf, m.SamplesLen, position, left)
			}
			if r := 2*group + 1; r < len(outputs) {
				mixTrack(outputs[r], buf, m.SamplesLen, position, right)
			}
		}
	}
}

// mixTrack accumulates buf*gain into out, where out[0] is frame position of
// buf. Frames outside [0, min(samplesLen, len(buf))) are skipped.
func mixTrack(out, buf []float32, samplesLen int, position int64, gain float32) {
	end := int64(min(samplesLen, len(buf)))
	for i := range out {
		frame := position + int64(i)
		if frame < 0 {
			continue
		}
		if frame >= end {
			return
		}
		out[i] = vvvst.SaturatingAdd(out[i], vvvst.SaturatingMul(buf[frame], gain))
	}
}

// notifyTransport reports play state changes at once, and position changes
// at most PositionHz times a second of transport movement.
func (p *Plugin) notifyTransport(sampleRate float32, playing bool, position int64) {
	t := &p.transport
	if playing != t.playing {
		t.playing = playing
		p.notify(Notification{Kind: PlayingChanged, Playing: playing})
	}
	if position == t.position || !(sampleRate > 0) {
		return
	}
	t.position = position
	threshold := int64(float64(sampleRate) / p.rt.Config.PositionHz)
	moved := position - t.lastReported
	if moved < 0 {
		moved = -moved
	}
	// while stopped, every move is the user seeking and is reported at once
	if playing && moved < threshold {
		return
	}
	t.lastReported = position
	p.notify(Notification{Kind: PositionChanged, Position: seconds(position, sampleRate)})
}

func (p *Plugin) notify(n Notification) {
	if p.detached.Load() {
		return
	}
	TrySend(p.notifications, n)
}

func seconds(position int64, sampleRate float32) float32 {
	return float32(float64(position) / float64(sampleRate))
}
