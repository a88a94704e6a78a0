//go:build plugin

package main

import (
	"context"

	"pipelined.dev/audio/vst2"

	"github.com/vvvst/vvvst/config"
	"github.com/vvvst/vvvst/plugin"
	"github.com/vvvst/vvvst/version"
)

const outputChannels = 2

// transport reads the sample rate, play state and position from the host. A
// host that reports nothing gets silence, as the rate is unknown.
func transport(h vst2.Host) (sampleRate float32, playing bool, position int64) {
	info := h.GetTimeInfo(vst2.TransportPlaying)
	if info == nil {
		return 0, false, 0
	}
	return float32(info.SampleRate), info.Flags&vst2.TransportPlaying != 0, int64(info.SamplePos)
}

func init() {
	rt, _ := plugin.NewRuntime(config.Load())
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		p, err := plugin.New(rt)
		if err != nil {
			rt.Logger.Error("could not create plugin", "err", err)
			return vst2.Plugin{}, vst2.Dispatcher{}
		}
		p.Start(context.Background())
		outputs := make([][]float32, outputChannels)
		return vst2.Plugin{
				UniqueID:       version.PluginID,
				Version:        version.PluginVersion(),
				InputChannels:  0,
				OutputChannels: outputChannels,
				Name:           version.Name,
				Vendor:         version.Vendor,
				Category:       vst2.PluginCategorySynth,
				Flags:          vst2.PluginIsSynth,
				ProcessFloatFunc: func(in, out vst2.FloatBuffer) {
					for i := range outputs {
						outputs[i] = out.Channel(i)[:out.Frames]
					}
					sampleRate, playing, position := transport(h)
					p.Process(outputs, sampleRate, playing, position)
				},
			}, vst2.Dispatcher{
				CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
					switch pcds {
					case vst2.PluginCanReceiveTimeInfo:
						return vst2.YesCanDo
					}
					return vst2.NoCanDo
				},
				CloseFunc: func() {
					p.DetachNotifications()
					p.Close()
				},
				GetChunkFunc: func(isPreset bool) []byte {
					return []byte(p.GetState())
				},
				SetChunkFunc: func(data []byte, isPreset bool) {
					if err := p.SetState(string(data)); err != nil {
						rt.Logger.Warn("host chunk ignored", "err", err)
					}
				},
			}
	}
}

func main() {}
