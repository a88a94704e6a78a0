package plugin

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/vvvst/vvvst/mix"
)

// worker runs mix updates in the background. Requests are coalesced: however
// many arrive while an update runs, at most one more update follows, and it
// renders the parameters current at its own start.
type worker struct {
	wake chan struct{}
	rate atomic.Uint32 // float32 bits of the latest host sample rate

	update func(ctx context.Context, sampleRate float32) (mix.Report, error)
	logger *slog.Logger
}

func newWorker(update func(context.Context, float32) (mix.Report, error), logger *slog.Logger) *worker {
	return &worker{wake: make(chan struct{}, 1), update: update, logger: logger}
}

// request asks for an update. It never blocks nor allocates, so it can be
// called from the audio thread.
func (w *worker) request() {
	TrySend(w.wake, struct{}{})
}

// setRate records the sample rate of the host. A zero rate is ignored.
func (w *worker) setRate(sampleRate float32) {
	if sampleRate > 0 {
		w.rate.Store(math.Float32bits(sampleRate))
	}
}

func (w *worker) sampleRate() float32 {
	return math.Float32frombits(w.rate.Load())
}

// run serves requests until ctx is done.
func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
		sr := w.sampleRate()
		if _, err := w.update(ctx, sr); err != nil {
			switch {
			case errors.Is(err, mix.ErrNotReady):
				w.logger.Debug("mix update postponed, sample rate not known yet")
			case ctx.Err() != nil:
				return
			default:
				w.logger.Error("mix update failed", "sampleRate", sr, "err", err)
			}
		}
	}
}
