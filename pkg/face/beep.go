package face

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/kotonebot/go-kotone/internal/log"
	"github.com/kotonebot/go-kotone/pkg/audioio"
	"github.com/kotonebot/go-kotone/pkg/pipeline"
)

// Beeper plays short sine cues on the playback sink so the device is
// usable without a screen. Cues are fire-and-forget: a cue that arrives
// while another is still playing is dropped, and playback failures are
// only logged.
type Beeper struct {
	sink   audioio.Sink
	logger *slog.Logger
	busy   atomic.Bool
}

var _ pipeline.Feedback = (*Beeper)(nil)

// NewBeeper builds a beeper over an already started sink.
func NewBeeper(sink audioio.Sink, logger *slog.Logger) *Beeper {
	if logger == nil {
		logger = log.Component("face.beep")
	}
	return &Beeper{sink: sink, logger: logger}
}

// Listening plays a rising chirp when speech capture begins.
func (b *Beeper) Listening() {
	b.play(880, 120*time.Millisecond)
}

// Speaking is silent: the reply audio itself is the cue.
func (b *Beeper) Speaking() {}

// Idle plays a falling chirp when a turn finishes.
func (b *Beeper) Idle() {
	b.play(440, 120*time.Millisecond)
}

// Error plays a low buzz.
func (b *Beeper) Error() {
	b.play(220, 250*time.Millisecond)
}

// play writes one tone to the sink in the background. The busy flag
// makes overlapping cues drop instead of queueing behind each other.
func (b *Beeper) play(frequency float64, duration time.Duration) {
	if !b.busy.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer b.busy.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		pcm := Tone(frequency, duration, b.sink.Config().SampleRate)
		if err := b.sink.Write(ctx, audioio.SamplesToBytes(pcm)); err != nil {
			b.logger.Debug("Cue playback failed", "error", err)
		}
	}()
}

// Tone renders a sine tone with a short linear fade at both ends to
// avoid clicks.
func Tone(frequency float64, duration time.Duration, sampleRate int) []int16 {
	n := int(duration * time.Duration(sampleRate) / time.Second)
	fade := sampleRate / 100 // 10ms
	if fade > n/2 {
		fade = n / 2
	}

	samples := make([]int16, n)
	for i := range samples {
		v := 0.3 * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
		if i < fade {
			v *= float64(i) / float64(fade)
		}
		if n-i <= fade {
			v *= float64(n-i) / float64(fade)
		}
		samples[i] = int16(v * 32767)
	}
	return samples
}
