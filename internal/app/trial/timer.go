package trial

import (
	"time"

	"go.uber.org/zap"

	"BCISpeller/internal/metrics"
	"BCISpeller/internal/service/flashing"
)

// Stimulus получатель смены активного стимула.
type Stimulus interface {
	SetFlashingList(l flashing.List)
	ResetFlashingList()
}

// Timer задача одного trial, которая ведёт стимулы по расписанию. Сроки
// отсчитываются от одного абсолютного старта, поэтому задержки шагов не
// накапливаются.
type Timer struct {
	done chan struct{}
}

func startTimer(seq flashing.Sequence, timing Timing, stim Stimulus, logger *zap.SugaredLogger) *Timer {
	t := &Timer{done: make(chan struct{})}
	start := time.Now()
	go func() {
		defer close(t.done)
		stim.ResetFlashingList()

		offset := timing.Baseline
		for _, l := range seq {
			sleepUntil(start.Add(offset))
			stim.SetFlashingList(l)
			offset += timing.Flash

			sleepUntil(start.Add(offset))
			stim.ResetFlashingList()
			offset += timing.Break
		}
		// Пауза после последней вспышки тоже часть trial
		if len(seq) > 0 {
			sleepUntil(start.Add(offset))
		}
		logger.Debugw("Stimulus timer finished", "steps", len(seq), "elapsed", time.Since(start).String(), "planned", offset.String())
	}()
	return t
}

// sleepUntil спит до абсолютного срока и учитывает опоздание.
func sleepUntil(deadline time.Time) {
	if d := time.Until(deadline); d > 0 {
		t := time.NewTimer(d)
		<-t.C
	}
	metrics.StimulusLag.Observe(time.Since(deadline).Seconds())
}

// Wait блокируется до завершения последнего шага.
func (t *Timer) Wait() { <-t.done }

// Done закрывается по завершении таймера.
func (t *Timer) Done() <-chan struct{} { return t.done }
