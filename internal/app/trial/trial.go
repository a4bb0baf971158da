// Package trial один цикл выбора: расписание стимулов, таймер, окна,
// оценки классификатора и декодирование позиции.
package trial

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"BCISpeller/internal/adapter/classifier"
	"BCISpeller/internal/config"
	"BCISpeller/internal/metrics"
	"BCISpeller/internal/service/epoch"
	"BCISpeller/internal/service/flashing"
)

// ErrNotEnoughScores оценок меньше, чем шагов расписания. Оборачивает
// epoch.ErrStarvation.
var ErrNotEnoughScores = errors.New("trial: not enough scores")

// Recorder получает данные trial; результат не используется.
type Recorder interface {
	RecordSamples(samples []epoch.Sample)
	RecordFlashingSequence(seq flashing.Sequence)
}

// drainer источник, умеющий сбросить накопленные сэмплы.
type drainer interface {
	Drain() int
}

// Timing всё в сэмплах или длительностях, кратных периоду.
type Timing struct {
	Flash           time.Duration
	Break           time.Duration
	Baseline        time.Duration
	BaselineSamples int
	EpochSize       int
	Stride          int
	SampleTimeout   time.Duration
}

func NewTiming(c config.TimingConfig) Timing {
	return Timing{
		Flash:           c.FlashDuration,
		Break:           c.BreakDuration,
		Baseline:        c.BaselineDuration,
		BaselineSamples: c.Samples(c.BaselineDuration),
		EpochSize:       c.EpochSizeSamples,
		Stride:          c.Stride(),
		SampleTimeout:   c.SampleTimeout,
	}
}

// SamplesNeeded сэмплов на trial с заданным числом шагов, включая baseline.
func (t Timing) SamplesNeeded(steps int) int {
	return t.BaselineSamples + epoch.SamplesNeeded(t.EpochSize, t.Stride, steps)
}

// Scheduler выполняет trial в горутине сессии. Не потокобезопасен: один
// Scheduler на одну сессионную горутину.
type Scheduler struct {
	strategy   flashing.Strategy
	source     epoch.Source
	classifier classifier.Classifier
	stimulus   Stimulus
	recorder   Recorder
	timing     Timing
	logger     *zap.SugaredLogger

	timer *Timer // таймер предыдущего trial
}

func New(strategy flashing.Strategy, source epoch.Source, cls classifier.Classifier, stim Stimulus, rec Recorder, timing Timing, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		strategy:   strategy,
		source:     source,
		classifier: cls,
		stimulus:   stim,
		recorder:   rec,
		timing:     timing,
		logger:     logger,
	}
}

// Run выполняет один trial и возвращает выбранную позицию. Ошибка нехватки
// сэмплов фатальна для сессии и не повторяется.
func (s *Scheduler) Run(repetitions int) (flashing.Position, error) {
	started := time.Now()
	seq := s.strategy.Generate(repetitions)
	needed := s.timing.SamplesNeeded(len(seq))

	// Не больше одного таймера стимулов одновременно
	s.Wait()

	if d, ok := s.source.(drainer); ok {
		if n := d.Drain(); n > 0 {
			s.logger.Debugw("Stale samples dropped", "count", n)
		}
	}

	s.logger.Infow("Trial started", "steps", len(seq), "repetitions", repetitions, "samples_needed", needed)
	s.timer = startTimer(seq, s.timing, s.stimulus, s.logger)

	tap := &tap{src: s.source, samples: make([]epoch.Sample, 0, needed)}
	scores, err := s.collect(tap, len(seq))
	if err != nil {
		metrics.TrialsTotal.WithLabelValues("starved").Inc()
		s.logger.Errorw("Trial starved", "scores", len(scores), "steps", len(seq), "samples", len(tap.samples), "error", err)
		return flashing.Position{}, fmt.Errorf("%w: got %d of %d: %w", ErrNotEnoughScores, len(scores), len(seq), err)
	}

	pos := s.strategy.Decode(seq, scores)

	s.recorder.RecordSamples(tap.samples)
	s.recorder.RecordFlashingSequence(seq)

	elapsed := time.Since(started)
	metrics.TrialsTotal.WithLabelValues("ok").Inc()
	metrics.TrialDuration.Observe(elapsed.Seconds())
	s.logger.Infow("Trial finished", "position", pos.String(), "elapsed", elapsed.String())
	return pos, nil
}

// collect пропускает baseline и оценивает по окну на каждый шаг.
func (s *Scheduler) collect(src *tap, steps int) ([]float64, error) {
	for i := range s.timing.BaselineSamples {
		if _, err := src.Next(s.timing.SampleTimeout); err != nil {
			return nil, fmt.Errorf("%w in baseline after %d samples: %w", epoch.ErrStarvation, i, err)
		}
	}

	scores := make([]float64, 0, steps)
	w := epoch.NewWindower(src, s.timing.EpochSize, s.timing.Stride, s.timing.SampleTimeout)
	for e, err := range w.Windows(steps) {
		if err != nil {
			return scores, err
		}
		scores = append(scores, s.classifier.Score(e))
	}
	return scores, nil
}

// Wait ждёт завершения таймера последнего trial.
func (s *Scheduler) Wait() {
	if s.timer != nil {
		s.timer.Wait()
	}
}

// tap запоминает все прочитанные сэмплы для записи.
type tap struct {
	src     epoch.Source
	samples []epoch.Sample
}

func (t *tap) Next(timeout time.Duration) (epoch.Sample, error) {
	s, err := t.src.Next(timeout)
	if err == nil {
		t.samples = append(t.samples, s)
	}
	return s, err
}
