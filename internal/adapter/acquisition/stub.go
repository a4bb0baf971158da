package acquisition

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"BCISpeller/internal/service/epoch"
)

// Stub генерирует случайные сэмплы с заданной частотой вместо устройства.
type Stub struct {
	queue    *Queue
	channels int
	period   time.Duration
	tick     time.Duration
	logger   *zap.SugaredLogger
}

func NewStub(queue *Queue, channels int, period time.Duration, logger *zap.SugaredLogger) *Stub {
	return &Stub{queue: queue, channels: channels, period: period, tick: 20 * time.Millisecond, logger: logger}
}

// Run выдаёт сэмплы пачками раз в tick до отмены контекста. Количество
// сэмплов считается от момента старта, поэтому частота не плывёт.
func (s *Stub) Run(ctx context.Context) error {
	defer s.queue.Close()

	t := time.NewTicker(s.tick)
	defer t.Stop()

	start := time.Now()
	produced := int64(0)
	s.logger.Infow("Stub acquisition started", "channels", s.channels, "period", s.period.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("Stub acquisition stopped", "produced", produced, "dropped", s.queue.Dropped())
			return nil
		case now := <-t.C:
			due := int64(now.Sub(start) / s.period)
			for ; produced < due; produced++ {
				s.queue.Push(s.sample())
			}
		}
	}
}

func (s *Stub) sample() epoch.Sample {
	v := rand.Float64()
	out := make(epoch.Sample, s.channels)
	for i := range out {
		out[i] = v
	}
	return out
}
