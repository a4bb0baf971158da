// Package voice озвучка выбранных слов.
package voice

import (
	"bytes"
	"context"
	"io"

	"go.uber.org/zap"

	"BCISpeller/internal/service/audio"
)

// Synthesizer превращает текст в MP3.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Speaker один фоновый воркер: Say никогда не ждёт синтеза.
type Speaker struct {
	synth  Synthesizer
	player audio.Player
	queue  chan string
	logger *zap.SugaredLogger
}

func NewSpeaker(synth Synthesizer, player audio.Player, queueSize int, logger *zap.SugaredLogger) *Speaker {
	if queueSize <= 0 {
		queueSize = 8
	}
	return &Speaker{synth: synth, player: player, queue: make(chan string, queueSize), logger: logger}
}

// Say ставит текст в очередь; при заполненной очереди текст теряется.
func (s *Speaker) Say(text string) {
	select {
	case s.queue <- text:
	default:
		s.logger.Warnw("Voice queue full, dropped", "text", text)
	}
}

// Run озвучивает очередь до отмены ctx.
func (s *Speaker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-s.queue:
			s.speak(ctx, text)
		}
	}
}

func (s *Speaker) speak(ctx context.Context, text string) {
	data, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.logger.Warnw("Speech synthesis failed", "text", text, "error", err)
		return
	}
	if err := s.player.Play(ctx, "mp3", io.NopCloser(bytes.NewReader(data))); err != nil {
		s.logger.Warnw("Speech playback failed", "text", text, "error", err)
	}
}
