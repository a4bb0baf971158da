package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"BCISpeller/internal/config"
	"BCISpeller/internal/service/audio"
	"BCISpeller/internal/service/state"
)

// cueTimeout сигнал не должен задерживать сессию надолго.
const cueTimeout = 3 * time.Second

// SoundNotifier проигрывает короткие сигналы на границах сессии.
type SoundNotifier struct {
	logger     *zap.SugaredLogger
	pathStart  string
	pathFinish string
	ply        audio.Player
}

// NewSoundNotifier пустые пути отключают соответствующий сигнал. Относительные
// пути ищутся сначала рядом с бинарём.
func NewSoundNotifier(cfg config.SoundsConfig, ply audio.Player, logger *zap.SugaredLogger) *SoundNotifier {
	return &SoundNotifier{
		logger:     logger,
		pathStart:  audio.Resolve(cfg.StartPath),
		pathFinish: audio.Resolve(cfg.EndPath),
		ply:        ply,
	}
}

// SessionStarted сигнал перед первым trial; блокирует, пока звучит.
func (n *SoundNotifier) SessionStarted(state.Params) { n.play(n.pathStart) }

func (n *SoundNotifier) SessionFinished() { n.play(n.pathFinish) }

// play ошибки только логируются.
func (n *SoundNotifier) play(path string) {
	if path == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
	defer cancel()
	if err := audio.PlayFile(ctx, n.ply, path); err != nil {
		n.logger.Warnw("Failed to play sound cue", "path", path, "error", err)
	}
}
