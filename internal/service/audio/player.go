// Package audio проигрывание коротких mp3/wav через faiface/beep.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// ErrUnsupportedFormat формат не mp3 и не wav.
var ErrUnsupportedFormat = errors.New("unsupported format for direct playback; use mp3 or wav")

// Player воспроизводит аудио потоком в зависимости от формата.
type Player interface {
	Play(ctx context.Context, format string, r io.ReadCloser) error
}

// Beep реализует Player. Звуки проигрываются по одному; колонка
// инициализируется заново только при смене частоты дискретизации.
type Beep struct {
	volumeDB float64

	mu   sync.Mutex
	rate beep.SampleRate
}

// New создаёт плеер с громкостью в dB (отрицательные — тише).
func New(volumeDB float64) *Beep { return &Beep{volumeDB: volumeDB} }

func (b *Beep) Play(ctx context.Context, format string, r io.ReadCloser) error {
	streamer, f, err := decode(format, r)
	if err != nil {
		return err
	}
	defer streamer.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rate != f.SampleRate {
		if err := speaker.Init(f.SampleRate, f.SampleRate.N(time.Second/10)); err != nil {
			return err
		}
		b.rate = f.SampleRate
	}
	vol := &effects.Volume{
		Streamer: streamer,
		Base:     2,
		Volume:   b.volumeDB,
		Silent:   false,
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(vol, beep.Callback(func() { close(done) })))
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return context.Cause(ctx)
	}
}

func decode(format string, r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(format) {
	case "wav":
		return wav.Decode(r)
	case "mp3":
		return mp3.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// PlayFile формат определяется по расширению, без расширения — mp3.
func PlayFile(ctx context.Context, p Player, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = "mp3"
	}
	return p.Play(ctx, ext, f)
}

// Resolve ищет относительный путь сначала рядом с бинарём, затем от рабочей директории.
func Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if exe, err := os.Executable(); err == nil {
		cand := filepath.Join(filepath.Dir(exe), path)
		if _, statErr := os.Stat(cand); statErr == nil {
			return cand
		}
	}
	return filepath.FromSlash(path)
}
