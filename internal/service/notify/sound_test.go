package notify

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"BCISpeller/internal/config"
	"BCISpeller/internal/service/state"
)

type fakePlayer struct{ played []string }

func (p *fakePlayer) Play(_ context.Context, format string, r io.ReadCloser) error {
	b, err := io.ReadAll(r)
	p.played = append(p.played, format+":"+string(b))
	return err
}

func TestCues(t *testing.T) {
	dir := t.TempDir()
	start := filepath.Join(dir, "start.mp3")
	finish := filepath.Join(dir, "finish.wav")
	require.NoError(t, os.WriteFile(start, []byte("s"), 0o644))
	require.NoError(t, os.WriteFile(finish, []byte("f"), 0o644))

	p := &fakePlayer{}
	n := NewSoundNotifier(config.SoundsConfig{Enabled: true, StartPath: start, EndPath: finish}, p, zap.NewNop().Sugar())
	n.SessionStarted(state.Params{})
	n.SessionFinished()
	assert.Equal(t, []string{"mp3:s", "wav:f"}, p.played)
}

func TestMissingCueIsLoggedOnly(t *testing.T) {
	p := &fakePlayer{}
	n := NewSoundNotifier(config.SoundsConfig{StartPath: filepath.Join(t.TempDir(), "none.mp3")}, p, zap.NewNop().Sugar())
	n.SessionStarted(state.Params{})
	n.SessionFinished()
	assert.Empty(t, p.played)
}
