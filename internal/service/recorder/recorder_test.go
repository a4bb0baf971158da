package recorder

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"BCISpeller/internal/service/epoch"
	"BCISpeller/internal/service/flashing"
	"BCISpeller/internal/service/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var layout = Layout{GridSize: 4, Strategy: "single", Channels: 2, SampleRateHz: 250, BaselineSamples: 1, EpochSize: 3, Stride: 2}

func runRecorder(t *testing.T, dir string) (*Recorder, func()) {
	t.Helper()
	r := New(dir, layout, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return r, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func samples(n int) []epoch.Sample {
	out := make([]epoch.Sample, n)
	for i := range out {
		out[i] = epoch.Sample{float64(i), float64(i) + 0.5}
	}
	return out
}

func TestRecorderWritesTrial(t *testing.T) {
	dir := t.TempDir()
	r, stop := runRecorder(t, dir)

	r.SessionStarted(state.Params{Name: "пилот 1", Target: 5, Repetitions: 1, Cycles: 3})
	// Последовательность может прийти раньше сэмплов: пары собираются по очереди
	r.RecordFlashingSequence(flashing.Sequence{{{Row: 1, Col: 2}}, {{Row: 3, Col: 0}, {Row: 3, Col: 1}}})
	r.RecordSamples(samples(6))
	r.SessionFinished()
	stop()

	csvs, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	require.NoError(t, err)
	require.Len(t, csvs, 1)
	assert.Contains(t, filepath.Base(csvs[0]), "пилот_1")

	f, err := os.Open(csvs[0])
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 7)
	assert.Equal(t, []string{"EEG 1", "EEG 2", "FLASH", "ITEM"}, rows[0])
	assert.Equal(t, []string{"0", "0.5", "0", "0"}, rows[1])
	assert.Equal(t, []string{"1", "1.5", "1", "6"}, rows[2])  // baseline 1: первая вспышка (1,2)
	assert.Equal(t, []string{"3", "3.5", "1", "12"}, rows[4]) // +stride: вторая вспышка (3,0)
	assert.Equal(t, "0", rows[5][2])

	data, err := os.ReadFile(strings.TrimSuffix(csvs[0], ".csv") + ".yaml")
	require.NoError(t, err)
	var meta Meta
	require.NoError(t, yaml.Unmarshal(data, &meta))
	assert.Equal(t, "пилот 1", meta.Session.Name)
	assert.Equal(t, 5, meta.Session.Target)
	assert.Equal(t, layout, meta.Layout)
	assert.NotEmpty(t, meta.ID)
}

func TestRecorderFilePerSession(t *testing.T) {
	dir := t.TempDir()
	r, stop := runRecorder(t, dir)

	r.SessionStarted(state.Params{Name: "a"})
	r.RecordSamples(samples(3))
	r.RecordFlashingSequence(flashing.Sequence{{{Row: 0, Col: 0}}})
	r.SessionStarted(state.Params{Name: "b"})
	r.RecordSamples(samples(3))
	r.RecordFlashingSequence(flashing.Sequence{{{Row: 0, Col: 0}}})
	stop()

	csvs, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	require.NoError(t, err)
	assert.Len(t, csvs, 2)
	for _, name := range csvs {
		data, err := os.ReadFile(name)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 4)
	}
}

func TestRecorderOutsideSessionSkips(t *testing.T) {
	dir := t.TempDir()
	r, stop := runRecorder(t, dir)
	r.RecordSamples(samples(3))
	r.RecordFlashingSequence(flashing.Sequence{{{Row: 0, Col: 0}}})
	time.Sleep(10 * time.Millisecond)
	stop()

	csvs, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	require.NoError(t, err)
	assert.Empty(t, csvs)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a_b-c", safeName("a/b-c"))
	assert.Equal(t, "session", safeName(""))
}
