package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"BCISpeller/internal/adapter/acquisition"
	"BCISpeller/internal/adapter/classifier"
	"BCISpeller/internal/app/runner"
	"BCISpeller/internal/app/trial"
	"BCISpeller/internal/metrics"
	"BCISpeller/internal/service/command"
	"BCISpeller/internal/service/flashing"
	"BCISpeller/internal/service/recorder"
	"BCISpeller/internal/service/state"
	"BCISpeller/internal/service/suggest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSignalLetsCurrentTrialFinish(t *testing.T) {
	logger := zap.NewNop().Sugar()
	sigCtx, signal := context.WithCancel(context.Background())
	defer signal()

	g, gctx := errgroup.WithContext(context.Background())
	ctx, stopWork := context.WithCancel(gctx)
	defer stopWork()

	// 1 сэмпл в мс, вспышка+пауза 8 мс: trial 4×4 идёт ~130 мс
	queue := acquisition.NewQueue(10_000)
	stub := acquisition.NewStub(queue, 2, time.Millisecond, logger)
	g.Go(func() error { return stub.Run(ctx) })

	defaults := state.Params{Name: "sig", Target: -1, Repetitions: 1}
	machine := state.New(nil, 0, defaults, logger)
	strategy, err := flashing.New("single", 4, nil)
	require.NoError(t, err)
	timing := trial.Timing{
		Flash:         4 * time.Millisecond,
		Break:         4 * time.Millisecond,
		EpochSize:     16,
		Stride:        8,
		SampleTimeout: time.Second,
	}
	scheduler := trial.New(strategy, queue, classifier.NewStub(), machine, recorder.Nop{}, timing, logger)
	speller := runner.New(scheduler, command.NewDecoder(4, len(suggest.T9Charsets)), machine, recorder.Nop{}, 5*time.Millisecond, logger)

	okBefore := testutil.ToFloat64(metrics.TrialsTotal.WithLabelValues("ok"))
	starvedBefore := testutil.ToFloat64(metrics.TrialsTotal.WithLabelValues("starved"))

	machine.StartSession(defaults)
	supervise(sigCtx, ctx, stopWork, g, machine, speller)

	// Сигнал посреди первого trial
	require.Eventually(t, func() bool { return len(machine.Snapshot().FlashingList) > 0 }, time.Second, time.Millisecond)
	signal()

	require.NoError(t, g.Wait())
	assert.True(t, machine.IsShutdown())
	assert.Equal(t, 1, machine.Snapshot().Cycle, "trial in progress is decoded and applied")
	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.TrialsTotal.WithLabelValues("ok")))
	assert.Equal(t, starvedBefore, testutil.ToFloat64(metrics.TrialsTotal.WithLabelValues("starved")))
}

func TestSourceFailureStopsRunner(t *testing.T) {
	logger := zap.NewNop().Sugar()
	g, gctx := errgroup.WithContext(context.Background())
	ctx, stopWork := context.WithCancel(gctx)
	defer stopWork()

	machine := state.New(nil, 0, state.Params{Name: "idle"}, logger)
	speller := runner.New(&idleTrial{}, command.NewDecoder(4, len(suggest.T9Charsets)), machine, nil, 5*time.Millisecond, logger)
	supervise(context.Background(), ctx, stopWork, g, machine, speller)

	boom := assert.AnError
	g.Go(func() error { return boom })
	require.ErrorIs(t, g.Wait(), boom)
}

type idleTrial struct{}

func (idleTrial) Run(int) (flashing.Position, error) { return flashing.Position{}, nil }
func (idleTrial) Wait()                              {}
