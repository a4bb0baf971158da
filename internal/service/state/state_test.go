package state

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"BCISpeller/internal/service/command"
	"BCISpeller/internal/service/flashing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSuggester возвращает "w<len(prefix)>-<i>" и запоминает вызовы.
type fakeSuggester struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSuggester) Suggestions(_ context.Context, text string, prefix []int, max int) []string {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if len(prefix) == 0 {
		return nil
	}
	out := make([]string, 0, max+2)
	for i := range max + 2 {
		out = append(out, strings.Repeat("а", len(prefix))+string(rune('0'+i)))
	}
	return out
}

func newState(t *testing.T, opts ...Option) (*State, *fakeSuggester) {
	t.Helper()
	f := &fakeSuggester{}
	return New(f, 3, Params{Name: "test", Target: -1, Repetitions: 2, Cycles: 5}, zap.NewNop().Sugar(), opts...), f
}

func TestT9InputExtendsPrefix(t *testing.T) {
	s, _ := newState(t)
	ctx := context.Background()

	s.Apply(ctx, command.T9Input(0))
	s.Apply(ctx, command.T9Input(3))

	snap := s.Snapshot()
	assert.Equal(t, []int{0, 3}, snap.Prefix)
	assert.Len(t, snap.Suggestions, 3, "capped at max")
	assert.Equal(t, "ам", snap.FullText)
	assert.Equal(t, "2. T9 МНОП", snap.Info)
	assert.Equal(t, 2, snap.HistoryDepth)
}

func TestSuggestionCommitsWord(t *testing.T) {
	var committed []string
	s, _ := newState(t, WithCommitHook(func(w string) { committed = append(committed, w) }))
	ctx := context.Background()

	s.Apply(ctx, command.T9Input(1))
	word := s.Snapshot().Suggestions[1]
	s.Apply(ctx, command.SuggestionInput(1))

	snap := s.Snapshot()
	assert.Equal(t, word+" ", snap.Text)
	assert.Empty(t, snap.Prefix)
	assert.Empty(t, snap.Suggestions)
	assert.Equal(t, "2. ВАРИАНТ 2", snap.Info)
	assert.Equal(t, []string{word}, committed)
}

func TestUnavailableSuggestion(t *testing.T) {
	s, f := newState(t)
	ctx := context.Background()

	s.Apply(ctx, command.Clear())
	s.Apply(ctx, command.SuggestionInput(2))

	snap := s.Snapshot()
	assert.Equal(t, "2. ВАРИАНТ 3 НЕДОСТУПЕН", snap.Info)
	assert.False(t, snap.PreselectedClear, "any command resets preselection")
	assert.Zero(t, snap.HistoryDepth)
	assert.Zero(t, f.calls)
}

func TestUnavailableSuggestionKeepsBuffer(t *testing.T) {
	s, f := newState(t)
	ctx := context.Background()

	s.Apply(ctx, command.T9Input(1))
	s.Apply(ctx, command.SuggestionInput(0))
	s.Apply(ctx, command.T9Input(0))
	before := s.Snapshot()
	require.Len(t, before.Suggestions, 3)
	require.NotEmpty(t, before.Text)
	calls := f.calls

	s.Apply(ctx, command.SuggestionInput(5))

	snap := s.Snapshot()
	assert.Equal(t, "4. ВАРИАНТ 6 НЕДОСТУПЕН", snap.Info)
	assert.Equal(t, before.Text, snap.Text)
	assert.Equal(t, []int{0}, snap.Prefix)
	assert.Equal(t, before.Suggestions, snap.Suggestions)
	assert.Equal(t, before.HistoryDepth, snap.HistoryDepth)
	assert.Equal(t, calls, f.calls)
}

func TestClearNeedsConfirmation(t *testing.T) {
	s, _ := newState(t)
	ctx := context.Background()

	s.Apply(ctx, command.T9Input(0))
	s.Apply(ctx, command.Clear())
	snap := s.Snapshot()
	assert.True(t, snap.PreselectedClear)
	assert.Equal(t, []int{0}, snap.Prefix, "first clear is only a preselection")
	assert.Equal(t, "2. ПОВТОРИТЕ СБРОС", snap.Info)

	s.Apply(ctx, command.Clear())
	snap = s.Snapshot()
	assert.False(t, snap.PreselectedClear)
	assert.Empty(t, snap.Prefix)
	assert.Empty(t, snap.Text)
	assert.Equal(t, "3. СБРОС", snap.Info)
	assert.Equal(t, 2, snap.HistoryDepth)
}

func TestCancelRestoresPreviousState(t *testing.T) {
	s, _ := newState(t)
	ctx := context.Background()

	s.Apply(ctx, command.T9Input(0))
	before := s.Snapshot()
	s.Apply(ctx, command.T9Input(5))

	s.Apply(ctx, command.Cancel())
	assert.True(t, s.Snapshot().PreselectedCancel)
	s.Apply(ctx, command.Cancel())

	after := s.Snapshot()
	assert.Empty(t, cmp.Diff(before.Prefix, after.Prefix))
	assert.Empty(t, cmp.Diff(before.Suggestions, after.Suggestions))
	assert.Equal(t, before.Text, after.Text)
	assert.Equal(t, 1, after.HistoryDepth)
	assert.Equal(t, "4. ОТМЕНА", after.Info)
}

func TestCancelAfterClearRestoresBuffer(t *testing.T) {
	s, _ := newState(t)
	ctx := context.Background()

	s.Apply(ctx, command.T9Input(2))
	s.Apply(ctx, command.Clear())
	s.Apply(ctx, command.Clear())
	s.Apply(ctx, command.Cancel())
	s.Apply(ctx, command.Cancel())

	assert.Equal(t, []int{2}, s.Snapshot().Prefix)
}

func TestCancelOnEmptyHistory(t *testing.T) {
	s, _ := newState(t)
	ctx := context.Background()

	s.Apply(ctx, command.Cancel())
	s.Apply(ctx, command.Cancel())

	snap := s.Snapshot()
	assert.Empty(t, snap.Text)
	assert.Empty(t, snap.Prefix)
	assert.Equal(t, "2. ОТМЕНА", snap.Info)
}

func TestPreselectionsAreExclusive(t *testing.T) {
	s, _ := newState(t)
	ctx := context.Background()

	s.Apply(ctx, command.Clear())
	s.Apply(ctx, command.Cancel())
	snap := s.Snapshot()
	assert.False(t, snap.PreselectedClear)
	assert.True(t, snap.PreselectedCancel)

	s.Apply(ctx, command.Clear())
	snap = s.Snapshot()
	assert.True(t, snap.PreselectedClear)
	assert.False(t, snap.PreselectedCancel)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _ := newState(t)
	s.Apply(context.Background(), command.T9Input(0))
	s.SetFlashingList(flashing.List{{Row: 1, Col: 1}})

	snap := s.Snapshot()
	snap.Prefix[0] = 7
	snap.Suggestions[0] = "x"
	snap.FlashingList[0] = flashing.Position{}

	again := s.Snapshot()
	assert.Equal(t, []int{0}, again.Prefix)
	assert.NotEqual(t, "x", again.Suggestions[0])
	assert.Equal(t, flashing.List{{Row: 1, Col: 1}}, again.FlashingList)

	s.ResetFlashingList()
	assert.Empty(t, s.Snapshot().FlashingList)
}

func TestConcurrentApplyAndSnapshot(t *testing.T) {
	s, _ := newState(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				s.Apply(ctx, command.T9Input(i))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 200 {
			snap := s.Snapshot()
			assert.Equal(t, len(snap.Prefix), snap.HistoryDepth)
		}
	}()
	wg.Wait()
	assert.Len(t, s.Snapshot().Prefix, 200)
}

func TestNotifyIsNonBlocking(t *testing.T) {
	s, _ := newState(t)
	for range 10 {
		s.Apply(context.Background(), command.Clear())
	}
	select {
	case <-s.NotifyCh():
	default:
		t.Fatal("expected pending notification")
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, _ := newState(t)

	assert.False(t, s.WaitRunning(5*time.Millisecond))

	go func() {
		time.Sleep(5 * time.Millisecond)
		s.StartSession(Params{Target: 3})
	}()
	require.True(t, s.WaitRunning(time.Second))
	assert.True(t, s.IsRunning())

	p := s.Session()
	assert.Equal(t, "test", p.Name)
	assert.Equal(t, 3, p.Target)
	assert.Equal(t, 2, p.Repetitions)
	assert.Equal(t, 5, p.Cycles)

	assert.Equal(t, 1, s.CompleteCycle())
	assert.Equal(t, 2, s.CompleteCycle())

	s.FinishSession()
	assert.False(t, s.IsRunning())
	assert.False(t, s.WaitRunning(5*time.Millisecond))

	s.StartSession(Params{Name: "second", Cycles: 1})
	assert.Zero(t, s.Snapshot().Cycle)
	assert.Equal(t, "second", s.Session().Name)
}

func TestShutdownReleasesWaiters(t *testing.T) {
	s, _ := newState(t)

	done := make(chan bool, 1)
	go func() { done <- s.WaitRunning(time.Minute) }()

	s.RequestShutdown()
	s.RequestShutdown()
	assert.False(t, <-done)
	assert.True(t, s.IsShutdown())
	assert.True(t, s.Snapshot().Shutdown)
}
