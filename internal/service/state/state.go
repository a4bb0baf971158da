package state

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"BCISpeller/internal/metrics"
	"BCISpeller/internal/service/command"
	"BCISpeller/internal/service/flashing"
	"BCISpeller/internal/service/suggest"
)

// Suggester внешний источник подсказок.
type Suggester interface {
	Suggestions(ctx context.Context, text string, prefix []int, max int) []string
}

// Params параметры сессии, задаются при старте из UI.
type Params struct {
	Name        string `json:"name" yaml:"name"`
	Comment     string `json:"comment" yaml:"comment"`
	Target      int    `json:"target" yaml:"target"`           // Индекс целевой ячейки, -1 — не задан
	Repetitions int    `json:"repetitions" yaml:"repetitions"` // 0 — из конфигурации
	Cycles      int    `json:"cycles" yaml:"cycles"`           // 0 — из конфигурации
}

// entry запись истории для отмены.
type entry struct {
	text        string
	prefix      []int
	suggestions []string
}

// Snapshot согласованная копия состояния для чтения из UI.
type Snapshot struct {
	Text              string        `json:"text"`
	Prefix            []int         `json:"prefix"`
	FullText          string        `json:"full_text"`
	Suggestions       []string      `json:"suggestions"`
	PreselectedClear  bool          `json:"preselected_clear"`
	PreselectedCancel bool          `json:"preselected_cancel"`
	FlashingList      flashing.List `json:"flashing_list"`
	Info              string        `json:"info"`
	HistoryDepth      int           `json:"history_depth"`
	Running           bool          `json:"running"`
	Shutdown          bool          `json:"shutdown"`
	Session           Params        `json:"session"`
	SessionStart      time.Time     `json:"session_start"`
	Cycle             int           `json:"cycle"`
}

// State машина состояний ввода и управление сессией. Мутации ввода
// сериализуются applyMu; подсказки запрашиваются вне mu, поэтому читатели
// не ждут внешний провайдер и никогда не видят половину одной мутации.
type State struct {
	suggester      Suggester
	maxSuggestions int
	defaults       Params
	logger         *zap.SugaredLogger
	onCommit       func(word string)

	applyMu sync.Mutex

	mu                sync.RWMutex
	text              string
	prefix            []int
	suggestions       []string
	preselectedClear  bool
	preselectedCancel bool
	flashingList      flashing.List
	info              string
	infoCounter       int
	history           []entry

	running      bool
	runningCh    chan struct{} // закрыт, пока сессия идёт
	session      Params
	sessionStart time.Time
	cycle        int

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	notify chan struct{}
}

// Option настройка State.
type Option func(*State)

// WithCommitHook вызывается с каждым словом, выбранным из подсказок.
func WithCommitHook(fn func(word string)) Option {
	return func(s *State) { s.onCommit = fn }
}

func New(suggester Suggester, maxSuggestions int, defaults Params, logger *zap.SugaredLogger, opts ...Option) *State {
	s := &State{
		suggester:      suggester,
		maxSuggestions: maxSuggestions,
		defaults:       defaults,
		logger:         logger,
		infoCounter:    1,
		runningCh:      make(chan struct{}),
		session:        defaults,
		shutdownCh:     make(chan struct{}),
		notify:         make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot возвращает копию состояния.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Text:              s.text,
		Prefix:            slices.Clone(s.prefix),
		FullText:          fullText(s.text, s.prefix),
		Suggestions:       slices.Clone(s.suggestions),
		PreselectedClear:  s.preselectedClear,
		PreselectedCancel: s.preselectedCancel,
		FlashingList:      slices.Clone(s.flashingList),
		Info:              s.info,
		HistoryDepth:      len(s.history),
		Running:           s.running,
		Shutdown:          s.isShutdown(),
		Session:           s.session,
		SessionStart:      s.sessionStart,
		Cycle:             s.cycle,
	}
}

// fullText набранный текст плюс первая буква каждого ожидающего набора.
func fullText(text string, prefix []int) string {
	var b strings.Builder
	b.WriteString(text)
	for _, i := range prefix {
		for _, r := range suggest.T9Charsets[i] {
			b.WriteRune(r)
			break
		}
	}
	return b.String()
}

// NotifyCh сигналит о любом изменении состояния (не блокирует писателя).
func (s *State) NotifyCh() <-chan struct{} { return s.notify }

func (s *State) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// SetFlashingList публикует текущий стимул.
func (s *State) SetFlashingList(l flashing.List) {
	s.mu.Lock()
	s.flashingList = l
	s.mu.Unlock()
	s.signal()
}

// ResetFlashingList гасит стимул.
func (s *State) ResetFlashingList() {
	s.mu.Lock()
	s.flashingList = nil
	s.mu.Unlock()
	s.signal()
}

// Apply применяет команду. Никогда не возвращает ошибок: некорректный ввод
// отражается в info.
func (s *State) Apply(ctx context.Context, cmd command.Command) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	switch cmd.Kind {
	case command.KindT9:
		s.t9Input(ctx, cmd.Index)
	case command.KindSuggestion:
		s.suggestionInput(ctx, cmd.Index)
	case command.KindClear:
		s.clearInput()
	case command.KindCancel:
		s.cancelInput()
	default:
		panic(fmt.Sprintf("state: unknown command %v", cmd))
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Kind.String()).Inc()
	s.signal()
}

func (s *State) t9Input(ctx context.Context, charset int) {
	if charset < 0 || charset >= len(suggest.T9Charsets) {
		panic(fmt.Sprintf("state: charset %d out of range", charset))
	}
	s.mu.RLock()
	text := s.text
	prefix := append(slices.Clone(s.prefix), charset)
	s.mu.RUnlock()

	suggestions := s.lookup(ctx, text, prefix)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.preselectedClear, s.preselectedCancel = false, false
	s.pushHistory()
	s.prefix = prefix
	s.suggestions = suggestions
	s.setInfo("T9 " + strings.ToUpper(suggest.T9Charsets[charset]))
	s.logger.Debugw("T9 input", "charset", charset, "prefix", s.prefix, "suggestions", s.suggestions)
}

func (s *State) suggestionInput(ctx context.Context, index int) {
	s.mu.Lock()
	s.preselectedClear, s.preselectedCancel = false, false
	if index < 0 || index >= len(s.suggestions) {
		s.setInfo(fmt.Sprintf("ВАРИАНТ %d НЕДОСТУПЕН", index+1))
		s.logger.Debugw("Suggestion unavailable", "index", index, "available", len(s.suggestions))
		s.mu.Unlock()
		return
	}
	word := s.suggestions[index]
	text := s.text + word + " "
	s.mu.Unlock()

	suggestions := s.lookup(ctx, text, nil)

	s.mu.Lock()
	s.pushHistory()
	s.text = text
	s.prefix = nil
	s.suggestions = suggestions
	s.setInfo(fmt.Sprintf("ВАРИАНТ %d", index+1))
	s.logger.Debugw("Suggestion input", "index", index, "word", word, "text", s.text)
	s.mu.Unlock()

	if s.onCommit != nil {
		s.onCommit(word)
	}
}

func (s *State) clearInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preselectedCancel = false
	if !s.preselectedClear {
		s.preselectedClear = true
		s.setInfo("ПОВТОРИТЕ СБРОС")
		return
	}
	s.pushHistory()
	s.text, s.prefix, s.suggestions = "", nil, nil
	s.preselectedClear = false
	s.setInfo("СБРОС")
	s.logger.Debugw("Input cleared", "history", len(s.history))
}

func (s *State) cancelInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preselectedClear = false
	if !s.preselectedCancel {
		s.preselectedCancel = true
		s.setInfo("ПОВТОРИТЕ ОТМЕНА")
		return
	}
	s.preselectedCancel = false
	if n := len(s.history); n > 0 {
		prev := s.history[n-1]
		s.history = s.history[:n-1]
		s.text, s.prefix, s.suggestions = prev.text, prev.prefix, prev.suggestions
	}
	s.setInfo("ОТМЕНА")
	s.logger.Debugw("Input cancelled", "text", s.text, "prefix", s.prefix, "history", len(s.history))
}

// pushHistory сохраняет текущее состояние ввода; вызывается под mu.
func (s *State) pushHistory() {
	s.history = append(s.history, entry{
		text:        s.text,
		prefix:      slices.Clone(s.prefix),
		suggestions: slices.Clone(s.suggestions),
	})
}

// setInfo нумерованная строка для UI; вызывается под mu.
func (s *State) setInfo(msg string) {
	s.info = fmt.Sprintf("%d. %s", s.infoCounter, msg)
	s.infoCounter++
}

func (s *State) lookup(ctx context.Context, text string, prefix []int) []string {
	if s.suggester == nil || s.maxSuggestions <= 0 {
		return nil
	}
	out := s.suggester.Suggestions(ctx, text, prefix, s.maxSuggestions)
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}
