package state

import (
	"time"

	"BCISpeller/internal/metrics"
)

// StartSession поднимает флаг работы. Нулевые поля params берутся из
// значений по умолчанию.
func (s *State) StartSession(params Params) {
	if params.Name == "" {
		params.Name = s.defaults.Name
	}
	if params.Repetitions <= 0 {
		params.Repetitions = s.defaults.Repetitions
	}
	if params.Cycles <= 0 {
		params.Cycles = s.defaults.Cycles
	}

	s.mu.Lock()
	s.session = params
	s.sessionStart = time.Now()
	s.cycle = 0
	if !s.running {
		s.running = true
		close(s.runningCh)
	}
	s.mu.Unlock()

	metrics.Sessions.WithLabelValues("started").Inc()
	s.logger.Infow("Session started", "name", params.Name, "target", params.Target, "repetitions", params.Repetitions, "cycles", params.Cycles)
	s.signal()
}

// FinishSession снимает флаг работы; текущий trial дорабатывает.
func (s *State) FinishSession() {
	s.mu.Lock()
	was := s.running
	if s.running {
		s.running = false
		s.runningCh = make(chan struct{})
	}
	s.mu.Unlock()

	if was {
		metrics.Sessions.WithLabelValues("finished").Inc()
		s.logger.Infow("Session finished")
	}
	s.signal()
}

// RequestShutdown однократный флаг завершения; повторные вызовы ничего не меняют.
func (s *State) RequestShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		s.logger.Infow("Shutdown requested")
	})
	s.signal()
}

func (s *State) IsShutdown() bool { return s.isShutdown() }

func (s *State) isShutdown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

func (s *State) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// WaitRunning ждёт старта сессии не дольше timeout. Возвращает false по
// таймауту или при завершении.
func (s *State) WaitRunning(timeout time.Duration) bool {
	s.mu.RLock()
	running, ch := s.running, s.runningCh
	s.mu.RUnlock()
	if running {
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-s.shutdownCh:
		return false
	case <-t.C:
		return false
	}
}

// Session текущие параметры сессии.
func (s *State) Session() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// CompleteCycle увеличивает счётчик trial в сессии и возвращает его.
func (s *State) CompleteCycle() int {
	s.mu.Lock()
	s.cycle++
	n := s.cycle
	s.mu.Unlock()
	s.signal()
	return n
}
