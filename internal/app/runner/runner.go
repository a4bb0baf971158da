// Package runner верхний цикл спеллера: ждёт старта сессии, гоняет trial и
// применяет декодированные команды до лимита циклов или завершения.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"BCISpeller/internal/service/command"
	"BCISpeller/internal/service/flashing"
	"BCISpeller/internal/service/state"
)

// Trial один цикл выбора.
type Trial interface {
	Run(repetitions int) (flashing.Position, error)
	Wait()
}

// Machine сторона состояния, которую использует цикл сессии.
type Machine interface {
	WaitRunning(timeout time.Duration) bool
	IsRunning() bool
	IsShutdown() bool
	Session() state.Params
	Apply(ctx context.Context, cmd command.Command)
	CompleteCycle() int
	FinishSession()
}

// Hooks наблюдатели границ сессии: звуковые сигналы, запись.
type Hooks interface {
	SessionStarted(params state.Params)
	SessionFinished()
}

// MultiHooks рассылает события всем по порядку.
type MultiHooks []Hooks

func (m MultiHooks) SessionStarted(params state.Params) {
	for _, h := range m {
		h.SessionStarted(params)
	}
}

func (m MultiHooks) SessionFinished() {
	for _, h := range m {
		h.SessionFinished()
	}
}

type Runner struct {
	trial    Trial
	decoder  *command.Decoder
	machine  Machine
	hooks    Hooks
	idlePoll time.Duration
	logger   *zap.SugaredLogger
}

func New(trial Trial, decoder *command.Decoder, machine Machine, hooks Hooks, idlePoll time.Duration, logger *zap.SugaredLogger) *Runner {
	if idlePoll <= 0 {
		idlePoll = time.Second
	}
	return &Runner{trial: trial, decoder: decoder, machine: machine, hooks: hooks, idlePoll: idlePoll, logger: logger}
}

// Run крутит сессии до завершения. Завершение не ошибка: возвращается nil.
// Ошибка trial фатальна и возвращается наверх.
func (r *Runner) Run(ctx context.Context) error {
	defer r.trial.Wait()
	r.logger.Infow("Runner started", "idle_poll", r.idlePoll.String())

	for {
		if r.stopping(ctx) {
			r.logger.Infow("Runner stopped")
			return nil
		}
		// Ограниченное ожидание, чтобы заметить завершение
		if !r.machine.WaitRunning(r.idlePoll) {
			continue
		}
		if err := r.session(ctx); err != nil {
			return err
		}
	}
}

func (r *Runner) session(ctx context.Context) error {
	params := r.machine.Session()
	r.logger.Infow("Session loop started", "name", params.Name, "repetitions", params.Repetitions, "cycles", params.Cycles)
	if r.hooks != nil {
		r.hooks.SessionStarted(params)
		defer r.hooks.SessionFinished()
	}

	for r.machine.IsRunning() {
		if r.stopping(ctx) {
			return nil
		}
		params = r.machine.Session()

		pos, err := r.trial.Run(params.Repetitions)
		if err != nil {
			r.machine.FinishSession()
			// Источник закрыт при остановке процесса
			if r.stopping(ctx) {
				r.logger.Infow("Trial interrupted by shutdown", "error", err)
				return nil
			}
			return fmt.Errorf("session %q: %w", params.Name, err)
		}

		cmd := r.decoder.Decode(pos)
		r.logger.Infow("Command decoded", "position", pos.String(), "command", cmd.String())
		r.machine.Apply(ctx, cmd)

		n := r.machine.CompleteCycle()
		if params.Cycles > 0 && n >= params.Cycles {
			r.logger.Infow("Cycle limit reached", "cycles", n)
			r.machine.FinishSession()
			return nil
		}
	}
	r.logger.Infow("Session loop finished")
	return nil
}

func (r *Runner) stopping(ctx context.Context) bool {
	return ctx.Err() != nil || r.machine.IsShutdown()
}
