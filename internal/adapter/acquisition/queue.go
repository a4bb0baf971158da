// Package acquisition источники ЭЭГ-сэмплов: очередь, генератор-заглушка и
// WebSocket-мост к внешнему устройству.
package acquisition

import (
	"errors"
	"sync"
	"time"

	"BCISpeller/internal/service/epoch"
)

var (
	// ErrTimeout сэмпл не пришёл за отведённое время.
	ErrTimeout = errors.New("acquisition: timeout waiting for sample")
	// ErrClosed поток закрыт производителем.
	ErrClosed = errors.New("acquisition: stream closed")
)

// Ensure interface compliance
var _ epoch.Source = (*Queue)(nil)

// Queue потокобезопасная очередь сэмплов между производителем и сессией.
type Queue struct {
	ch        chan epoch.Sample
	closeOnce sync.Once
	done      chan struct{}
	dropped   int64
	mu        sync.Mutex
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan epoch.Sample, capacity), done: make(chan struct{})}
}

// Push кладёт сэмпл. При переполнении сэмпл отбрасывается, чтобы не
// блокировать производителя; потеря учитывается в Dropped.
func (q *Queue) Push(s epoch.Sample) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- s:
		return true
	default:
		q.mu.Lock()
		q.dropped++
		q.mu.Unlock()
		return false
	}
}

// Next ждёт сэмпл не дольше timeout.
func (q *Queue) Next(timeout time.Duration) (epoch.Sample, error) {
	// сначала то, что уже в буфере, даже если очередь закрыта
	select {
	case s := <-q.ch:
		return s, nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case s := <-q.ch:
		return s, nil
	case <-q.done:
		select {
		case s := <-q.ch:
			return s, nil
		default:
			return nil, ErrClosed
		}
	case <-t.C:
		return nil, ErrTimeout
	}
}

// Drain отбрасывает накопленные сэмплы, возвращает их количество.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close завершает поток; повторный вызов безопасен.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
