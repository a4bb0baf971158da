// Package epoch нарезает непрерывный поток сэмплов на перекрывающиеся окна
// фиксированного размера.
package epoch

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// ErrStarvation источник не успел заполнить окно. Фатально для trial.
var ErrStarvation = errors.New("epoch: sample source starved")

// Sample показания всех каналов в один момент.
type Sample []float64

// Epoch ровно Size подряд идущих сэмплов.
type Epoch []Sample

// Source последовательный поток сэмплов.
type Source interface {
	// Next блокируется до появления сэмпла или истечения timeout.
	Next(timeout time.Duration) (Sample, error)
}

// Windower скользящее окно размера Size с шагом Stride. Состояние — только
// рабочий буфер; один Windower на один trial.
type Windower struct {
	src     Source
	size    int
	stride  int
	timeout time.Duration
}

func NewWindower(src Source, size, stride int, timeout time.Duration) *Windower {
	if size <= 0 || stride <= 0 {
		panic(fmt.Sprintf("epoch: invalid window size=%d stride=%d", size, stride))
	}
	return &Windower{src: src, size: size, stride: stride, timeout: timeout}
}

// SamplesNeeded сколько сэмплов потребуют count окон.
func SamplesNeeded(size, stride, count int) int {
	if count <= 0 {
		return 0
	}
	return size + (count-1)*stride
}

// Windows выдаёт count окон по мере поступления сэмплов. Окно k+1 получается
// из окна k отбрасыванием первых Stride сэмплов и добавлением Stride новых
// (если Stride больше Size, промежуточные сэмплы пропускаются). При нехватке
// сэмплов выдаётся ошибка, обёрнутая в ErrStarvation, и итерация завершается.
func (w *Windower) Windows(count int) iter.Seq2[Epoch, error] {
	return func(yield func(Epoch, error) bool) {
		buf := make([]Sample, 0, w.size)
		pulled := 0
		for k := range count {
			if k > 0 {
				drop := min(w.stride, len(buf))
				buf = append(buf[:0], buf[drop:]...)
				// при stride > size между окнами есть пропущенные сэмплы
				for skip := w.stride - drop; skip > 0; skip-- {
					if _, err := w.next(pulled); err != nil {
						yield(nil, err)
						return
					}
					pulled++
				}
			}
			for len(buf) < w.size {
				s, err := w.next(pulled)
				if err != nil {
					yield(nil, err)
					return
				}
				pulled++
				buf = append(buf, s)
			}
			out := make(Epoch, w.size)
			copy(out, buf)
			if !yield(out, nil) {
				return
			}
		}
	}
}

func (w *Windower) next(pulled int) (Sample, error) {
	s, err := w.src.Next(w.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w after %d samples: %w", ErrStarvation, pulled, err)
	}
	return s, nil
}

// Collect возвращает ровно count окон или ошибку нехватки сэмплов.
func (w *Windower) Collect(count int) ([]Epoch, error) {
	out := make([]Epoch, 0, count)
	for e, err := range w.Windows(count) {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
