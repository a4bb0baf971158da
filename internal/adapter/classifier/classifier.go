// Package classifier оценки эпох. Сама модель внешняя; здесь заглушка и
// обёртки.
package classifier

import (
	"math/rand/v2"

	"BCISpeller/internal/metrics"
	"BCISpeller/internal/service/epoch"
)

// Classifier оценивает эпоху: чем выше, тем вероятнее целевой стимул.
type Classifier interface {
	Score(e epoch.Epoch) float64
}

// Func адаптер обычной функции.
type Func func(e epoch.Epoch) float64

func (f Func) Score(e epoch.Epoch) float64 { return f(e) }

// Stub возвращает случайную оценку.
type Stub struct{}

func NewStub() Stub { return Stub{} }

func (Stub) Score(epoch.Epoch) float64 { return rand.Float64() }

// Metered считает оценённые эпохи.
type Metered struct {
	Classifier
}

func (m Metered) Score(e epoch.Epoch) float64 {
	metrics.EpochsScored.Inc()
	return m.Classifier.Score(e)
}
