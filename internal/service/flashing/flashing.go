// Package flashing генерирует расписание вспышек клавиатуры и декодирует
// по оценкам классификатора выбранную ячейку.
package flashing

import (
	"fmt"
	"math/rand/v2"
)

// Position координата ячейки клавиатуры.
type Position struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

// List ячейки, подсвечиваемые одновременно на одном шаге. Не пустой.
type List []Position

// Sequence расписание одного trial.
type Sequence []List

// Strategy общий контракт стратегий мигания.
type Strategy interface {
	// Generate строит расписание на repetitions повторений.
	Generate(repetitions int) Sequence
	// Decode возвращает ячейку по оценкам; scores[i] соответствует seq[i].
	Decode(seq Sequence, scores []float64) Position
	// StepsPerRepetition шагов в одном повторении.
	StepsPerRepetition() int
	// Size сторона квадратной клавиатуры.
	Size() int
}

// New выбирает стратегию по имени: single|rowcol.
func New(name string, size int, rng *rand.Rand) (Strategy, error) {
	switch name {
	case "single":
		return NewSingleCell(size, rng), nil
	case "rowcol":
		return NewRowColumn(size, rng), nil
	default:
		return nil, fmt.Errorf("flashing: неизвестная стратегия %q", name)
	}
}

func checkScores(seq Sequence, scores []float64) {
	if len(seq) != len(scores) {
		panic(fmt.Sprintf("flashing: %d scores for %d schedule steps", len(scores), len(seq)))
	}
}

// argmax индекс первого максимума.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func newRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
