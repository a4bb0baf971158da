package flashing

import "math/rand/v2"

// SingleCell подсвечивает по одной ячейке. Одно повторение — случайная
// перестановка всех n² ячеек; одна и та же ячейка не вспыхивает дважды подряд
// на стыке повторений.
type SingleCell struct {
	size int
	rng  *rand.Rand
}

func NewSingleCell(size int, rng *rand.Rand) *SingleCell {
	return &SingleCell{size: size, rng: newRand(rng)}
}

func (s *SingleCell) Size() int               { return s.size }
func (s *SingleCell) StepsPerRepetition() int { return s.size * s.size }

func (s *SingleCell) Generate(repetitions int) Sequence {
	flat := s.flat(repetitions)
	seq := make(Sequence, len(flat))
	for i, cell := range flat {
		seq[i] = List{s.position(cell)}
	}
	return seq
}

func (s *SingleCell) flat(repetitions int) []int {
	items := make([]int, s.StepsPerRepetition())
	for i := range items {
		items[i] = i
	}
	result := make([]int, 0, repetitions*len(items))
	for range repetitions {
		s.rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		if len(result) > 0 && len(items) > 1 && result[len(result)-1] == items[0] {
			items[0], items[1] = items[1], items[0]
		}
		result = append(result, items...)
	}
	return result
}

func (s *SingleCell) position(cell int) Position {
	return Position{Row: cell / s.size, Col: cell % s.size}
}

func (s *SingleCell) Decode(seq Sequence, scores []float64) Position {
	checkScores(seq, scores)

	totals := make([]float64, s.size*s.size)
	for i, l := range seq {
		for _, p := range l {
			totals[p.Row*s.size+p.Col] += scores[i]
		}
	}
	return s.position(argmax(totals))
}
