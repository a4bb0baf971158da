package flashing

import "math/rand/v2"

// RowColumn подсвечивает целиком строки и столбцы. Одно повторение — каждая
// строка и каждый столбец по разу, попарно: строка, столбец, строка, ...
type RowColumn struct {
	size int
	rng  *rand.Rand
}

func NewRowColumn(size int, rng *rand.Rand) *RowColumn {
	return &RowColumn{size: size, rng: newRand(rng)}
}

func (s *RowColumn) Size() int               { return s.size }
func (s *RowColumn) StepsPerRepetition() int { return 2 * s.size }

func (s *RowColumn) Generate(repetitions int) Sequence {
	rows := make([]int, s.size)
	cols := make([]int, s.size)
	for i := range s.size {
		rows[i], cols[i] = i, i
	}

	seq := make(Sequence, 0, repetitions*s.StepsPerRepetition())
	for range repetitions {
		s.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		s.rng.Shuffle(len(cols), func(i, j int) { cols[i], cols[j] = cols[j], cols[i] })
		for k := range s.size {
			seq = append(seq, s.row(rows[k]), s.column(cols[k]))
		}
	}
	return seq
}

func (s *RowColumn) row(r int) List {
	l := make(List, s.size)
	for j := range s.size {
		l[j] = Position{Row: r, Col: j}
	}
	return l
}

func (s *RowColumn) column(c int) List {
	l := make(List, s.size)
	for i := range s.size {
		l[i] = Position{Row: i, Col: c}
	}
	return l
}

// Decode суммирует оценки по номеру строки для строковых шагов и по номеру
// столбца для столбцовых. Тип шага определяется по его геометрии, а не по
// чётности индекса, поэтому порядок строк и столбцов в расписании не важен.
// Ничьи решаются в пользу номера, встреченного в расписании раньше.
func (s *RowColumn) Decode(seq Sequence, scores []float64) Position {
	checkScores(seq, scores)

	var rows, cols accumulator
	for i, l := range seq {
		if isRow(l) {
			rows.add(l[0].Row, scores[i])
		} else {
			cols.add(l[0].Col, scores[i])
		}
	}
	return Position{Row: rows.best(), Col: cols.best()}
}

// isRow шаг покрывает одну строку. Для клавиатуры 1×1 шаг и строка, и столбец.
func isRow(l List) bool {
	if len(l) < 2 {
		return true
	}
	return l[0].Row == l[1].Row
}

// accumulator суммы по ключу в порядке первого появления.
type accumulator struct {
	keys   []int
	totals []float64
}

func (a *accumulator) add(key int, v float64) {
	for i, k := range a.keys {
		if k == key {
			a.totals[i] += v
			return
		}
	}
	a.keys = append(a.keys, key)
	a.totals = append(a.totals, v)
}

func (a *accumulator) best() int {
	if len(a.keys) == 0 {
		return 0
	}
	return a.keys[argmax(a.totals)]
}
