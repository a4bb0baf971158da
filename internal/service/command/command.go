// Package command переводит выбранную ячейку клавиатуры в команду ввода.
package command

import (
	"fmt"

	"BCISpeller/internal/service/flashing"
)

// Kind вид команды.
type Kind int

const (
	KindT9 Kind = iota + 1
	KindSuggestion
	KindClear
	KindCancel
)

func (k Kind) String() string {
	switch k {
	case KindT9:
		return "t9"
	case KindSuggestion:
		return "suggestion"
	case KindClear:
		return "clear"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Command закрытый набор команд. Index значим только для T9 (номер набора
// букв) и Suggestion (номер подсказки).
type Command struct {
	Kind  Kind
	Index int
}

func T9Input(charset int) Command       { return Command{Kind: KindT9, Index: charset} }
func SuggestionInput(index int) Command { return Command{Kind: KindSuggestion, Index: index} }
func Clear() Command                    { return Command{Kind: KindClear} }
func Cancel() Command                   { return Command{Kind: KindCancel} }

func (c Command) String() string {
	switch c.Kind {
	case KindT9, KindSuggestion:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Index)
	default:
		return c.Kind.String()
	}
}

// Decoder фиксированная таблица команд размером с клавиатуру. Раскладка по
// строкам: наборы T9, затем подсказки, последние две ячейки — сброс и отмена.
type Decoder struct {
	table [][]Command
}

// NewDecoder строит таблицу для клавиатуры size×size и charsets наборов T9.
// Для 4×4 и 8 наборов получается 6 ячеек подсказок.
func NewDecoder(size, charsets int) *Decoder {
	cells := size * size
	if cells < charsets+2 {
		panic(fmt.Sprintf("command: grid %dx%d cannot hold %d charsets", size, size, charsets))
	}
	table := make([][]Command, size)
	for i := range table {
		table[i] = make([]Command, size)
	}
	for n := range cells {
		var c Command
		switch {
		case n < charsets:
			c = T9Input(n)
		case n < cells-2:
			c = SuggestionInput(n - charsets)
		case n == cells-2:
			c = Clear()
		default:
			c = Cancel()
		}
		table[n/size][n%size] = c
	}
	return &Decoder{table: table}
}

// Suggestions количество ячеек под подсказки.
func (d *Decoder) Suggestions() int {
	n := 0
	for _, row := range d.table {
		for _, c := range row {
			if c.Kind == KindSuggestion {
				n++
			}
		}
	}
	return n
}

// Decode возвращает команду ячейки. Позиция вне таблицы — ошибка программы.
func (d *Decoder) Decode(p flashing.Position) Command {
	if p.Row < 0 || p.Row >= len(d.table) || p.Col < 0 || p.Col >= len(d.table[p.Row]) {
		panic(fmt.Sprintf("command: position %s out of %dx%d grid", p, len(d.table), len(d.table)))
	}
	return d.table[p.Row][p.Col]
}
