// Package suggest подсказки слов: T9 по набранным наборам букв и
// продолжение текста языковой моделью.
package suggest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"BCISpeller/internal/metrics"
)

// T9Charsets наборы букв русской T9-клавиатуры.
var T9Charsets = []string{
	"абвг", "дежз", "ийкл", "мноп", "рсту", "фхцч", "шщъы", "ьэюя",
}

// Predictor подсказки по T9-префиксу.
type Predictor interface {
	Predict(prefix []int, max int) []string
}

// Continuer предсказывает следующее слово по набранному тексту.
type Continuer interface {
	Continue(ctx context.Context, text string, max int) ([]string, error)
}

// Getter выбирает источник подсказок: при непустом префиксе T9, иначе
// языковая модель, если она подключена.
type Getter struct {
	t9     Predictor
	llm    Continuer
	logger *zap.SugaredLogger
}

func NewGetter(t9 Predictor, llm Continuer, logger *zap.SugaredLogger) *Getter {
	return &Getter{t9: t9, llm: llm, logger: logger}
}

func (g *Getter) Suggestions(ctx context.Context, text string, prefix []int, max int) []string {
	start := time.Now()
	if len(prefix) > 0 {
		if g.t9 == nil {
			return nil
		}
		out := g.t9.Predict(prefix, max)
		metrics.SuggestionLatency.WithLabelValues("t9").Observe(time.Since(start).Seconds())
		return out
	}
	if g.llm == nil {
		return nil
	}
	out, err := g.llm.Continue(ctx, text, max)
	metrics.SuggestionLatency.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	if err != nil {
		g.logger.Warnw("LLM suggestions failed", "error", err, "text", text)
		return nil
	}
	return out
}

// charsetOf индекс набора для буквы или -1.
func charsetOf(r rune) int {
	if r == 'ё' {
		r = 'е'
	}
	for i, cs := range T9Charsets {
		for _, c := range cs {
			if c == r {
				return i
			}
		}
	}
	return -1
}
