package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"BCISpeller/internal/ai"
)

var cyrillicWord = regexp.MustCompile(`[а-яё]+`)

// LLM продолжение текста языковой моделью.
type LLM struct {
	client   ai.Client
	template string // %[1]s — текст, %[2]d — количество вариантов
	logger   *zap.SugaredLogger
}

func NewLLM(client ai.Client, template string, logger *zap.SugaredLogger) *LLM {
	return &LLM{client: client, template: template, logger: logger}
}

func (l *LLM) Continue(ctx context.Context, text string, max int) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}
	prompt := fmt.Sprintf(l.template, text, max)
	l.logger.Debugw("LLM prompt", "prompt", prompt)

	content, err := l.client.SendRequest(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	l.logger.Debugw("LLM answer", "content", content)

	options, err := parseOptions(content, max)
	if err != nil {
		return nil, fmt.Errorf("parse llm answer %q: %w", content, err)
	}
	return nextWords(text, options, max), nil
}

// parseOptions нумерованный список, если в ответе есть все номера, иначе JSON-массив строк.
func parseOptions(content string, max int) ([]string, error) {
	numbered := true
	for i := 1; i <= max; i++ {
		if !strings.Contains(content, strconv.Itoa(i)) {
			numbered = false
			break
		}
	}
	if numbered {
		var out []string
		for _, line := range strings.Split(content, "\n") {
			words := cyrillicWord.FindAllString(strings.ToLower(line), -1)
			if len(words) > 0 {
				out = append(out, strings.Join(words, " "))
			}
		}
		return out, nil
	}

	var out []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// nextWords первое слово после уже набранного текста, без повторов.
func nextWords(text string, options []string, max int) []string {
	typed := strings.ToLower(text)
	last := ""
	if f := strings.Fields(typed); len(f) > 0 {
		last = f[len(f)-1]
	}

	seen := make(map[string]struct{}, len(options))
	out := make([]string, 0, max)
	for _, opt := range options {
		opt = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(opt)), strings.TrimSpace(typed))
		fields := strings.Fields(opt)
		if len(fields) == 0 {
			continue
		}
		w := fields[0]
		if last != "" && strings.Contains(w, last) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == max {
			break
		}
	}
	return out
}

var _ Continuer = (*LLM)(nil)
