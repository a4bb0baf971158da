// Package ai клиенты языковых моделей для подсказок.
package ai

import "context"

// Client отправляет промпт и возвращает текст ответа.
type Client interface {
	SendRequest(ctx context.Context, prompt string) (string, error)
}
