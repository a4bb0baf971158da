package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

// ErrEmptyAnswer модель ответила пустым текстом.
var ErrEmptyAnswer = errors.New("ai: empty answer")

// Ответ короткий: список из нескольких слов.
const (
	suggestInstructions = "Ты помогаешь набирать текст. Отвечай только списком слов без пояснений."
	maxOutputTokens     = 128
)

// TextClient однократный текстовый запрос в OpenAI Responses API без истории.
type TextClient struct {
	client *openai.Client
	model  openai.ChatModel
}

func NewTextClient(client *openai.Client, model openai.ChatModel) *TextClient {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &TextClient{client: client, model: model}
}

func (c *TextClient) SendRequest(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           c.model,
		Instructions:    openai.String(suggestInstructions),
		MaxOutputTokens: openai.Int(maxOutputTokens),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("ai: responses %s: %w", c.model, err)
	}
	out := strings.TrimSpace(resp.OutputText())
	if out == "" {
		return "", ErrEmptyAnswer
	}
	return out, nil
}

var _ Client = (*TextClient)(nil)
