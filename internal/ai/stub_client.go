package ai

import (
	"context"
	"fmt"
	"strings"
)

// StubClient заглушка, которая не делает реальных запросов и отвечает
// нумерованным списком из Words.
type StubClient struct {
	Words []string
}

func NewStubClient(words ...string) *StubClient {
	if len(words) == 0 {
		words = []string{"да", "нет", "привет", "спасибо", "пожалуйста", "помогите"}
	}
	return &StubClient{Words: words}
}

func (c *StubClient) SendRequest(_ context.Context, _ string) (string, error) {
	var b strings.Builder
	for i, w := range c.Words {
		fmt.Fprintf(&b, "%d. %s\n", i+1, w)
	}
	return b.String(), nil
}

var _ Client = (*StubClient)(nil)
