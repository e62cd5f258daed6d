package rag

import "context"

// Completer is a chat model taking a system and a user prompt.
// *ollama.ChatClient satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// ChatLLM serves as both Translator and Generator on top of one chat model.
type ChatLLM struct {
	c Completer
}

// NewChatLLM wraps c.
func NewChatLLM(c Completer) *ChatLLM { return &ChatLLM{c: c} }

// Translate asks the model for an English rendering of text.
func (l *ChatLLM) Translate(ctx context.Context, text string) (string, error) {
	return l.c.Complete(ctx, TranslationPrompt(text), text, 0)
}

// Generate sends prompt as a single user message.
func (l *ChatLLM) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return l.c.Complete(ctx, "", prompt, temperature)
}
