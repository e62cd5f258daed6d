package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultChatModel is used for translation and answer generation.
const DefaultChatModel = "llama3.2:latest"

type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// ChatClient sends system plus user prompts to an Ollama chat model.
type ChatClient struct {
	llm contentGenerator
}

// NewChatClient connects to the Ollama server at baseURL.
func NewChatClient(baseURL, model string) (*ChatClient, error) {
	if model == "" {
		model = DefaultChatModel
	}
	llm, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	return &ChatClient{llm: llm}, nil
}

// Complete runs one non-streaming completion. An empty system prompt sends
// the user message alone. The reply is returned trimmed and may be empty.
func (c *ChatClient) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	msgs := make([]llms.MessageContent, 0, 2)
	if system != "" {
		msgs = append(msgs, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	msgs = append(msgs, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(user)},
	})

	resp, err := c.llm.GenerateContent(ctx, msgs, llms.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
