package caption

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/groq-go"
)

const (
	captionSystemPrompt = "You are a creative content assistant."
	captionUserPrompt   = "Generate a very short and sweet TikTok video description based on the following transcript. Include a bunch of creative hashtags at the end:\n\n%s"
)

// Generator writes a short post caption from a transcript.
type Generator struct {
	client *groq.Client
	model  groq.ChatModel
}

func NewGenerator(apiKey, model string) (*Generator, error) {
	client, err := groq.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}

	return &Generator{
		client: client,
		model:  groq.ChatModel(model),
	}, nil
}

func (g *Generator) Caption(ctx context.Context, transcript string) (string, error) {
	resp, err := g.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model: g.model,
		Messages: []groq.ChatCompletionMessage{
			{Role: groq.RoleSystem, Content: captionSystemPrompt},
			{Role: groq.RoleUser, Content: fmt.Sprintf(captionUserPrompt, transcript)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate caption: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response")
	}

	return content, nil
}
