package questiongen

import (
	"context"
	"fmt"

	"github.com/campushire/skillcheck/internal/model"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completion API.
type OpenAIGenerator struct {
	api   *openai.Client
	model string
}

// NewOpenAIGenerator creates a generator. An empty baseURL uses the public API.
func NewOpenAIGenerator(baseURL, apiKey, modelName string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		api:   openai.NewClientWithConfig(cfg),
		model: modelName,
	}
}

func (g *OpenAIGenerator) Name() string { return "openai:" + g.model }

// Generate asks the model for a JSON question set and validates it.
func (g *OpenAIGenerator) Generate(ctx context.Context, skillName string, count int) ([]model.ExamQuestion, error) {
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You write technical assessments for recruiters."},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(skillName, count)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrInvalidExam)
	}
	return ParseQuestions(resp.Choices[0].Message.Content, count)
}
