package questiongen

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/campushire/skillcheck/internal/model"
)

// VertexGenerator generates questions with a Gemini model on Vertex AI.
type VertexGenerator struct {
	client *genai.Client
	model  string
}

// NewVertexGenerator connects to Vertex AI using application default credentials.
func NewVertexGenerator(ctx context.Context, project, location, modelName string) (*VertexGenerator, error) {
	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}
	return &VertexGenerator{client: client, model: modelName}, nil
}

func (g *VertexGenerator) Name() string { return "vertex:" + g.model }

// Close releases the underlying gRPC connection.
func (g *VertexGenerator) Close() error {
	return g.client.Close()
}

// Generate asks Gemini for a JSON question set and validates it.
func (g *VertexGenerator) Generate(ctx context.Context, skillName string, count int) ([]model.ExamQuestion, error) {
	gm := g.client.GenerativeModel(g.model)
	gm.ResponseMIMEType = "application/json"
	gm.SetTemperature(0.4)

	resp, err := gm.GenerateContent(ctx, genai.Text(BuildPrompt(skillName, count)))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidExam)
	}
	return ParseQuestions(sb.String(), count)
}
