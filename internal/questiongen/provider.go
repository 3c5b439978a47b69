package questiongen

import (
	"context"
	"fmt"

	"github.com/campushire/skillcheck/internal/config"
)

// FromConfig builds the generator selected by QUESTION_PROVIDER. The
// returned func releases provider connections.
func FromConfig(ctx context.Context, cfg *config.Config) (Generator, func(), error) {
	switch cfg.QuestionProvider {
	case config.ProviderOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required for provider %q", config.ProviderOpenAI)
		}
		return NewOpenAIGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), func() {}, nil
	case config.ProviderVertex:
		if cfg.VertexProject == "" {
			return nil, nil, fmt.Errorf("VERTEX_PROJECT is required for provider %q", config.ProviderVertex)
		}
		g, err := NewVertexGenerator(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { g.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown question provider %q", cfg.QuestionProvider)
	}
}
