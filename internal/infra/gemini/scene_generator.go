package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chaos-story-service/internal/scene"
)

const DefaultModel = "gemini-1.5-flash"

var errEmptyResponse = errors.New("gemini returned no text")

// SceneGenerator drafts scenes with a Gemini model.
type SceneGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewSceneGenerator(ctx context.Context, apiKey, model string) (*SceneGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &SceneGenerator{client: client, model: client.GenerativeModel(model)}, nil
}

func (g *SceneGenerator) Generate(ctx context.Context, req scene.Request) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(scene.BuildPrompt(req)))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

func (g *SceneGenerator) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	return sb.String()
}
