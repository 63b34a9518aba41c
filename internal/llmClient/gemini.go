package llmclient

import (
	"context"
	"errors"
	"os"
	"time"

	genai "google.golang.org/genai"
)

const geminiKeyEnv = "GEMINI_API_KEY"

// GeminiClient is a thin wrapper around the official genai client. It handles
// the call itself plus error classification; retry policy lives upstream.
type GeminiClient struct {
	cli *genai.Client
}

// NewGeminiClient creates a Gemini client. If apiKey is empty, it falls back
// to the GEMINI_API_KEY env var; absence is a classified pre-flight error.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv(geminiKeyEnv)
	}
	if apiKey == "" {
		return nil, NewCredentialMissingError("gemini", geminiKeyEnv)
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	cfg.Temperature = genai.Ptr(req.Temperature)

	resp, err := g.cli.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.UserMessage}}, Role: genai.RoleUser}},
		cfg,
	)
	if err != nil {
		return Response{}, classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Response{}, ErrEmptyResponse
	}

	out := Response{Content: resp.Candidates[0].Content.Parts[0].Text}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return NewTransportError("gemini", err)
	}
	// The SDK surfaces RESOURCE_EXHAUSTED with a RetryInfo detail rendered
	// into the message ("Please retry after Ns"); ClassifyStatus picks it up.
	return ClassifyStatus("gemini", apiErr.Code, apiErr.Message, geminiRetryHint(apiErr))
}

func geminiRetryHint(apiErr genai.APIError) time.Duration {
	if d, ok := parseEmbeddedRetryDelay(apiErr.Message); ok {
		return d
	}
	return 0
}
