package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the model answered with no text.
var ErrEmptyCompletion = errors.New("empty completion")

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey string
	// BaseURL selects a compatible provider; empty means api.openai.com.
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// OpenAI summarizes through a chat completion model. The facts it is given
// are the Render output, so the model only rephrases numbers it was handed.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai summarizer: api key is required")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (p *OpenAI) Name() string { return "openai:" + p.model }

func (p *OpenAI) Summarize(ctx context.Context, in Input) (string, error) {
	facts := in
	facts.Detail = DetailDetailed

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(in.Perspective, in.Detail)},
			{Role: openai.ChatMessageRoleUser, Content: Render(facts)},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

var audience = map[string]string{
	PerspectiveGeneral:    "a developer evaluating the project",
	PerspectiveBeginner:   "a newcomer with little experience who wants to contribute",
	PerspectiveMaintainer: "the project's maintainers, focusing on upkeep and risk",
	PerspectiveSecurity:   "a security reviewer, focusing on exposure and supply chain",
	PerspectiveManager:    "a non-technical manager deciding whether to adopt the project",
}

var length = map[string]string{
	DetailBrief:    "one or two sentences",
	DetailStandard: "one short paragraph",
	DetailDetailed: "two or three paragraphs",
}

func systemPrompt(perspective, detail string) string {
	return fmt.Sprintf(
		"You summarize GitHub repository analyses for %s. Use only the facts provided. "+
			"Do not invent numbers. Mention areas that were not analyzed. Answer in %s.",
		audience[normalizePerspective(perspective)], length[normalizeDetail(detail)],
	)
}
