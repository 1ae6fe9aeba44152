package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"inkwell/internal/config"
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

type Action string

const (
	ActionImprove   Action = "improve"
	ActionExpand    Action = "expand"
	ActionSummarize Action = "summarize"
	ActionRewrite   Action = "rewrite"
	ActionCustom    Action = "custom"
)

type Request struct {
	Content      string `json:"content" validate:"required"`
	Action       string `json:"action" validate:"required,oneof=improve expand summarize rewrite custom"`
	Style        string `json:"style,omitempty" validate:"omitempty,oneof=professional casual academic creative technical"`
	Tone         string `json:"tone,omitempty" validate:"omitempty,oneof=friendly formal persuasive informative humorous"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
	Provider     string `json:"provider,omitempty" validate:"omitempty,oneof=openai anthropic"`
}

type Stats struct {
	OriginalLength int    `json:"original_length"`
	NewLength      int    `json:"new_length"`
	Improvement    string `json:"improvement"`
}

type Response struct {
	Content string `json:"content"`
	Stats   Stats  `json:"stats"`
}

// Service fans a generation request out to one of two interchangeable text
// backends. It holds no state beyond configuration; failures pass through as
// errors for the transport to translate.
type Service struct {
	logger *slog.Logger
	client *http.Client
	config config.AIConfig
}

func NewService(logger *slog.Logger, cfg config.AIConfig) *Service {
	return &Service{
		logger: logger,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		config: cfg,
	}
}

const systemPrompt = "You are a professional writing assistant. Provide clear, well-structured responses that improve the given text according to the user's specifications."

// Generate produces content for the request via the chosen provider.
// Anthropic is the default when the request names none.
func (s *Service) Generate(ctx context.Context, req Request) (Response, error) {
	prompt := buildPrompt(req)

	var (
		generated string
		err       error
	)
	switch Provider(req.Provider) {
	case ProviderOpenAI:
		generated, err = s.callOpenAI(ctx, prompt)
	default:
		generated, err = s.callAnthropic(ctx, prompt)
	}
	if err != nil {
		return Response{}, err
	}

	return Response{
		Content: generated,
		Stats: Stats{
			OriginalLength: len(req.Content),
			NewLength:      len(generated),
			Improvement:    improvementSummary(req.Content, generated),
		},
	}, nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *Service) callOpenAI(ctx context.Context, prompt string) (string, error) {
	body := openAIRequest{
		Model: s.config.OpenAIModel,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   2000,
		Temperature: 0.7,
	}

	var parsed openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + s.config.OpenAIKey}
	status, err := s.post(ctx, s.config.OpenAIBaseURL+"/v1/chat/completions", headers, body, &parsed)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai request failed: %s", parsed.Error.Message)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("openai returned status %d", status)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *Service) callAnthropic(ctx context.Context, prompt string) (string, error) {
	body := anthropicRequest{
		Model:     s.config.AnthropicModel,
		MaxTokens: 2000,
		Messages: []anthropicMessage{
			{Role: "user", Content: systemPrompt + "\n\n" + prompt},
		},
	}

	var parsed anthropicResponse
	headers := map[string]string{
		"x-api-key":         s.config.AnthropicKey,
		"anthropic-version": "2023-06-01",
	}
	status, err := s.post(ctx, s.config.AnthropicBaseURL+"/v1/messages", headers, body, &parsed)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic request failed: %s", parsed.Error.Message)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("anthropic returned status %d", status)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("anthropic response contained no content")
	}
	return parsed.Content[0].Text, nil
}

func (s *Service) post(ctx context.Context, url string, headers map[string]string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// CountWords counts whitespace-separated words, the unit the quota is
// charged in.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

func improvementSummary(original, improved string) string {
	diff := CountWords(improved) - CountWords(original)
	switch {
	case diff > 0:
		return fmt.Sprintf("Added %d words for better clarity", diff)
	case diff < 0:
		return fmt.Sprintf("Reduced by %d words for conciseness", -diff)
	default:
		return "Maintained length while improving quality"
	}
}
