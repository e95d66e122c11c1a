package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storefront/internal/domain"
	"github.com/kailas-cloud/storefront/internal/domain/vision"
	"github.com/kailas-cloud/storefront/internal/metrics"
)

const defaultPrompt = `You identify electronic components and maker products in photos for a store search.
Read any printed text (part numbers, brand names, board labels) and name the visible objects.
Reply with JSON only: {"keywords": ["most specific term first", ...], "confidence": 0.0-1.0}.
Return at most 10 short keywords.`

// Analyzer is an image analysis provider using an OpenAI-compatible vision chat API.
type Analyzer struct {
	client    *openai.Client
	model     string
	prompt    string
	maxTokens int
	user      string
	provider  string
	logger    *zap.Logger
}

// Config holds the vision provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Prompt    string
	MaxTokens int
	User      string
	Provider  string
	// Timeout bounds each provider call. Zero keeps the client default.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewAnalyzer creates an OpenAI-compatible image analyzer.
func NewAnalyzer(cfg *Config) *Analyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	prompt := cfg.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Analyzer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		prompt:    prompt,
		maxTokens: maxTokens,
		user:      cfg.User,
		provider:  cfg.Provider,
		logger:    logger,
	}
}

// Analyze implements vision.Analyzer. The image is sent inline as a data URI.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, contentType string) (vision.Analysis, error) {
	req := openai.ChatCompletionRequest{
		Model:               a.model,
		MaxCompletionTokens: a.maxTokens,
		User:                a.user,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.prompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Which products are in this image?"},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI(image, contentType),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		a.record("error")
		return vision.Analysis{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		a.record("error")
		return vision.Analysis{}, fmt.Errorf("empty vision response: %w", domain.ErrVisionProviderError)
	}

	analysis, err := parseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		a.record("error")
		return vision.Analysis{}, err
	}

	a.record("success")
	metrics.VisionRequestDuration.WithLabelValues(a.provider, a.model).Observe(duration.Seconds())
	a.logger.Debug("Image analyzed",
		zap.String("provider", a.provider),
		zap.String("model", a.model),
		zap.Duration("duration", duration),
		zap.Int("keywords", len(analysis.Keywords)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return analysis, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (a *Analyzer) HealthCheck(ctx context.Context) error {
	if _, err := a.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (a *Analyzer) record(status string) {
	metrics.VisionRequestsTotal.WithLabelValues(a.provider, a.model, status).Inc()
}

func dataURI(image []byte, contentType string) string {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// modelReply is the JSON object the prompt asks for.
type modelReply struct {
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
}

// parseAnalysis decodes the model reply. Code fences around the JSON are tolerated.
func parseAnalysis(content string) (vision.Analysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var reply modelReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return vision.Analysis{}, fmt.Errorf("decode vision reply: %w: %w", domain.ErrVisionProviderError, err)
	}

	confidence := min(max(reply.Confidence, 0), 1)
	return vision.Analysis{
		Keywords:   reply.Keywords,
		Confidence: confidence,
		Source:     vision.SourceVision,
	}, nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrVisionProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrVisionProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("vision API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("vision API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("vision API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("vision request: %w: %w", err, wrap)
	}
	return fmt.Errorf("vision request failed: %w", wrap)
}

// extractDetail extracts the "detail" field some compatible providers use for errors.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
