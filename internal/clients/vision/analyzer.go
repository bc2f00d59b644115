// Package vision classifies traffic camera images with an OpenAI vision model.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

// Prompt asks for a fixed line format parsed by ParseResponse
const Prompt = `Analyze this traffic camera image and answer the following questions:

1. Is there snow visible on the road? (yes/no)
2. Are there any cars visible? (yes/no)
3. Are there any trucks visible? (yes/no)
4. Are there any animals visible? (yes/no)

Also provide a brief description of the overall road conditions.

Respond in this exact format:
SNOW: yes/no
CARS: yes/no
TRUCKS: yes/no
ANIMALS: yes/no
NOTES: <brief description>`

// ChatCompleter is the subset of *openai.Client used by the analyzer
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Analyzer implements image analysis using OpenAI chat completions
type Analyzer struct {
	client    ChatCompleter
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewAnalyzer creates an analyzer from configuration
func NewAnalyzer(cfg config.VisionConfig) *Analyzer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return NewAnalyzerWithClient(openai.NewClientWithConfig(clientConfig), cfg)
}

// NewAnalyzerWithClient creates an analyzer over an existing chat client
func NewAnalyzerWithClient(client ChatCompleter, cfg config.VisionConfig) *Analyzer {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Analyzer{client: client, model: cfg.Model, maxTokens: maxTokens, timeout: cfg.Timeout}
}

// Analyze classifies one image. Failures are reported in the result notes
// with every flag left unknown.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) model.AnalysisResult {
	if len(data) == 0 {
		return model.AnalysisResult{Notes: "Analysis failed: empty image"}
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    DataURI(data),
						Detail: openai.ImageURLDetailLow,
					},
				},
				{Type: openai.ChatMessagePartTypeText, Text: Prompt},
			},
		}},
	})
	if err != nil {
		logging.Warnw(ctx, "Vision analysis failed", "error", err)
		return model.AnalysisResult{Notes: fmt.Sprintf("Analysis failed: %s", describe(err))}
	}
	if len(resp.Choices) == 0 {
		return model.AnalysisResult{Notes: "Analysis failed: no response choices"}
	}
	return ParseResponse(resp.Choices[0].Message.Content)
}

func describe(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return err.Error()
}

// DataURI encodes image bytes as a base64 data URI, sniffing the media type
func DataURI(data []byte) string {
	mediaType := http.DetectContentType(data)
	switch mediaType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
	default:
		mediaType = "image/jpeg"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseResponse reads the SNOW/CARS/TRUCKS/ANIMALS/NOTES line format. Lines
// that are missing leave the corresponding flag unknown.
func ParseResponse(text string) model.AnalysisResult {
	var result model.AnalysisResult
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		yes := strings.Contains(strings.ToLower(value), "yes")
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "snow":
			result.HasSnow = model.Ptr(yes)
		case "cars":
			result.HasCar = model.Ptr(yes)
		case "trucks":
			result.HasTruck = model.Ptr(yes)
		case "animals":
			result.HasAnimal = model.Ptr(yes)
		case "notes":
			result.Notes = strings.TrimSpace(value)
		}
	}
	return result
}

// Disabled stands in for the analyzer when vision is turned off
type Disabled struct{}

// Analyze returns an all-unknown result
func (Disabled) Analyze(context.Context, []byte) model.AnalysisResult {
	return model.AnalysisResult{Notes: "Analysis disabled"}
}
