package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dpup/prefab/logging"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type MockChatCompleter struct {
	mock.Mock
}

func (m *MockChatCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
	}}}
}

func TestParseResponse(t *testing.T) {
	got := ParseResponse("SNOW: yes\nCARS: No\ntrucks: yes, one semi\nANIMALS: no\nNOTES: Snow packed lanes: chains advised\n")
	assert.Equal(t, model.AnalysisResult{
		HasSnow:   model.Ptr(true),
		HasCar:    model.Ptr(false),
		HasTruck:  model.Ptr(true),
		HasAnimal: model.Ptr(false),
		Notes:     "Snow packed lanes: chains advised",
	}, got)
}

func TestParseResponse_MissingLinesStayUnknown(t *testing.T) {
	got := ParseResponse("I can't see the road clearly.\nSNOW: no")
	assert.Equal(t, model.Ptr(false), got.HasSnow)
	assert.Nil(t, got.HasCar)
	assert.Nil(t, got.HasTruck)
	assert.Nil(t, got.HasAnimal)
	assert.Empty(t, got.Notes)
}

func TestAnalyze_Request(t *testing.T) {
	client := &MockChatCompleter{}
	client.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		if req.Model != "gpt-4o-mini" || req.MaxTokens != 300 || len(req.Messages) != 1 {
			return false
		}
		parts := req.Messages[0].MultiContent
		return len(parts) == 2 &&
			parts[0].ImageURL != nil &&
			strings.HasPrefix(parts[0].ImageURL.URL, "data:image/jpeg;base64,") &&
			parts[0].ImageURL.Detail == openai.ImageURLDetailLow &&
			parts[1].Text == Prompt
	})).Return(reply("SNOW: yes\nCARS: yes\nTRUCKS: no\nANIMALS: no\nNOTES: Light snow"), nil)

	a := NewAnalyzerWithClient(client, config.VisionConfig{Model: "gpt-4o-mini"})
	got := a.Analyze(testContext(), jpeg)

	assert.Equal(t, model.Ptr(true), got.HasSnow)
	assert.Equal(t, "Light snow", got.Notes)
	client.AssertExpectations(t)
}

func TestAnalyze_FailuresBecomeNotes(t *testing.T) {
	client := &MockChatCompleter{}
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}).Once()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("connection refused")).Once()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, nil).Once()

	a := NewAnalyzerWithClient(client, config.VisionConfig{Model: "gpt-4o-mini"})

	got := a.Analyze(testContext(), jpeg)
	assert.Equal(t, model.AnalysisResult{Notes: "Analysis failed: API error 429: slow down"}, got)

	got = a.Analyze(testContext(), jpeg)
	assert.Equal(t, "Analysis failed: connection refused", got.Notes)
	assert.Nil(t, got.HasSnow)

	got = a.Analyze(testContext(), jpeg)
	assert.Equal(t, "Analysis failed: no response choices", got.Notes)

	got = a.Analyze(testContext(), nil)
	assert.Equal(t, "Analysis failed: empty image", got.Notes)
}

func TestNewAnalyzer_UsesBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply("SNOW: no\nNOTES: Dry"))
	}))
	defer server.Close()

	a := NewAnalyzer(config.VisionConfig{APIKey: "sk-test", BaseURL: server.URL, Model: "gpt-4o-mini"})
	got := a.Analyze(testContext(), jpeg)
	require.NotNil(t, got.HasSnow)
	assert.False(t, *got.HasSnow)
	assert.Equal(t, "Dry", got.Notes)
}

func TestDataURI(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00")
	assert.True(t, strings.HasPrefix(DataURI(png), "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(DataURI([]byte("not an image")), "data:image/jpeg;base64,"))
}

func TestDisabled(t *testing.T) {
	got := Disabled{}.Analyze(testContext(), jpeg)
	assert.Nil(t, got.HasSnow)
	assert.Equal(t, "Analysis disabled", got.Notes)
}

// testContext returns a background context carrying a development logger
func testContext() context.Context {
	return logging.With(context.Background(), logging.NewDevLogger())
}
