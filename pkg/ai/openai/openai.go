package openai

import (
	"github.com/DecisionNerd/infoextract-cidoc/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ExtractionClient implements ai.Client against any OpenAI-compatible chat
// completions endpoint.
type ExtractionClient struct {
	model   string
	chatURL string

	metrics ai.MetricsRecorder

	ChatClient *openai.Client
}

// NewExtractionClientParams configures an ExtractionClient. An empty
// ChatURL targets api.openai.com.
type NewExtractionClientParams struct {
	Model   string
	ChatURL string
	ChatKey string
}

// NewExtractionClient creates a client for the configured endpoint.
//
// Example:
//
//	client := openai.NewExtractionClient(openai.NewExtractionClientParams{
//		Model:   "gpt-4o-mini",
//		ChatKey: os.Getenv("AI_CHAT_KEY"),
//	})
func NewExtractionClient(params NewExtractionClientParams) *ExtractionClient {
	return &ExtractionClient{
		model:      params.Model,
		chatURL:    params.ChatURL,
		ChatClient: newOpenaiClient(params.ChatURL, params.ChatKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// ResetMetrics clears accumulated usage.
func (c *ExtractionClient) ResetMetrics() {
	c.metrics.Reset()
}

// GetMetrics returns usage since the last reset.
func (c *ExtractionClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Snapshot()
}

var _ ai.Client = (*ExtractionClient)(nil)
