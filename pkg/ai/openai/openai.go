package openai

import (
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// Client implements the ai.Client interface against any OpenAI-compatible
// API. Separate underlying clients are kept for embeddings and completions
// so the two can point at different endpoints.
type Client struct {
	embeddingModel string
	chatModel      string

	chatURL      string
	embeddingURL string

	timeoutMin int64
	reqLock    *semaphore.Weighted

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewClientParams defines the configuration for creating a Client.
//
// EmbeddingModel and ChatModel name the models used for embeddings and
// completions. The URL/Key pairs configure the respective API endpoints;
// an empty URL falls back to the default OpenAI endpoint.
type NewClientParams struct {
	EmbeddingModel string
	ChatModel      string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	TimeoutMin            int64
	MaxConcurrentRequests int64
}

// NewClient creates a Client configured with the provided parameters.
func NewClient(params NewClientParams) *Client {
	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 8
	}
	timeoutMin := params.TimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}

	return &Client{
		embeddingModel: params.EmbeddingModel,
		chatModel:      params.ChatModel,

		chatURL:      params.ChatURL,
		embeddingURL: params.EmbeddingURL,

		timeoutMin: timeoutMin,
		reqLock:    semaphore.NewWeighted(maxReq),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
