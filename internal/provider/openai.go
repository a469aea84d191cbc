package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/stylecopilot/stylecopilot/internal/conversation"
)

// OpenAIClient implements Client against the OpenAI API (or any
// OpenAI-compatible endpoint via base URL override).
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates an OpenAI-backed client.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

func (c *OpenAIClient) Vendor() string { return "openai" }

type openAIModelInfo struct {
	id       string
	family   string
	maxInput int
}

// Known chat models by capability family. Listed in preference order; the
// first match per family is what SelectFirst ends up using.
var openAIModels = []openAIModelInfo{
	{"gpt-4o", "gpt-4o", 128000},
	{"gpt-4o-mini", "gpt-4o", 128000},
	{"gpt-4.1", "gpt-4.1", 1047576},
	{"gpt-4.1-mini", "gpt-4.1", 1047576},
	{"gpt-4-turbo", "gpt-4", 128000},
	{"gpt-4", "gpt-4", 8192},
	{"gpt-3.5-turbo", "gpt-3.5-turbo", 16385},
}

// SelectModels returns the known models matching the selector's family, in
// preference order.
func (c *OpenAIClient) SelectModels(ctx context.Context, sel Selector) ([]Model, error) {
	if sel.Vendor != "" && sel.Vendor != c.Vendor() {
		return nil, nil
	}
	var out []Model
	for _, info := range openAIModels {
		if sel.Family != "" && info.family != sel.Family {
			continue
		}
		out = append(out, &openAIModel{info: info, client: c.client})
	}
	return out, nil
}

type openAIModel struct {
	info   openAIModelInfo
	client *openai.Client
}

func (m *openAIModel) ID() string          { return m.info.id }
func (m *openAIModel) Family() string      { return m.info.family }
func (m *openAIModel) MaxInputTokens() int { return m.info.maxInput }

// SendRequest streams a completion, forwarding text fragments as they arrive.
func (m *openAIModel) SendRequest(ctx context.Context, turns []conversation.Turn, opts Options, onFragment func(string) error) error {
	pairs := toRoleContent(turns)
	messages := make([]openai.ChatCompletionMessage, len(pairs))
	for i, p := range pairs {
		messages[i] = openai.ChatCompletionMessage{Role: p.Role, Content: p.Content}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    m.info.id,
		Messages: messages,
		Stream:   true,
	}
	if opts.MaxTokens > 0 {
		chatReq.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != 0 {
		chatReq.Temperature = float32(opts.Temperature)
	}

	stream, err := m.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return classifyOpenAIError(err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return classifyOpenAIError(fmt.Errorf("stream receive error: %w", err))
		}
		// Stop delivering fragments once the caller cancels.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]
		if choice.FinishReason == openai.FinishReasonContentFilter {
			return &ClassifiedError{
				Type:    ErrorTypeRefusal,
				Message: "response filtered by content policy",
			}
		}
		if choice.Delta.Content != "" {
			if err := onFragment(choice.Delta.Content); err != nil {
				return err
			}
		}
		if choice.FinishReason == openai.FinishReasonStop {
			return nil
		}
	}
}

// classifyOpenAIError folds go-openai API errors into the known taxonomy,
// leaving unknown causes untouched.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		if code == "content_filter" || IsRefusal(apiErr.Message) {
			return &ClassifiedError{
				Type:       ErrorTypeRefusal,
				Message:    apiErr.Message,
				StatusCode: apiErr.HTTPStatusCode,
				Original:   err,
			}
		}
		if apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 || apiErr.HTTPStatusCode == 429 {
			return classifyHTTP(apiErr.HTTPStatusCode, apiErr.Message)
		}
	}
	return err
}
