// mistral/mistral.go
package mistral

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultBaseURL = "https://api.mistral.ai/v1/"
	defaultModel   = "mistral-large-latest"
	defaultTimeout = 30 * time.Second

	defaultSystemPrompt = "Tu es un assistant intelligent et serviable. Réponds de manière concise et utile aux questions de l'utilisateur."

	maxTokens   = 1000
	temperature = 0.7
)

// Message is one prior turn of the conversation, oldest first.
type Message struct {
	Role    string
	Content string
}

// Client talks to the Mistral chat-completions API. Mistral exposes an
// OpenAI-compatible endpoint, so the official openai-go SDK does the wire
// work with its base URL pointed at api.mistral.ai.
type Client struct {
	client       openai.Client
	model        string
	systemPrompt string
	timeout      time.Duration
}

type settings struct {
	baseURL      string
	httpClient   *http.Client
	model        string
	systemPrompt string
	timeout      time.Duration
}

// Option configures the client.
type Option func(*settings)

// WithModel overrides the default mistral-large-latest model.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) { s.baseURL = baseURL }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithTimeout bounds each Generate call.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithSystemPrompt replaces the default assistant persona.
func WithSystemPrompt(prompt string) Option {
	return func(s *settings) { s.systemPrompt = prompt }
}

// New builds a Client with the given API key.
func New(apiKey string, opts ...Option) *Client {
	s := settings{
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		systemPrompt: defaultSystemPrompt,
		timeout:      defaultTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(s.baseURL),
	}
	if s.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(s.httpClient))
	}

	return &Client{
		client:       openai.NewClient(reqOpts...),
		model:        s.model,
		systemPrompt: s.systemPrompt,
		timeout:      s.timeout,
	}
}

// Generate sends the system prompt, the conversation history and the new
// user message, and returns the assistant's reply.
func (c *Client) Generate(ctx context.Context, history []Message, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(c.systemPrompt))
	for _, m := range history {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	// The caller records the user turn before asking for a reply, so the
	// history usually already ends with this exact message; don't send it
	// twice.
	if n := len(history); n == 0 || history[n-1].Role != "user" || history[n-1].Content != userMessage {
		messages = append(messages, openai.UserMessage(userMessage))
	}

	log.Printf("🤖 Sending %d messages to Mistral (model %s)", len(messages), c.model)
	start := time.Now()

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("mistral request failed: %w", err)
	}

	log.Printf("🤖 Mistral answered in %.2fs", time.Since(start).Seconds())

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("mistral returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
