package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"textlens/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	PrimaryChatName   = "openrouter"
	SecondaryChatName = "huggingface-chat"

	DefaultPrimaryBaseURL   = "https://api.openrouter.ai/v1/"
	DefaultSecondaryBaseURL = "https://router.huggingface.co/v1/"
	DefaultSecondaryModel   = "meta-llama/Meta-Llama-3.1-8B-Instruct"

	chatTemperature       = 0.2
	chatMaxTokens   int64 = 1024
	chatCompletionsPath   = "chat/completions"

	summarizeInstruction = "Summarize the following text:"
)

// ChatBackend talks to an OpenAI-compatible chat completions endpoint.
type ChatBackend struct {
	name       string
	baseURL    string
	model      string
	token      func(domain.Credentials) string
	allowRelay bool
	httpClient *http.Client
}

// NewPrimaryChat builds the primary backend. It uses the user's key and, when
// there is none, the user's relay endpoint without any credential header.
func NewPrimaryChat(baseURL string, httpClient *http.Client) *ChatBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultPrimaryBaseURL
	}

	return &ChatBackend{
		name:    PrimaryChatName,
		baseURL: baseURL,
		token: func(creds domain.Credentials) string {
			return strings.TrimSpace(creds.PrimaryKey)
		},
		allowRelay: true,
		httpClient: httpClient,
	}
}

// NewSecondaryChat builds the chat fallback authenticated with the secondary token.
func NewSecondaryChat(baseURL string, model string, httpClient *http.Client) *ChatBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultSecondaryBaseURL
	}

	if strings.TrimSpace(model) == "" {
		model = DefaultSecondaryModel
	}

	return &ChatBackend{
		name:    SecondaryChatName,
		baseURL: baseURL,
		model:   model,
		token: func(creds domain.Credentials) string {
			return strings.TrimSpace(creds.SecondaryToken)
		},
		httpClient: httpClient,
	}
}

func (c *ChatBackend) Name() string {
	return c.name
}

func (c *ChatBackend) Available(creds domain.Credentials) bool {
	if c.token(creds) != "" {
		return true
	}

	return c.allowRelay && creds.HasRelay()
}

func (c *ChatBackend) Endpoint(creds domain.Credentials) string {
	if c.token(creds) == "" && c.allowRelay && creds.HasRelay() {
		return strings.TrimSpace(creds.RelayEndpoint)
	}

	return strings.TrimSuffix(c.baseURL, "/") + "/" + chatCompletionsPath
}

func (c *ChatBackend) Invoke(
	ctx context.Context,
	req domain.Request,
	creds domain.Credentials,
) (string, error) {
	return c.Complete(ctx, creds, ChatInput(req))
}

func (c *ChatBackend) Descriptor() Descriptor {
	return Descriptor{
		Name:      c.name,
		Available: c.Available,
		Invoke:    c.Invoke,
		Endpoint:  c.Endpoint,
	}
}

// Complete sends input as a single user message and returns the generated text.
func (c *ChatBackend) Complete(
	ctx context.Context,
	creds domain.Credentials,
	input string,
) (string, error) {
	token := c.token(creds)

	var relayURL *url.URL
	if token == "" {
		if !c.allowRelay || !creds.HasRelay() {
			return "", fmt.Errorf("%s: no credential configured", c.name)
		}

		u, err := url.Parse(strings.TrimSpace(creds.RelayEndpoint))
		if err != nil {
			return "", fmt.Errorf("parse relay endpoint: %w", err)
		}
		relayURL = u
	}

	ex := &exchange{backend: c.name}

	opts := []option.RequestOption{
		option.WithBaseURL(c.baseURL),
		option.WithAPIKey(token),
		option.WithMaxRetries(0),
		option.WithMiddleware(ex.middleware(relayURL)),
	}
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	}

	client := openai.NewClient(opts...)

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.modelFor(creds)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(input),
		},
		Temperature: openai.Float(chatTemperature),
		MaxTokens:   openai.Int(chatMaxTokens),
	})
	if ex.err != nil {
		return "", ex.err
	}
	if err != nil {
		if ex.succeeded() {
			// Body did not decode as a chat completion.
			return nonEmpty(c.name, ex.status, ExtractText(ex.body))
		}

		return "", &NetworkError{Backend: c.name, URL: ex.url, Err: err}
	}

	if len(completion.Choices) > 0 && strings.TrimSpace(completion.Choices[0].Message.Content) != "" {
		return completion.Choices[0].Message.Content, nil
	}

	return nonEmpty(c.name, ex.status, ExtractText(ex.body))
}

// nonEmpty turns a blank result of a successful call into a failure, so the
// resolver moves on to the next backend.
func nonEmpty(backendName string, status int, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &EmptyResponseError{Backend: backendName, StatusCode: status}
	}

	return text, nil
}

func (c *ChatBackend) modelFor(creds domain.Credentials) string {
	if c.model != "" {
		return c.model
	}

	if model := strings.TrimSpace(creds.Model); model != "" {
		return model
	}

	return domain.DefaultModel
}

// ChatInput renders a request as the single user message of a chat call.
func ChatInput(req domain.Request) string {
	prompt := strings.TrimSpace(req.PromptText)
	if prompt == "" && req.Mode == domain.ModeSummarize {
		prompt = summarizeInstruction
	}

	if prompt == "" {
		return req.SourceText
	}

	return prompt + "\n\n" + req.SourceText
}

// exchange records the raw HTTP exchange of one SDK call so that non-2xx bodies
// and unknown response shapes reach the caller untouched.
type exchange struct {
	backend string
	url     string
	status  int
	body    []byte
	err     error
}

func (x *exchange) middleware(target *url.URL) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		if target != nil {
			u := *target
			req.URL = &u
			req.Host = u.Host
			req.Header.Del("Authorization")
		}
		x.url = req.URL.String()

		res, err := next(req)
		if err != nil {
			x.err = &NetworkError{Backend: x.backend, URL: x.url, Err: err}
			return nil, x.err
		}

		body, err := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if err != nil {
			x.err = &NetworkError{Backend: x.backend, URL: x.url, Err: fmt.Errorf("read response body: %w", err)}
			return nil, x.err
		}

		x.status = res.StatusCode
		x.body = body

		if !x.succeeded() {
			x.err = &HTTPError{Backend: x.backend, StatusCode: res.StatusCode, Body: string(body)}
			return nil, x.err
		}

		res.Body = io.NopCloser(bytes.NewReader(body))

		return res, nil
	}
}

func (x *exchange) succeeded() bool {
	return x.status >= http.StatusOK && x.status < http.StatusMultipleChoices
}
