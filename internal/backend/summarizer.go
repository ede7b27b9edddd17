package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"textlens/internal/chunker"
	"textlens/internal/domain"
)

const (
	SummarizerName = "huggingface-summarizer"

	DefaultSummarizerURL = "https://router.huggingface.co/hf-inference/models/facebook/bart-large-cnn"
)

type summarizeRequest struct {
	Inputs string `json:"inputs"`
}

// SummarizerBackend calls a dedicated summarization model that takes raw text
// as `{"inputs": ...}`. Long input is reduced chunk by chunk.
type SummarizerBackend struct {
	url        string
	reducer    *chunker.Reducer
	httpClient *http.Client
	log        *slog.Logger
}

func NewSummarizer(
	url string,
	reducer *chunker.Reducer,
	httpClient *http.Client,
	log *slog.Logger,
) *SummarizerBackend {
	if strings.TrimSpace(url) == "" {
		url = DefaultSummarizerURL
	}

	if reducer == nil {
		reducer = chunker.New(chunker.DefaultMaxChunkChars)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if log == nil {
		log = slog.Default()
	}

	return &SummarizerBackend{
		url:        url,
		reducer:    reducer,
		httpClient: httpClient,
		log:        log,
	}
}

func (s *SummarizerBackend) Name() string {
	return SummarizerName
}

func (s *SummarizerBackend) Available(creds domain.Credentials) bool {
	return creds.HasSecondary()
}

func (s *SummarizerBackend) Endpoint(_ domain.Credentials) string {
	return s.url
}

func (s *SummarizerBackend) Invoke(
	ctx context.Context,
	req domain.Request,
	creds domain.Credentials,
) (string, error) {
	return s.reducer.Reduce(ctx, req.SourceText, func(ctx context.Context, text string) (string, error) {
		return s.Complete(ctx, creds, text)
	})
}

func (s *SummarizerBackend) Descriptor() Descriptor {
	return Descriptor{
		Name:      SummarizerName,
		Available: s.Available,
		Invoke:    s.Invoke,
		Endpoint:  s.Endpoint,
		Calls:     s.Calls,
	}
}

// Calls counts the segment calls plus the final reduce call for a long text.
func (s *SummarizerBackend) Calls(req domain.Request) int {
	return s.reducer.Calls(req.SourceText)
}

// Complete summarizes text with one call.
func (s *SummarizerBackend) Complete(
	ctx context.Context,
	creds domain.Credentials,
	text string,
) (string, error) {
	payload, err := json.Marshal(summarizeRequest{Inputs: text})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(creds.SecondaryToken))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Backend: SummarizerName, URL: s.url, Err: err}
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"backend", SummarizerName,
				"url", s.url)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Backend: SummarizerName, URL: s.url, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &HTTPError{Backend: SummarizerName, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nonEmpty(SummarizerName, resp.StatusCode, ExtractText(body))
}
