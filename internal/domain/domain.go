package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultModel = "mistralai/mistral-7b-instruct"

	summarizeIntentPrefix = "summarize"
)

var (
	ErrEmptySelection = errors.New("selection is empty")
	ErrEmptyPrompt    = errors.New("prompt is empty")
)

type Mode int

const (
	ModeSummarize Mode = iota
	ModeCustomPrompt
)

func (m Mode) String() string {
	switch m {
	case ModeSummarize:
		return "summarize"
	case ModeCustomPrompt:
		return "customPrompt"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Request is one user action. Build it with NewRequest and pass it by value.
type Request struct {
	PromptText string
	SourceText string
	Mode       Mode
}

func NewRequest(mode Mode, promptText string, sourceText string) (Request, error) {
	if strings.TrimSpace(sourceText) == "" {
		return Request{}, ErrEmptySelection
	}

	promptText = strings.TrimSpace(promptText)
	if mode == ModeCustomPrompt && promptText == "" {
		return Request{}, ErrEmptyPrompt
	}

	return Request{
		PromptText: promptText,
		SourceText: sourceText,
		Mode:       mode,
	}, nil
}

// ModeFromPrompt treats a prompt starting with "summarize" as a summarization request.
func ModeFromPrompt(promptText string) Mode {
	p := strings.ToLower(strings.TrimSpace(promptText))
	if strings.HasPrefix(p, summarizeIntentPrefix) {
		return ModeSummarize
	}

	return ModeCustomPrompt
}

// Credentials is a read-only snapshot of what the user configured. Model is the
// preferred model of the primary chat backend.
type Credentials struct {
	PrimaryKey     string
	SecondaryToken string
	RelayEndpoint  string
	Model          string
}

func (c Credentials) HasPrimary() bool {
	return strings.TrimSpace(c.PrimaryKey) != ""
}

func (c Credentials) HasSecondary() bool {
	return strings.TrimSpace(c.SecondaryToken) != ""
}

func (c Credentials) HasRelay() bool {
	return strings.TrimSpace(c.RelayEndpoint) != ""
}

type Settings struct {
	APIKey                 string    `json:"apiKey"`
	SecondaryToken         string    `json:"secondaryToken"`
	Model                  string    `json:"model"`
	RelayEndpoint          string    `json:"relayEndpoint"`
	UseResolverDiagnostics bool      `json:"useResolverDiagnostics"`
	UpdatedAt              time.Time `json:"updatedAt,omitzero"`
}

func (s Settings) Credentials() Credentials {
	return Credentials{
		PrimaryKey:     strings.TrimSpace(s.APIKey),
		SecondaryToken: strings.TrimSpace(s.SecondaryToken),
		RelayEndpoint:  strings.TrimSpace(s.RelayEndpoint),
		Model:          s.ModelOrDefault(),
	}
}

func (s Settings) ModelOrDefault() string {
	if model := strings.TrimSpace(s.Model); model != "" {
		return model
	}

	return DefaultModel
}

func (s Settings) Validate() error {
	relay := strings.TrimSpace(s.RelayEndpoint)
	if relay == "" {
		return nil
	}

	u, err := url.Parse(relay)
	if err != nil {
		return fmt.Errorf("parse relay endpoint: %w", err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("relay endpoint must be an absolute http(s) URL (got %q)", relay)
	}

	return nil
}
