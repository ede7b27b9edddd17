// Package relay forwards chat completion bodies upstream using a key held by
// the server, so clients without their own key can still reach the primary backend.
package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"textlens/internal/domain"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DefaultUpstreamURL = "https://api.openrouter.ai/v1/chat/completions"
	MaxBodyBytes       = 4 << 20
)

type Handler struct {
	upstreamURL  string
	apiKey       string
	defaultModel string
	httpClient   *http.Client
	log          *slog.Logger
}

func New(upstreamURL string, apiKey string, httpClient *http.Client, log *slog.Logger) *Handler {
	if upstreamURL == "" {
		upstreamURL = DefaultUpstreamURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Handler{
		upstreamURL:  upstreamURL,
		apiKey:       apiKey,
		defaultModel: domain.DefaultModel,
		httpClient:   httpClient,
		log:          log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.writeJSON(w, r, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	if h.apiKey == "" {
		h.log.ErrorContext(ctx, "Relay key is not configured",
			"envVar", "OPENROUTER_API_KEY")

		h.writeJSON(w, r, http.StatusInternalServerError,
			map[string]string{"error": "Server misconfigured: OPENROUTER_API_KEY not set"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "Invalid body", "detail": err.Error()})
		return
	}

	body, err = h.withModel(body)
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "Invalid body", "detail": err.Error()})
		return
	}

	status, respBody, err := h.forward(r, body)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to forward relay request",
			"error", err,
			"upstreamURL", h.upstreamURL)

		h.writeJSON(w, r, http.StatusBadGateway, map[string]string{"error": "Proxy error", "detail": err.Error()})
		return
	}

	h.log.InfoContext(ctx, "Relay request is forwarded",
		"status", status,
		"requestBytes", len(body),
		"responseBytes", len(respBody))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(respBody); err != nil {
		h.log.ErrorContext(ctx, "Failed to write relay response",
			"error", err)
	}
}

// withModel fills a missing model field with the default model.
func (h *Handler) withModel(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("body is not valid JSON")
	}

	if gjson.GetBytes(body, "model").String() != "" {
		return body, nil
	}

	return sjson.SetBytes(body, "model", h.defaultModel)
}

func (h *Handler) forward(r *http.Request, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.upstreamURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			h.log.ErrorContext(r.Context(), "Failed to close relay response body",
				"error", err,
				"upstreamURL", h.upstreamURL)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to write response",
			"error", err,
			"path", r.URL.Path)
	}
}
