package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"textlens/internal/domain"
	"textlens/internal/router"
	"time"
)

const (
	ActionSummarize = "summarize"
	ActionCallAPI   = "call_api"

	maxRequestBytes   = 1 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Actions are the two user actions the extension can trigger.
type Actions interface {
	Summarize(ctx context.Context, sourceText string) router.Result
	RunPrompt(ctx context.Context, promptText string, sourceText string) router.Result
}

type SettingsStore interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, s domain.Settings) error
}

type Server struct {
	actions    Actions
	store      SettingsStore
	relay      http.Handler
	httpServer *http.Server
	log        *slog.Logger
}

func New(
	addr string,
	actions Actions,
	store SettingsStore,
	relay http.Handler,
	log *slog.Logger,
) *Server {
	s := &Server{
		actions: actions,
		store:   store,
		relay:   relay,
		log:     log,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/summarize", s.handleSummarize)
	mux.HandleFunc("POST /v1/prompt", s.handlePrompt)
	mux.HandleFunc("POST /v1/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handlePutSettings)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.relay != nil {
		mux.Handle("/relay", s.relay)
	}

	return mux
}

// Start serves until ctx is done, then shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.log.InfoContext(ctx, "HTTP server is listening",
		"addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(lis)
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err = s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.log.InfoContext(ctx, "HTTP server is stopped")

	return nil
}

type summarizeRequest struct {
	SourceText string `json:"sourceText"`
}

type promptRequest struct {
	PromptText string `json:"promptText"`
	SourceText string `json:"sourceText"`
}

type messageRequest struct {
	Action    string `json:"action"`
	Prompt    string `json:"prompt"`
	Selection string `json:"selection"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.writeResult(w, r, s.actions.Summarize(r.Context(), req.SourceText))
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.writeResult(w, r, s.actions.RunPrompt(r.Context(), req.PromptText, req.SourceText))
}

// handleMessage accepts the extension's runtime message shape. A call_api
// message without a prompt runs on the selection alone, as a summary.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg messageRequest
	if !s.decode(w, r, &msg) {
		return
	}

	ctx := r.Context()

	switch msg.Action {
	case ActionSummarize:
		s.writeResult(w, r, s.actions.Summarize(ctx, msg.Selection))
	case ActionCallAPI:
		if strings.TrimSpace(msg.Prompt) == "" {
			s.writeResult(w, r, s.actions.Summarize(ctx, msg.Selection))
			return
		}

		s.writeResult(w, r, s.actions.RunPrompt(ctx, msg.Prompt, msg.Selection))
	default:
		s.writeJSON(w, r, http.StatusBadRequest, router.Result{
			Error: fmt.Sprintf("unknown action %q", msg.Action),
		})
	}
}

type settingsView struct {
	APIKey                 string    `json:"apiKey"`
	SecondaryToken         string    `json:"secondaryToken"`
	Model                  string    `json:"model"`
	RelayEndpoint          string    `json:"relayEndpoint"`
	UseResolverDiagnostics bool      `json:"useResolverDiagnostics"`
	UpdatedAt              time.Time `json:"updatedAt,omitzero"`
}

// settingsUpdate leaves a field unchanged when it is omitted.
type settingsUpdate struct {
	APIKey                 *string `json:"apiKey"`
	SecondaryToken         *string `json:"secondaryToken"`
	Model                  *string `json:"model"`
	RelayEndpoint          *string `json:"relayEndpoint"`
	UseResolverDiagnostics *bool   `json:"useResolverDiagnostics"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to get settings",
			"error", err)

		s.writeJSON(w, r, http.StatusInternalServerError, router.Result{Error: "failed to read settings"})
		return
	}

	s.writeJSON(w, r, http.StatusOK, viewOf(settings))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var upd settingsUpdate
	if !s.decode(w, r, &upd) {
		return
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get settings",
			"error", err)

		s.writeJSON(w, r, http.StatusInternalServerError, router.Result{Error: "failed to read settings"})
		return
	}

	upd.apply(&settings)

	if err = settings.Validate(); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, router.Result{Error: err.Error()})
		return
	}

	if err = s.store.SaveSettings(ctx, settings); err != nil {
		s.log.ErrorContext(ctx, "Failed to save settings",
			"error", err)

		s.writeJSON(w, r, http.StatusInternalServerError, router.Result{Error: "failed to save settings"})
		return
	}

	s.log.InfoContext(ctx, "Settings are saved",
		"hasAPIKey", settings.APIKey != "",
		"hasSecondaryToken", settings.SecondaryToken != "",
		"hasRelayEndpoint", settings.RelayEndpoint != "",
		"model", settings.ModelOrDefault())

	saved, err := s.store.GetSettings(ctx)
	if err != nil {
		saved = settings
	}

	s.writeJSON(w, r, http.StatusOK, viewOf(saved))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (u settingsUpdate) apply(s *domain.Settings) {
	if u.APIKey != nil {
		s.APIKey = strings.TrimSpace(*u.APIKey)
	}
	if u.SecondaryToken != nil {
		s.SecondaryToken = strings.TrimSpace(*u.SecondaryToken)
	}
	if u.Model != nil {
		s.Model = strings.TrimSpace(*u.Model)
	}
	if u.RelayEndpoint != nil {
		s.RelayEndpoint = strings.TrimSpace(*u.RelayEndpoint)
	}
	if u.UseResolverDiagnostics != nil {
		s.UseResolverDiagnostics = *u.UseResolverDiagnostics
	}
}

func viewOf(s domain.Settings) settingsView {
	return settingsView{
		APIKey:                 mask(s.APIKey),
		SecondaryToken:         mask(s.SecondaryToken),
		Model:                  s.ModelOrDefault(),
		RelayEndpoint:          s.RelayEndpoint,
		UseResolverDiagnostics: s.UseResolverDiagnostics,
		UpdatedAt:              s.UpdatedAt,
	}
}

// mask keeps only the last four characters of a secret, and only when the
// secret is long enough for that not to reveal most of it.
func mask(secret string) string {
	const visible = 4

	if secret == "" {
		return ""
	}

	r := []rune(secret)
	if len(r) <= 2*visible {
		return "****"
	}

	return "****" + string(r[len(r)-visible:])
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, router.Result{Error: "invalid JSON body: " + err.Error()})
		return false
	}

	return true
}

// writeResult answers with 200 even for failed actions; the body carries ok=false.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res router.Result) {
	s.writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to write response",
			"error", err,
			"path", r.URL.Path)
	}
}
