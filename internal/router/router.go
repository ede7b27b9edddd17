package router

import (
	"context"
	"fmt"
	"log/slog"
	"textlens/internal/domain"
	"textlens/internal/resolver"
)

// SettingsStore reads the user's configuration record.
type SettingsStore interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
}

// Resolver answers one request with credentials taken at the start of the action.
type Resolver interface {
	Resolve(
		ctx context.Context,
		req domain.Request,
		creds domain.Credentials,
		opts ...resolver.ResolveOption,
	) (string, error)
}

// Result is what the overlay receives.
type Result struct {
	OK     bool   `json:"ok"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Router struct {
	store                SettingsStore
	resolver             Resolver
	inferSummarizeIntent bool
	log                  *slog.Logger
}

func New(
	store SettingsStore,
	resolver Resolver,
	inferSummarizeIntent bool,
	log *slog.Logger,
) *Router {
	return &Router{
		store:                store,
		resolver:             resolver,
		inferSummarizeIntent: inferSummarizeIntent,
		log:                  log,
	}
}

func (r *Router) Summarize(ctx context.Context, sourceText string) Result {
	return r.dispatch(ctx, domain.ModeSummarize, "", sourceText)
}

// RunPrompt applies a custom prompt to the source text. With intent inference
// enabled, prompts starting with "summarize" go through the summarization chain.
func (r *Router) RunPrompt(ctx context.Context, promptText string, sourceText string) Result {
	mode := domain.ModeCustomPrompt
	if r.inferSummarizeIntent {
		mode = domain.ModeFromPrompt(promptText)
	}

	return r.dispatch(ctx, mode, promptText, sourceText)
}

func (r *Router) dispatch(
	ctx context.Context,
	mode domain.Mode,
	promptText string,
	sourceText string,
) Result {
	req, err := domain.NewRequest(mode, promptText, sourceText)
	if err != nil {
		r.log.InfoContext(ctx, "Request is rejected",
			"error", err,
			"mode", mode.String())

		return failure(err)
	}

	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to read settings",
			"error", err,
			"mode", mode.String())

		return failure(fmt.Errorf("read settings: %w", err))
	}

	result, err := r.resolver.Resolve(ctx, req, settings.Credentials(),
		resolver.WithResolverDiagnostics(settings.UseResolverDiagnostics))
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to resolve request",
			"error", err,
			"mode", mode.String(),
			"sourceLength", len(req.SourceText))

		return failure(err)
	}

	return Result{OK: true, Result: result}
}

func failure(err error) Result {
	return Result{OK: false, Error: err.Error()}
}
