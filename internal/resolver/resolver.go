package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"textlens/internal/backend"
	"textlens/internal/domain"
	"time"

	"github.com/google/uuid"
)

const DefaultAttemptTimeout = 60 * time.Second

// ConfigurationError means no candidate of the chain could be called.
type ConfigurationError struct {
	Mode domain.Mode
}

func (e *ConfigurationError) Error() string {
	return "no credential configured for any backend"
}

// AllBackendsFailedError means every available candidate was called and failed.
type AllBackendsFailedError struct {
	Attempts int
	Last     error
}

func (e *AllBackendsFailedError) Error() string {
	if e.Last == nil {
		return "all backends failed"
	}

	return fmt.Sprintf("all backends failed: %v", e.Last)
}

func (e *AllBackendsFailedError) Unwrap() error { return e.Last }

type Option func(*Policy)

func WithAttemptTimeout(d time.Duration) Option {
	return func(p *Policy) {
		p.attemptTimeout = d
	}
}

func WithLookup(lookup LookupFunc) Option {
	return func(p *Policy) {
		p.lookup = lookup
	}
}

type resolveOptions struct {
	diagnostics bool
}

type ResolveOption func(*resolveOptions)

// WithResolverDiagnostics makes Resolve look up the host of a backend that
// failed on the network level and log what the resolver returned.
func WithResolverDiagnostics(enabled bool) ResolveOption {
	return func(o *resolveOptions) {
		o.diagnostics = enabled
	}
}

// Policy answers a request with the first backend of its mode's chain that
// succeeds. Candidates are tried one at a time, in order.
type Policy struct {
	chains         map[domain.Mode][]backend.Descriptor
	attemptTimeout time.Duration
	lookup         LookupFunc
	log            *slog.Logger
}

func New(
	chains map[domain.Mode][]backend.Descriptor,
	log *slog.Logger,
	opts ...Option,
) *Policy {
	p := &Policy{
		chains:         chains,
		attemptTimeout: DefaultAttemptTimeout,
		lookup:         defaultLookup,
		log:            log,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Chains returns the fallback order of each mode: the dedicated summarizer
// leads only for summarization.
func Chains(
	summarizer backend.Descriptor,
	primary backend.Descriptor,
	secondary backend.Descriptor,
) map[domain.Mode][]backend.Descriptor {
	return map[domain.Mode][]backend.Descriptor{
		domain.ModeSummarize:    {summarizer, primary, secondary},
		domain.ModeCustomPrompt: {primary, secondary},
	}
}

func (p *Policy) Resolve(
	ctx context.Context,
	req domain.Request,
	creds domain.Credentials,
	opts ...ResolveOption,
) (string, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	requestID := uuid.NewString()
	chain := p.chains[req.Mode]

	attempts := 0
	var lastErr error

	for _, candidate := range chain {
		if candidate.Available == nil || !candidate.Available(creds) {
			p.log.DebugContext(ctx, "Backend is not available",
				"requestID", requestID,
				"backend", candidate.Name,
				"mode", req.Mode.String())

			continue
		}

		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("resolve request: %w", err)
		}

		attempts++
		endpoint := endpointOf(candidate, creds)

		p.log.InfoContext(ctx, "Calling backend",
			"requestID", requestID,
			"backend", candidate.Name,
			"attempt", attempts,
			"mode", req.Mode.String(),
			"endpoint", endpoint)

		start := time.Now()
		result, err := p.invoke(ctx, candidate, req, creds)
		if err == nil {
			p.log.InfoContext(ctx, "Backend succeeded",
				"requestID", requestID,
				"backend", candidate.Name,
				"attempt", attempts,
				"durationMs", time.Since(start).Milliseconds())

			return result, nil
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("resolve request: %w", ctx.Err())
		}

		lastErr = err

		p.log.WarnContext(ctx, "Backend failed, trying next",
			"error", err,
			"requestID", requestID,
			"backend", candidate.Name,
			"attempt", attempts,
			"endpoint", endpoint,
			"durationMs", time.Since(start).Milliseconds())

		if o.diagnostics && backend.IsNetworkError(err) {
			p.diagnose(ctx, requestID, candidate.Name, endpoint)
		}
	}

	if attempts == 0 {
		p.log.WarnContext(ctx, "No backend is available",
			"requestID", requestID,
			"mode", req.Mode.String(),
			"candidates", len(chain))

		return "", &ConfigurationError{Mode: req.Mode}
	}

	p.log.ErrorContext(ctx, "All backends failed",
		"error", lastErr,
		"requestID", requestID,
		"mode", req.Mode.String(),
		"attempts", attempts)

	return "", &AllBackendsFailedError{Attempts: attempts, Last: lastErr}
}

func (p *Policy) invoke(
	ctx context.Context,
	candidate backend.Descriptor,
	req domain.Request,
	creds domain.Credentials,
) (string, error) {
	if candidate.Invoke == nil {
		return "", errors.New("backend has no invoke function")
	}

	attemptCtx := ctx
	if p.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.attemptTimeout*time.Duration(callsOf(candidate, req)))
		defer cancel()
	}

	return candidate.Invoke(attemptCtx, req, creds)
}

func endpointOf(candidate backend.Descriptor, creds domain.Credentials) string {
	if candidate.Endpoint == nil {
		return ""
	}

	return candidate.Endpoint(creds)
}

func callsOf(candidate backend.Descriptor, req domain.Request) int {
	if candidate.Calls == nil {
		return 1
	}

	return max(candidate.Calls(req), 1)
}
