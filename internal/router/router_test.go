package router

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"textlens/internal/domain"
	"textlens/internal/resolver"
)

type stubStore struct {
	settings domain.Settings
	err      error
	reads    int
}

func (s *stubStore) GetSettings(context.Context) (domain.Settings, error) {
	s.reads++
	return s.settings, s.err
}

type stubResolver struct {
	result   string
	err      error
	requests []domain.Request
	creds    []domain.Credentials
}

func (s *stubResolver) Resolve(
	_ context.Context,
	req domain.Request,
	creds domain.Credentials,
	_ ...resolver.ResolveOption,
) (string, error) {
	s.requests = append(s.requests, req)
	s.creds = append(s.creds, creds)

	return s.result, s.err
}

func newTestRouter(store *stubStore, res *stubResolver, infer bool) *Router {
	return New(store, res, infer, slog.New(slog.DiscardHandler))
}

func TestSummarizeSuccess(t *testing.T) {
	store := &stubStore{settings: domain.Settings{APIKey: "key"}}
	res := &stubResolver{result: "summary"}

	got := newTestRouter(store, res, false).Summarize(context.Background(), "This is a test selection.")
	if !got.OK || got.Result != "summary" || got.Error != "" {
		t.Fatalf("unexpected result %+v", got)
	}

	if len(res.requests) != 1 || res.requests[0].Mode != domain.ModeSummarize {
		t.Fatalf("expected one summarize request, got %+v", res.requests)
	}

	if res.creds[0].PrimaryKey != "key" || res.creds[0].Model != domain.DefaultModel {
		t.Fatalf("unexpected credentials %+v", res.creds[0])
	}
}

func TestSummarizeRejectsEmptySelectionBeforeResolving(t *testing.T) {
	store := &stubStore{}
	res := &stubResolver{}

	got := newTestRouter(store, res, false).Summarize(context.Background(), "   ")
	if got.OK || got.Error != domain.ErrEmptySelection.Error() {
		t.Fatalf("unexpected result %+v", got)
	}

	if len(res.requests) != 0 || store.reads != 0 {
		t.Fatalf("expected nothing to be read or resolved")
	}
}

func TestCredentialsAreReadPerAction(t *testing.T) {
	store := &stubStore{settings: domain.Settings{APIKey: "first"}}
	res := &stubResolver{result: "ok"}
	r := newTestRouter(store, res, false)

	r.Summarize(context.Background(), "a")
	store.settings.APIKey = "second"
	r.RunPrompt(context.Background(), "Explain", "b")

	if store.reads != 2 {
		t.Fatalf("expected settings to be read for every action, got %d reads", store.reads)
	}

	if res.creds[1].PrimaryKey != "second" {
		t.Fatalf("expected fresh credentials, got %+v", res.creds[1])
	}
}

func TestRunPromptModes(t *testing.T) {
	tests := []struct {
		name  string
		infer bool
		want  domain.Mode
	}{
		{"explicit mode by default", false, domain.ModeCustomPrompt},
		{"inferred summarize intent", true, domain.ModeSummarize},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := &stubResolver{result: "ok"}

			got := newTestRouter(&stubStore{}, res, test.infer).RunPrompt(context.Background(), "Summarize in French", "text")
			if !got.OK {
				t.Fatalf("unexpected failure %+v", got)
			}

			if res.requests[0].Mode != test.want {
				t.Fatalf("expected mode %v, got %v", test.want, res.requests[0].Mode)
			}

			if res.requests[0].PromptText != "Summarize in French" {
				t.Fatalf("unexpected prompt %q", res.requests[0].PromptText)
			}
		})
	}
}

func TestResolverErrorBecomesFailureResult(t *testing.T) {
	res := &stubResolver{err: &resolver.ConfigurationError{}}

	got := newTestRouter(&stubStore{}, res, false).RunPrompt(context.Background(), "Explain", "text")
	if got.OK || got.Error != "no credential configured for any backend" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestStoreErrorBecomesFailureResult(t *testing.T) {
	store := &stubStore{err: errors.New("disk on fire")}

	got := newTestRouter(store, &stubResolver{}, false).Summarize(context.Background(), "text")
	if got.OK || got.Error != "read settings: disk on fire" {
		t.Fatalf("unexpected result %+v", got)
	}
}
