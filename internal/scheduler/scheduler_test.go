package scheduler

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
}

func (s *stubStore) GetSettings(context.Context) (domain.Settings, error) {
	return s.settings, s.err
}

type stubProber struct {
	creds []domain.Credentials
}

func (s *stubProber) Probe(_ context.Context, creds domain.Credentials) []resolver.HostReport {
	s.creds = append(s.creds, creds)

	return []resolver.HostReport{
		{Backend: "openrouter", Host: "api.openrouter.ai", Addrs: []string{"192.0.2.1"}},
		{Backend: "huggingface-chat", Host: "router.huggingface.co", Err: errors.New("no such host")},
	}
}

func newTestScheduler(ctx context.Context, spec string, store *stubStore, prober *stubProber) *Scheduler {
	return New(ctx, spec, store, prober, slog.New(slog.DiscardHandler))
}

func TestProbeOnlyWhenDiagnosticsEnabled(t *testing.T) {
	tests := []struct {
		name       string
		settings   domain.Settings
		wantProbes int
	}{
		{"disabled", domain.Settings{APIKey: "k"}, 0},
		{"enabled", domain.Settings{APIKey: "k", UseResolverDiagnostics: true}, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			prober := &stubProber{}
			s := newTestScheduler(context.Background(), "", &stubStore{settings: test.settings}, prober)

			s.probeBackends()

			if len(prober.creds) != test.wantProbes {
				t.Fatalf("expected %d probes, got %d", test.wantProbes, len(prober.creds))
			}

			if test.wantProbes > 0 && prober.creds[0].PrimaryKey != "k" {
				t.Fatalf("unexpected credentials %+v", prober.creds[0])
			}
		})
	}
}

func TestProbeSkippedOnStoreErrorOrDoneContext(t *testing.T) {
	prober := &stubProber{}
	newTestScheduler(context.Background(), "", &stubStore{err: errors.New("locked")}, prober).probeBackends()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &stubStore{settings: domain.Settings{UseResolverDiagnostics: true}}
	newTestScheduler(ctx, "", store, prober).probeBackends()

	if len(prober.creds) != 0 {
		t.Fatalf("expected no probes, got %d", len(prober.creds))
	}
}

func TestStartValidatesSpec(t *testing.T) {
	s := newTestScheduler(context.Background(), "not a spec", &stubStore{}, &stubProber{})
	if err := s.Start(); err == nil {
		t.Fatalf("expected invalid spec error")
	}

	s = newTestScheduler(context.Background(), "", &stubStore{}, &stubProber{})
	if s.Spec() != DefaultDiagnosticsSpec {
		t.Fatalf("expected default spec, got %q", s.Spec())
	}

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
