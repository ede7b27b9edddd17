package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"textlens/internal/domain"
	"textlens/internal/resolver"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultDiagnosticsSpec = "*/15 * * * *"
	Timezone               = "UTC"
	TimezoneOffsetSeconds  = 0
	probeTimeout           = time.Minute
)

type SettingsStore interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
}

type Prober interface {
	Probe(ctx context.Context, creds domain.Credentials) []resolver.HostReport
}

// Scheduler periodically checks that backend hosts resolve, for users who
// turned resolver diagnostics on.
type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	spec   string
	store  SettingsStore
	prober Prober
	log    *slog.Logger
}

func New(
	ctx context.Context,
	spec string,
	store SettingsStore,
	prober Prober,
	log *slog.Logger,
) *Scheduler {
	if spec == "" {
		spec = DefaultDiagnosticsSpec
	}

	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		spec:   spec,
		store:  store,
		prober: prober,
		log:    log,
	}
}

func (s *Scheduler) Spec() string {
	return s.spec
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.probeBackends); err != nil {
		return fmt.Errorf("add func: %w", err)
	}

	s.cron.Start()

	return nil
}

// Stop stops the schedule and waits for a running probe to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) probeBackends() {
	ctx, cancel := context.WithTimeout(s.ctx, probeTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get settings",
			"error", err)

		return
	}

	if !settings.UseResolverDiagnostics {
		return
	}

	reports := s.prober.Probe(ctx, settings.Credentials())

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
			s.log.WarnContext(ctx, "Backend host does not resolve",
				"error", r.Err,
				"backend", r.Backend,
				"host", r.Host)

			continue
		}

		s.log.DebugContext(ctx, "Backend host resolves",
			"backend", r.Backend,
			"host", r.Host,
			"addrs", r.Addrs)
	}

	s.log.InfoContext(ctx, "Backend hosts are probed",
		"hostCount", len(reports),
		"failedCount", failed)
}
