package resolver

import (
	"context"
	"net"
	"net/url"
	"slices"
	"textlens/internal/domain"
	"time"
)

const lookupTimeout = 5 * time.Second

// LookupFunc resolves a host name to addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

func defaultLookup(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

// HostReport is the outcome of resolving one backend host.
type HostReport struct {
	Backend string
	Host    string
	Addrs   []string
	Err     error
}

// Probe resolves the host of every backend that the credentials make available.
func (p *Policy) Probe(ctx context.Context, creds domain.Credentials) []HostReport {
	var reports []HostReport
	seen := make(map[string]struct{})

	for _, mode := range []domain.Mode{domain.ModeSummarize, domain.ModeCustomPrompt} {
		for _, candidate := range p.chains[mode] {
			if candidate.Available == nil || !candidate.Available(creds) {
				continue
			}

			host := hostOf(endpointOf(candidate, creds))
			if host == "" {
				continue
			}

			key := candidate.Name + "|" + host
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			addrs, err := p.lookupHost(ctx, host)
			reports = append(reports, HostReport{
				Backend: candidate.Name,
				Host:    host,
				Addrs:   addrs,
				Err:     err,
			})
		}
	}

	return reports
}

func (p *Policy) diagnose(ctx context.Context, requestID string, backendName string, endpoint string) {
	host := hostOf(endpoint)
	if host == "" {
		return
	}

	addrs, err := p.lookupHost(ctx, host)
	if err != nil {
		p.log.WarnContext(ctx, "Backend host does not resolve",
			"error", err,
			"requestID", requestID,
			"backend", backendName,
			"host", host)

		return
	}

	p.log.InfoContext(ctx, "Backend host resolves",
		"requestID", requestID,
		"backend", backendName,
		"host", host,
		"addrs", slices.Clone(addrs))
}

func (p *Policy) lookupHost(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	return p.lookup(lookupCtx, host)
}

func hostOf(endpoint string) string {
	if endpoint == "" {
		return ""
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}

	return u.Hostname()
}
