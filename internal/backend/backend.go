// Package backend adapts remote text generation services to one canonical
// contract: a request and the caller's credentials in, generated text out.
package backend

import (
	"context"
	"textlens/internal/domain"
)

// Descriptor describes one callable backend of a fallback chain.
type Descriptor struct {
	Name string
	// Available reports whether the credentials allow calling the backend at all.
	Available func(creds domain.Credentials) bool
	Invoke    func(ctx context.Context, req domain.Request, creds domain.Credentials) (string, error)
	// Endpoint is the URL the backend would be called at. It may be nil.
	Endpoint func(creds domain.Credentials) string
	// Calls is the number of remote calls one invocation makes for req. The
	// per-attempt deadline is scaled by it. It may be nil, meaning one call.
	Calls func(req domain.Request) int
}
