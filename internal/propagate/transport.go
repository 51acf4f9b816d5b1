// Package propagate carries the ambient tenant binding across execution
// boundaries: outbound HTTP requests to sibling services and work
// scheduled onto background goroutines. Whatever the boundary, the rule
// is the same: the binding travels with the work, never leaks between
// unrelated units, and is absent on the other side exactly when it was
// absent here.
package propagate

import (
	"net/http"
	"strconv"

	"github.com/lachgar03/crm-project/internal/logger"
	"github.com/lachgar03/crm-project/internal/resilience"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// Transport is an http.RoundTripper that stamps outbound requests with
// the caller's tenant binding, bearer credential, and request ID, so a
// downstream service sees the same logical request. An optional circuit
// breaker guards the upstream.
type Transport struct {
	base    http.RoundTripper
	breaker *resilience.Breaker
}

// NewTransport wraps base with tenant propagation. A nil base uses
// http.DefaultTransport; a nil breaker disables circuit breaking.
func NewTransport(base http.RoundTripper, breaker *resilience.Breaker) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, breaker: breaker}
}

// RoundTrip implements http.RoundTripper. The request is cloned before
// mutation as the contract requires; existing headers on the outbound
// request are never overwritten, so a caller can still address a
// different tenant deliberately.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	if id, ok := tenantctx.TenantID(ctx); ok && out.Header.Get("X-Tenant-ID") == "" {
		out.Header.Set("X-Tenant-ID", strconv.FormatInt(id, 10))
	}
	if token := tenantctx.Bearer(ctx); token != "" && out.Header.Get("Authorization") == "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	if rid := logger.RequestID(ctx); rid != "" && out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", rid)
	}

	if t.breaker == nil {
		return t.base.RoundTrip(out)
	}

	var resp *http.Response
	err := t.breaker.Do(ctx, func() error {
		var rtErr error
		resp, rtErr = t.base.RoundTrip(out)
		if rtErr != nil {
			return rtErr
		}
		// Upstream 5xx counts as a breaker failure without failing the
		// round trip itself.
		if resp.StatusCode >= http.StatusInternalServerError {
			return errUpstreamStatus
		}
		return nil
	})
	if err == errUpstreamStatus {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
