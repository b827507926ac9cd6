package model

import (
	"context"
	"slices"
)

const AuthorityCertRequestor = "CERT_REQUESTOR"

// Principal is the authenticated identity of a request.
type Principal struct {
	TenantID    string
	Authorities []string
}

func (p *Principal) HasAuthority(authority string) bool {
	return p != nil && slices.Contains(p.Authorities, authority)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, or nil for anonymous
// requests.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
