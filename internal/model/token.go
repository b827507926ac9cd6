package model

import (
	"context"
	"time"
)

// EnvoyToken is a bearer credential allocated to a tenant and exchanged by
// an Envoy agent for a client certificate.
type EnvoyToken struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenantId"`
	Token            string     `json:"token"`
	Description      string     `json:"description"`
	CreatedTimestamp time.Time  `json:"createdTimestamp"`
	UpdatedTimestamp time.Time  `json:"updatedTimestamp"`
	LastUsed         *time.Time `json:"lastUsed"`
}

// TokenRepository is the durable token store. Lookups that match nothing
// return ErrNotFound.
type TokenRepository interface {
	// Save inserts a token without ID, assigning ID and CreatedTimestamp,
	// or updates the mutable fields of a stored one. UpdatedTimestamp is set
	// on every save. Saving a token that has since been deleted returns
	// ErrNotFound rather than recreating it.
	Save(ctx context.Context, tk *EnvoyToken) (*EnvoyToken, error)
	FindByToken(ctx context.Context, value string) (*EnvoyToken, error)
	FindByIDAndTenantID(ctx context.Context, id, tenantID string) (*EnvoyToken, error)
	FindByTenantID(ctx context.Context, tenantID string, page PageRequest) (*Page, error)
	FindAllByTenantID(ctx context.Context, tenantID string) ([]*EnvoyToken, error)
	Delete(ctx context.Context, tk *EnvoyToken) error
	DeleteAllByTenantID(ctx context.Context, tenantID string) error
	Ping(ctx context.Context) error
	Close() error
}
