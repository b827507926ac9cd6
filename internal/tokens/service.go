package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/model"
)

// Cache is the token validation cache: token value to tenant id.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, tenantID string)
	Evict(key string)
}

// Service owns the envoy token lifecycle and keeps cached validation
// results consistent with the store.
//
// Writes to the same token value are serialized by tokenLocks. An update
// keeps the lastUsed written by a validation, and once Delete returns no
// validation can repopulate the cache from a store read that happened
// before the delete. Allocations and
// DeleteAllForTenant for the same tenant are serialized by tenantLocks.
type Service struct {
	repo      model.TokenRepository
	generator *Generator
	cache     Cache
	now       func() time.Time

	tokenLocks  stripedLocks
	tenantLocks stripedLocks
}

func NewService(
	repo model.TokenRepository,
	generator *Generator,
	cache Cache,
) *Service {
	return &Service{
		repo:      repo,
		generator: generator,
		cache:     cache,
		now:       time.Now,
	}
}

func (s *Service) Allocate(
	ctx context.Context,
	tenantID, description string,
) (*model.EnvoyToken, error) {
	unlock := s.tenantLocks.rlock(tenantID)
	defer unlock()

	tk := &model.EnvoyToken{
		TenantID:    tenantID,
		Token:       s.generator.Generate(),
		Description: description,
	}

	saved, err := s.repo.Save(ctx, tk)
	if err != nil {
		return nil, fmt.Errorf("error saving token for tenant %s: %w", tenantID, err)
	}

	log.Infof("Allocated envoy token, tenant: %s, id: %s", tenantID, saved.ID)
	return saved, nil
}

// Validate resolves a token value to its tenant. An unknown token is
// reported as ok == false with a nil error and is never cached, so guessing
// tokens cannot grow the cache.
func (s *Service) Validate(
	ctx context.Context,
	value string,
) (tenantID string, ok bool, err error) {
	if tenantID, ok := s.cache.Get(value); ok {
		return tenantID, true, nil
	}

	unlock := s.tokenLocks.lock(value)
	defer unlock()

	tk, err := s.repo.FindByToken(ctx, value)
	if errors.Is(err, model.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error looking up token: %w", err)
	}

	now := s.now()
	tk.LastUsed = &now
	if _, err := s.repo.Save(ctx, tk); err != nil {
		return "", false, fmt.Errorf("error updating last used of token %s: %w", tk.ID, err)
	}

	if ctx.Err() == nil {
		s.cache.Set(value, tk.TenantID)
	}

	return tk.TenantID, true, nil
}

func (s *Service) GetOne(
	ctx context.Context,
	tenantID, tokenID string,
) (*model.EnvoyToken, error) {
	tk, err := s.repo.FindByIDAndTenantID(ctx, tokenID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error getting token %s for tenant %s: %w", tokenID, tenantID, err)
	}
	return tk, nil
}

func (s *Service) GetAll(
	ctx context.Context,
	tenantID string,
	page model.PageRequest,
) (*model.Page, error) {
	p, err := s.repo.FindByTenantID(ctx, tenantID, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("error listing tokens for tenant %s: %w", tenantID, err)
	}
	return p, nil
}

func (s *Service) Update(
	ctx context.Context,
	tenantID, tokenID, description string,
) (*model.EnvoyToken, error) {
	tk, err := s.GetOne(ctx, tenantID, tokenID)
	if err != nil {
		return nil, err
	}

	unlock := s.tokenLocks.lock(tk.Token)
	defer unlock()

	// Reload under the lock so lastUsed written by a validation is kept.
	tk, err = s.GetOne(ctx, tenantID, tokenID)
	if err != nil {
		return nil, err
	}

	tk.Description = description

	saved, err := s.repo.Save(ctx, tk)
	if err != nil {
		return nil, fmt.Errorf("error saving token %s: %w", tokenID, err)
	}

	log.Infof("Updated envoy token, tenant: %s, id: %s", tenantID, tokenID)
	return saved, nil
}

// Delete evicts the cached validation of the token before removing it from
// the store. The cache is keyed by token value, which is only known after
// the token has been loaded.
func (s *Service) Delete(ctx context.Context, tenantID, tokenID string) error {
	tk, err := s.GetOne(ctx, tenantID, tokenID)
	if err != nil {
		return err
	}

	unlock := s.tokenLocks.lock(tk.Token)
	defer unlock()

	s.cache.Evict(tk.Token)

	if err := s.repo.Delete(ctx, tk); err != nil {
		return fmt.Errorf("error deleting token %s: %w", tokenID, err)
	}

	log.Infof("Deleted envoy token, tenant: %s, id: %s", tenantID, tokenID)
	return nil
}

func (s *Service) DeleteAllForTenant(ctx context.Context, tenantID string) error {
	unlockTenant := s.tenantLocks.lock(tenantID)
	defer unlockTenant()

	tks, err := s.repo.FindAllByTenantID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("error listing tokens for tenant %s: %w", tenantID, err)
	}

	values := make([]string, 0, len(tks))
	for _, tk := range tks {
		values = append(values, tk.Token)
	}

	unlock := s.tokenLocks.lockAll(values)
	defer unlock()

	for _, v := range values {
		s.cache.Evict(v)
	}

	if err := s.repo.DeleteAllByTenantID(ctx, tenantID); err != nil {
		return fmt.Errorf("error deleting tokens for tenant %s: %w", tenantID, err)
	}

	log.Infof("Deleted %d envoy tokens, tenant: %s", len(tks), tenantID)
	return nil
}
