// Package memory is a process-local token store for development setups
// and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fragpit/envoy-auth/internal/model"
)

type Storage struct {
	mu      sync.RWMutex
	byID    map[string]*model.EnvoyToken
	byToken map[string]string
}

var _ model.TokenRepository = (*Storage)(nil)

func New() *Storage {
	return &Storage{
		byID:    make(map[string]*model.EnvoyToken),
		byToken: make(map[string]string),
	}
}

func (s *Storage) Save(
	_ context.Context,
	tk *model.EnvoyToken,
) (*model.EnvoyToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := clone(tk)

	if stored.ID == "" {
		if id, ok := s.byToken[stored.Token]; ok {
			return nil, fmt.Errorf("token value already used by %s", id)
		}
		stored.ID = uuid.NewString()
		stored.CreatedTimestamp = now
	} else {
		prev, ok := s.byID[stored.ID]
		if !ok {
			return nil, model.ErrNotFound
		}
		stored.TenantID = prev.TenantID
		stored.Token = prev.Token
		stored.CreatedTimestamp = prev.CreatedTimestamp
	}
	stored.UpdatedTimestamp = now

	s.byID[stored.ID] = stored
	s.byToken[stored.Token] = stored.ID

	return clone(stored), nil
}

func (s *Storage) FindByToken(
	_ context.Context,
	value string,
) (*model.EnvoyToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[value]
	if !ok {
		return nil, model.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Storage) FindByIDAndTenantID(
	_ context.Context,
	id, tenantID string,
) (*model.EnvoyToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tk, ok := s.byID[id]
	if !ok || tk.TenantID != tenantID {
		return nil, model.ErrNotFound
	}
	return clone(tk), nil
}

func (s *Storage) FindByTenantID(
	ctx context.Context,
	tenantID string,
	page model.PageRequest,
) (*model.Page, error) {
	all, err := s.FindAllByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	page = page.Normalize()
	start := min(page.Offset(), len(all))
	end := min(start+page.Size, len(all))

	return model.NewPage(all[start:end], page, int64(len(all))), nil
}

func (s *Storage) FindAllByTenantID(
	_ context.Context,
	tenantID string,
) ([]*model.EnvoyToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tks []*model.EnvoyToken
	for _, tk := range s.byID {
		if tk.TenantID == tenantID {
			tks = append(tks, clone(tk))
		}
	}

	slices.SortFunc(tks, func(a, b *model.EnvoyToken) int {
		if c := a.CreatedTimestamp.Compare(b.CreatedTimestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return tks, nil
}

func (s *Storage) Delete(_ context.Context, tk *model.EnvoyToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.byID[tk.ID]; ok {
		delete(s.byToken, stored.Token)
		delete(s.byID, tk.ID)
	}
	return nil
}

func (s *Storage) DeleteAllByTenantID(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, tk := range s.byID {
		if tk.TenantID == tenantID {
			delete(s.byToken, tk.Token)
			delete(s.byID, id)
		}
	}
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}

func clone(tk *model.EnvoyToken) *model.EnvoyToken {
	c := *tk
	if tk.LastUsed != nil {
		lu := *tk.LastUsed
		c.LastUsed = &lu
	}
	return &c
}
