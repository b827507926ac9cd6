package tokens

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragpit/envoy-auth/internal/cache"
	"github.com/fragpit/envoy-auth/internal/model"
	"github.com/fragpit/envoy-auth/internal/storage/memory"
)

// countingRepo counts calls through to the memory store.
type countingRepo struct {
	*memory.Storage

	findByToken atomic.Int32
	saves       atomic.Int32
	saveErr     error

	afterFindByToken func()
}

func (r *countingRepo) FindByToken(ctx context.Context, value string) (*model.EnvoyToken, error) {
	r.findByToken.Add(1)
	tk, err := r.Storage.FindByToken(ctx, value)
	if r.afterFindByToken != nil {
		r.afterFindByToken()
	}
	return tk, err
}

func (r *countingRepo) Save(ctx context.Context, tk *model.EnvoyToken) (*model.EnvoyToken, error) {
	r.saves.Add(1)
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	return r.Storage.Save(ctx, tk)
}

func newTestService(t *testing.T) (*Service, *countingRepo) {
	t.Helper()

	repo := &countingRepo{Storage: memory.New()}

	g, err := NewGenerator(rand.Reader, DefaultTokenSize)
	require.NoError(t, err)

	c, err := cache.New[string](cache.TokenValidation, 500, time.Minute)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return NewService(repo, g, c), repo
}

func TestService_AllocateThenGetOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Allocate(ctx, "T1", "rack 12")
	require.NoError(t, err)
	require.NotEmpty(t, tk.ID)

	got, err := svc.GetOne(ctx, "T1", tk.ID)
	require.NoError(t, err)

	assert.Equal(t, "T1", got.TenantID)
	assert.Equal(t, tk.Token, got.Token)
	assert.Equal(t, "rack 12", got.Description)
	assert.False(t, got.CreatedTimestamp.IsZero())
	assert.Nil(t, got.LastUsed)
}

func TestService_AllocateStoreFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.saveErr = errors.New("connection refused")

	_, err := svc.Allocate(context.Background(), "T1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestService_GetOneIsTenantScoped(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Allocate(ctx, "T1", "")
	require.NoError(t, err)

	_, err = svc.GetOne(ctx, "T2", tk.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestService_ValidateUnknownIsNeverCached(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		tenant, ok, err := svc.Validate(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, tenant)
	}

	assert.Equal(t, int32(2), repo.findByToken.Load())
}

func TestService_ValidateKnownIsCached(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Allocate(ctx, "T1", "")
	require.NoError(t, err)
	savesAfterAllocate := repo.saves.Load()

	for i := 0; i < 2; i++ {
		tenant, ok, err := svc.Validate(ctx, tk.Token)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "T1", tenant)
	}

	assert.Equal(t, int32(1), repo.findByToken.Load())
	assert.Equal(t, savesAfterAllocate+1, repo.saves.Load())

	got, err := svc.GetOne(ctx, "T1", tk.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastUsed)
}

func TestService_DeleteEvictsCache(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Allocate(ctx, "T1", "")
	require.NoError(t, err)

	tenant, ok, err := svc.Validate(ctx, tk.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T1", tenant)

	tenant, ok, err = svc.Validate(ctx, tk.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T1", tenant)
	assert.Equal(t, int32(1), repo.findByToken.Load())

	require.NoError(t, svc.Delete(ctx, "T1", tk.ID))

	_, ok, err = svc.Validate(ctx, tk.Token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(2), repo.findByToken.Load())
}

func TestService_DeleteOtherTenantNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Allocate(ctx, "T1", "")
	require.NoError(t, err)

	err = svc.Delete(ctx, "T2", tk.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, ok, err := svc.Validate(ctx, tk.Token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_UpdateDescription(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Allocate(ctx, "T1", "old")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "T1", tk.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Description)
	assert.Equal(t, tk.Token, updated.Token)
	assert.Equal(t, tk.CreatedTimestamp, updated.CreatedTimestamp)

	got, err := svc.GetOne(ctx, "T1", tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Description)
}

func TestService_UpdateDuringValidateIsKept(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Allocate(ctx, "T1", "old")
	require.NoError(t, err)

	updateDone := make(chan error, 1)
	repo.afterFindByToken = func() {
		repo.afterFindByToken = nil
		go func() {
			_, err := svc.Update(ctx, "T1", tk.ID, "new")
			updateDone <- err
		}()
		select {
		case err := <-updateDone:
			updateDone <- err
		case <-time.After(50 * time.Millisecond):
		}
	}

	_, ok, err := svc.Validate(ctx, tk.Token)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, <-updateDone)

	got, err := svc.GetOne(ctx, "T1", tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Description)
	assert.NotNil(t, got.LastUsed)
}

func TestService_UpdateMissingNeverSaves(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Update(context.Background(), "T1", "missing-id", "desc")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, int32(0), repo.saves.Load())
}

func TestService_GetAllPages(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Allocate(ctx, "T1", fmt.Sprintf("token %d", i))
		require.NoError(t, err)
	}
	_, err := svc.Allocate(ctx, "T2", "other tenant")
	require.NoError(t, err)

	page, err := svc.GetAll(ctx, "T1", model.PageRequest{Number: 1, Size: 2})
	require.NoError(t, err)

	assert.Len(t, page.Content, 2)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	assert.False(t, page.First)
	assert.False(t, page.Last)
	for _, tk := range page.Content {
		assert.Equal(t, "T1", tk.TenantID)
	}
}

func TestService_DeleteAllForTenant(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	var values []string
	for i := 0; i < 3; i++ {
		tk, err := svc.Allocate(ctx, "T1", "")
		require.NoError(t, err)
		values = append(values, tk.Token)

		_, ok, err := svc.Validate(ctx, tk.Token)
		require.NoError(t, err)
		require.True(t, ok)
	}

	other, err := svc.Allocate(ctx, "T2", "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAllForTenant(ctx, "T1"))

	lookups := repo.findByToken.Load()
	for _, v := range values {
		_, ok, err := svc.Validate(ctx, v)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, lookups+int32(len(values)), repo.findByToken.Load())

	_, ok, err := svc.Validate(ctx, other.Token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_DeleteRacingValidate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		tk, err := svc.Allocate(ctx, "T1", "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		stop := make(chan struct{})
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						_, _, err := svc.Validate(ctx, tk.Token)
						assert.NoError(t, err)
					}
				}
			}()
		}

		require.NoError(t, svc.Delete(ctx, "T1", tk.ID))

		_, ok, err := svc.Validate(ctx, tk.Token)
		require.NoError(t, err)
		assert.False(t, ok, "token validated after delete returned")

		close(stop)
		wg.Wait()
	}
}
