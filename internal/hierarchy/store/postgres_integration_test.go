//go:build integration

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"parishnet/internal/hierarchy/models"
	"parishnet/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.Postgres(t)
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) entityStore {
		require.NoError(t, pg.Truncate(context.Background()))
		return NewPostgres(pg.DB)
	}})
}

func TestPostgresLocker(t *testing.T) {
	pg := containers.Postgres(t)
	ctx := context.Background()
	require.NoError(t, pg.Truncate(ctx))

	store := NewPostgres(pg.DB)
	locker := NewPostgresLocker(pg.DB)

	t.Run("serializes callers on one key", func(t *testing.T) {
		var (
			inside  atomic.Int32
			maxSeen atomic.Int32
			wg      sync.WaitGroup
		)
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := locker.RunLocked(ctx, "snapshot:community:c1", func(context.Context) error {
					n := inside.Add(1)
					if n > maxSeen.Load() {
						maxSeen.Store(n)
					}
					time.Sleep(20 * time.Millisecond)
					inside.Add(-1)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen.Load())
	})

	t.Run("callback error rolls back writes", func(t *testing.T) {
		e, err := models.NewCampaign("rolled-back", "Lent", time.Now().UTC())
		require.NoError(t, err)

		boom := errors.New("boom")
		err = locker.RunLocked(ctx, "record:campaign:rolled-back", func(ctx context.Context) error {
			if err := store.Put(ctx, e); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = store.Get(ctx, models.KindCampaign, "rolled-back")
		assert.Error(t, err)
	})

	t.Run("nested calls reuse the transaction", func(t *testing.T) {
		err := locker.RunLocked(ctx, "a", func(ctx context.Context) error {
			return locker.RunLocked(ctx, "b", func(context.Context) error { return nil })
		})
		require.NoError(t, err)
	})
}
