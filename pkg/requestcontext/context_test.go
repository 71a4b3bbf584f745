package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults when unset", func(t *testing.T) {
		assert.Empty(t, RequestID(ctx))
		assert.Empty(t, Actor(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("round trips injected values", func(t *testing.T) {
		fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		ctx := WithTime(WithActor(WithRequestID(ctx, "req-1"), "community-x"), fixed)
		assert.Equal(t, "req-1", RequestID(ctx))
		assert.Equal(t, "community-x", Actor(ctx))
		assert.Equal(t, fixed, Now(ctx))
	})
}
