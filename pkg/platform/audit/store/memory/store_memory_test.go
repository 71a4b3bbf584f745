package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "parishnet/pkg/platform/audit"
)

func TestListRecentNewestFirst(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, action := range []string{"first", "second", "third"} {
		require.NoError(t, s.Append(ctx, audit.Event{Subject: "x", Action: action, Timestamp: base.Add(time.Duration(i) * time.Minute)}))
	}

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Action)
	assert.Equal(t, "second", recent[1].Action)

	s.Clear()
	all, err := s.ListBySubject(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, all)
}
