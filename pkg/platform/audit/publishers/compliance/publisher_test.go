package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "parishnet/pkg/platform/audit"
	"parishnet/pkg/platform/audit/store/memory"
	"parishnet/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func TestEmitFillsDefaults(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), at)

	require.NoError(t, pub.Emit(ctx, audit.Event{
		SubjectKind: "individual",
		Subject:     "ann",
		Action:      string(audit.EventConsentChanged),
		Decision:    "community:on",
	}))

	events, err := store.ListBySubject(ctx, "ann")
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, audit.CategoryCompliance, got.Category)
	assert.Equal(t, "req-1", got.RequestID)
	assert.True(t, got.Timestamp.Equal(at))
}

func TestEmitRequiresSubjectAndAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())
	assert.Error(t, pub.Emit(context.Background(), audit.Event{Action: "x"}))
	assert.Error(t, pub.Emit(context.Background(), audit.Event{Subject: "x"}))
}

func TestEmitFailsClosed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	pub := New(failingStore{}, WithMetrics(m))

	err := pub.Emit(context.Background(), audit.Event{Subject: "ann", Action: string(audit.EventIndividualRemoved)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.EventsEmitted))
}
