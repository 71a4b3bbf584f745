package aggregation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"parishnet/internal/aggregation/metrics"
	consent "parishnet/internal/consent/models"
	consentstore "parishnet/internal/consent/store"
	"parishnet/internal/hierarchy/models"
	hierarchystore "parishnet/internal/hierarchy/store"
	dErrors "parishnet/pkg/domain-errors"
	"parishnet/pkg/requestcontext"
)

var (
	t0            = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	ignoreStamp   = cmpopts.IgnoreFields(models.Aggregate{}, "ComputedAt")
	emptyMapsSame = cmpopts.EquateEmpty()
)

type EngineSuite struct {
	suite.Suite
	ctx      context.Context
	entities *hierarchystore.InMemory
	consents *consentstore.InMemory
	metrics  *metrics.Metrics
	engine   *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), t0)
	s.entities = hierarchystore.NewInMemory()
	s.consents = consentstore.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.engine = New(s.entities, s.consents, WithMetrics(s.metrics))
}

func (s *EngineSuite) put(e *models.Entity, err error) {
	s.Require().NoError(err)
	s.Require().NoError(s.entities.Put(s.ctx, e))
}

func (s *EngineSuite) individual(key, community string, minutes int64, flags consent.Flags) {
	fields := map[string]int64{"practice_minutes": minutes}
	s.put(models.NewIndividual(key, community, key, fields, nil, t0))
	_, err := s.consents.Set(s.ctx, key, flags)
	s.Require().NoError(err)
}

func (s *EngineSuite) snapshot(kind models.Kind, key string) *models.Aggregate {
	e, err := s.entities.Get(s.ctx, kind, key)
	s.Require().NoError(err)
	return e.Snapshot
}

// seedScenario builds campaign G ← region Y ← community X with A (20, all
// consent) and B (30, no community consent).
func (s *EngineSuite) seedScenario() {
	s.put(models.NewCampaign("g", "Global", t0))
	s.put(models.NewRegion("y", "g", "Diocese Y", t0))
	s.put(models.NewCommunity("x", "y", "Parish X", t0))
	s.individual("a", "x", 20, consent.All)
	s.individual("b", "x", 30, consent.Flags{ShareToRegion: true, ShareToGlobal: true})
}

func (s *EngineSuite) TestScenarioExcludesNonConsentingMember() {
	s.seedScenario()

	community, err := s.engine.Recompute(s.ctx, models.KindCommunity, "x")
	s.Require().NoError(err)
	s.Equal(int64(1), community.Count)
	avg, ok := community.Average("practice_minutes")
	s.Require().True(ok)
	s.InDelta(20.0, avg, 1e-9)

	region, err := s.engine.Recompute(s.ctx, models.KindRegion, "y")
	s.Require().NoError(err)
	s.Equal(int64(1), region.Count)
	s.Equal(int64(1), region.Contributors)
	avg, ok = region.Average("practice_minutes")
	s.Require().True(ok)
	s.InDelta(20.0, avg, 1e-9)
}

func (s *EngineSuite) TestOnChildChangedRunsToTheTop() {
	s.seedScenario()

	s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "a"))

	campaign := s.snapshot(models.KindCampaign, "g")
	s.Equal(int64(1), campaign.Count)
	s.Equal(models.FieldStat{Sum: 20, Samples: 1}, campaign.Fields["practice_minutes"])
	s.Equal(float64(3), testutil.ToFloat64(s.metrics.Recomputes.WithLabelValues("community", "ok"))+
		testutil.ToFloat64(s.metrics.Recomputes.WithLabelValues("region", "ok"))+
		testutil.ToFloat64(s.metrics.Recomputes.WithLabelValues("campaign", "ok")))
}

func (s *EngineSuite) TestPrivacyNoContributionWithoutCommunityConsent() {
	s.put(models.NewCampaign("g", "Global", t0))
	s.put(models.NewRegion("y", "g", "", t0))
	s.put(models.NewCommunity("x", "y", "", t0))
	// Opted in upward but not at the first hop.
	s.individual("solo", "x", 45, consent.Flags{ShareToRegion: true, ShareToGlobal: true})

	s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "solo"))

	for _, ref := range []struct {
		kind models.Kind
		key  string
	}{{models.KindCommunity, "x"}, {models.KindRegion, "y"}, {models.KindCampaign, "g"}} {
		snap := s.snapshot(ref.kind, ref.key)
		s.Zero(snap.Count, "%s count", ref.kind)
		s.Zero(snap.Contributors, "%s contributors", ref.kind)
		s.Empty(snap.Fields, "%s fields", ref.kind)
		_, ok := snap.Average("practice_minutes")
		s.False(ok, "%s average must be absent", ref.kind)
	}
}

func (s *EngineSuite) TestHopConsentIsIndependent() {
	s.put(models.NewCampaign("g", "", t0))
	s.put(models.NewRegion("y", "g", "", t0))
	s.put(models.NewCommunity("x", "y", "", t0))

	s.Run("community only stops at the community", func() {
		s.individual("c1", "x", 10, consent.Flags{ShareToCommunity: true})
		s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "c1"))
		s.Equal(int64(1), s.snapshot(models.KindCommunity, "x").Count)
		s.Zero(s.snapshot(models.KindRegion, "y").Count)
		s.Zero(s.snapshot(models.KindCampaign, "g").Count)
	})

	s.Run("region sharer lifts the community but not the region", func() {
		s.individual("c2", "x", 10, consent.Flags{ShareToCommunity: true, ShareToRegion: true})
		s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "c2"))
		s.Equal(int64(1), s.snapshot(models.KindRegion, "y").Count)
		s.Zero(s.snapshot(models.KindCampaign, "g").Count)
	})
}

func (s *EngineSuite) TestConsentRoundTripRestoresSnapshot() {
	s.seedScenario()
	s.individual("c", "x", 55, consent.All)
	s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "a"))
	before := s.snapshot(models.KindCampaign, "g").Clone()

	_, err := s.consents.Set(s.ctx, "c", consent.None)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "c"))
	s.Equal(before.Contributors-1, s.snapshot(models.KindCampaign, "g").Contributors)

	_, err = s.consents.Set(s.ctx, "c", consent.All)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "c"))

	if diff := cmp.Diff(before, s.snapshot(models.KindCampaign, "g"), ignoreStamp, emptyMapsSame); diff != "" {
		s.Failf("snapshot changed after consent round trip", "(-before +after):\n%s", diff)
	}
}

func (s *EngineSuite) TestLastMemberRemoved() {
	s.seedScenario()
	s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "a"))
	s.Require().Equal(int64(1), s.snapshot(models.KindCommunity, "x").Count)

	s.Require().NoError(s.entities.Delete(s.ctx, models.KindIndividual, "a"))
	s.Require().NoError(s.engine.OnChildRemoved(s.ctx, models.KindIndividual, "x"))

	community := s.snapshot(models.KindCommunity, "x")
	s.Zero(community.Count)
	s.Empty(community.Fields)
	_, ok := community.Average("practice_minutes")
	s.False(ok)
	s.Zero(s.snapshot(models.KindRegion, "y").Count)
	s.Zero(s.snapshot(models.KindCampaign, "g").Count)
}

func (s *EngineSuite) TestRecomputeErrors() {
	s.Run("individuals have no snapshot", func() {
		_, err := s.engine.Recompute(s.ctx, models.KindIndividual, "a")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown kind", func() {
		_, err := s.engine.Recompute(s.ctx, models.Kind("diocese"), "a")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown entity", func() {
		_, err := s.engine.Recompute(s.ctx, models.KindCommunity, "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Recomputes.WithLabelValues("community", "error")))
	})

	s.Run("unknown changed child", func() {
		err := s.engine.OnChildChanged(s.ctx, models.KindIndividual, "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("cancelled context", func() {
		s.put(models.NewCampaign("g2", "", t0))
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		_, err := s.engine.Recompute(ctx, models.KindCampaign, "g2")
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func (s *EngineSuite) TestFieldSumsNeverWrap() {
	s.put(models.NewCampaign("g", "Global", t0))
	s.put(models.NewRegion("y", "g", "", t0))
	for _, key := range []string{"x1", "x2"} {
		c, err := models.NewCommunity(key, "y", "", t0)
		s.Require().NoError(err)
		c.Snapshot.Count = 1
		c.Snapshot.Contributors = 1
		c.Snapshot.RegionSharers = 1
		c.Snapshot.Fields["practice_minutes"] = models.FieldStat{Sum: math.MaxInt64 - 1, Samples: 1}
		s.Require().NoError(s.entities.Put(s.ctx, c))
	}

	_, err := s.engine.Recompute(s.ctx, models.KindRegion, "y")
	s.True(dErrors.HasCode(err, dErrors.CodeInvariant))
	s.True(s.snapshot(models.KindRegion, "y").Empty(), "an overflowing sum must not be stored")

	s.Run("community members", func() {
		members := []*models.Entity{
			{Kind: models.KindIndividual, Key: "a", ParentKey: "x", Fields: map[string]int64{"m": math.MaxInt64}},
			{Kind: models.KindIndividual, Key: "b", ParentKey: "x", Fields: map[string]int64{"m": math.MaxInt64}},
		}
		flags := map[string]consent.Flags{"a": consent.All, "b": consent.All}
		_, err := computeCommunity(members, flags, t0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariant))
	})

	s.Run("largest accepted values sum exactly", func() {
		members := []*models.Entity{
			{Kind: models.KindIndividual, Key: "a", ParentKey: "x", Fields: map[string]int64{"m": models.MaxFieldValue}},
			{Kind: models.KindIndividual, Key: "b", ParentKey: "x", Fields: map[string]int64{"m": models.MaxFieldValue}},
		}
		flags := map[string]consent.Flags{"a": consent.All, "b": consent.All}
		agg, err := computeCommunity(members, flags, t0)
		s.Require().NoError(err)
		s.Equal(models.FieldStat{Sum: 2 * models.MaxFieldValue, Samples: 2}, agg.Fields["m"])
	})
}

func (s *EngineSuite) TestRegionWithoutCampaignStopsPropagation() {
	s.put(models.NewRegion("lone", "", "", t0))
	s.put(models.NewCommunity("x", "lone", "", t0))
	s.individual("a", "x", 5, consent.All)

	s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, "a"))
	s.Equal(int64(1), s.snapshot(models.KindRegion, "lone").Count)
}

func (s *EngineSuite) TestRebuildRepairsDrift() {
	s.seedScenario()
	s.put(models.NewCommunity("x2", "y", "", t0))
	s.individual("d", "x2", 40, consent.All)

	// Snapshots were never computed; rebuild from the campaign repairs all.
	snap, err := s.engine.Rebuild(s.ctx, models.KindCampaign, "g")
	s.Require().NoError(err)
	s.Equal(int64(1), snap.Count)
	s.Equal(int64(2), snap.Contributors)
	avg, ok := snap.Average("practice_minutes")
	s.Require().True(ok)
	s.InDelta(30.0, avg, 1e-9)
	s.Equal(int64(2), s.snapshot(models.KindRegion, "y").Count)

	s.Run("rebuilding a community refreshes its ancestors", func() {
		_, err := s.consents.Set(s.ctx, "d", consent.None)
		s.Require().NoError(err)
		_, err = s.engine.Rebuild(s.ctx, models.KindCommunity, "x2")
		s.Require().NoError(err)
		s.Equal(int64(1), s.snapshot(models.KindRegion, "y").Count)
		s.Equal(int64(1), s.snapshot(models.KindCampaign, "g").Contributors)
	})
}

// TestSnapshotsMatchFromScratch applies a random sequence of field updates and
// consent toggles and checks every stored snapshot against a full recompute.
func (s *EngineSuite) TestSnapshotsMatchFromScratch() {
	rng := rand.New(rand.NewPCG(7, 11))
	s.put(models.NewCampaign("g", "", t0))
	communities := map[string][]string{}
	for r := range 2 {
		region := fmt.Sprintf("r%d", r)
		s.put(models.NewRegion(region, "g", "", t0))
		for c := range 3 {
			community := fmt.Sprintf("%s-c%d", region, c)
			s.put(models.NewCommunity(community, region, "", t0))
			for i := range 4 {
				key := fmt.Sprintf("%s-i%d", community, i)
				s.individual(key, community, rng.Int64N(60), consent.None)
				communities[community] = append(communities[community], key)
			}
		}
	}
	var all []string
	for _, members := range communities {
		all = append(all, members...)
	}

	for step := range 200 {
		key := all[rng.IntN(len(all))]
		ind, err := s.entities.Get(s.ctx, models.KindIndividual, key)
		s.Require().NoError(err)
		switch rng.IntN(3) {
		case 0:
			s.Require().NoError(ind.SetField("practice_minutes", rng.Int64N(120), t0))
			s.Require().NoError(s.entities.Put(s.ctx, ind))
		case 1:
			s.Require().NoError(ind.SetTags([]string{fmt.Sprintf("tag%d", rng.IntN(4))}, t0))
			s.Require().NoError(s.entities.Put(s.ctx, ind))
		default:
			_, err := s.consents.Set(s.ctx, key, consent.Flags{
				ShareToCommunity: rng.IntN(2) == 0,
				ShareToRegion:    rng.IntN(2) == 0,
				ShareToGlobal:    rng.IntN(2) == 0,
			})
			s.Require().NoError(err)
		}
		s.Require().NoError(s.engine.OnChildChanged(s.ctx, models.KindIndividual, key), "step %d", step)
	}

	for community, members := range communities {
		entities, err := s.entities.GetMany(s.ctx, models.KindIndividual, members)
		s.Require().NoError(err)
		flags, err := s.consents.GetMany(s.ctx, members)
		s.Require().NoError(err)
		want, err := computeCommunity(entities, flags, t0)
		s.Require().NoError(err)
		if diff := cmp.Diff(want, s.snapshot(models.KindCommunity, community), ignoreStamp, emptyMapsSame); diff != "" {
			s.Failf("community drifted", "%s (-want +got):\n%s", community, diff)
		}
	}
	for _, region := range []string{"r0", "r1"} {
		keys, err := s.entities.ListChildren(s.ctx, models.KindRegion, region)
		s.Require().NoError(err)
		children, err := s.entities.GetMany(s.ctx, models.KindCommunity, keys)
		s.Require().NoError(err)
		want, err := mergeChildren(models.KindCommunity, children, t0)
		s.Require().NoError(err)
		if diff := cmp.Diff(want, s.snapshot(models.KindRegion, region), ignoreStamp, emptyMapsSame); diff != "" {
			s.Failf("region drifted", "%s (-want +got):\n%s", region, diff)
		}
	}
}

func TestConcurrentPropagation(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	entities := hierarchystore.NewInMemory()
	consents := consentstore.NewInMemory()
	engine := New(entities, consents)

	mustPut := func(e *models.Entity, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		if err := entities.Put(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	mustPut(models.NewCampaign("g", "", t0))
	mustPut(models.NewRegion("y", "g", "", t0))
	mustPut(models.NewCommunity("x", "y", "", t0))

	const members = 32
	for i := range members {
		key := fmt.Sprintf("m%02d", i)
		mustPut(models.NewIndividual(key, "x", "", map[string]int64{"hours": int64(i)}, nil, t0))
		if _, err := consents.Set(ctx, key, consent.All); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, members)
	for i := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- engine.OnChildChanged(ctx, models.KindIndividual, fmt.Sprintf("m%02d", i))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("propagation failed: %v", err)
		}
	}

	g, err := entities.Get(ctx, models.KindCampaign, "g")
	if err != nil {
		t.Fatal(err)
	}
	want := models.FieldStat{Sum: members * (members - 1) / 2, Samples: members}
	if diff := cmp.Diff(want, g.Snapshot.Fields["hours"]); diff != "" {
		t.Fatalf("campaign hours (-want +got):\n%s", diff)
	}
	if g.Snapshot.Contributors != members {
		t.Fatalf("contributors = %d, want %d", g.Snapshot.Contributors, members)
	}
}

func TestQualifies(t *testing.T) {
	withSharers := func(region, global int64) *models.Aggregate {
		a := models.NewAggregate(t0)
		a.Count = 1
		a.RegionSharers = region
		a.GlobalSharers = global
		return a
	}
	cases := []struct {
		name  string
		kind  models.Kind
		snap  *models.Aggregate
		flags consent.Flags
		want  bool
	}{
		{"individual sharing", models.KindIndividual, nil, consent.Flags{ShareToCommunity: true}, true},
		{"individual region-only", models.KindIndividual, nil, consent.Flags{ShareToRegion: true}, false},
		{"empty community", models.KindCommunity, models.NewAggregate(t0), consent.None, false},
		{"community without region sharer", models.KindCommunity, withSharers(0, 1), consent.None, false},
		{"community with region sharer", models.KindCommunity, withSharers(1, 0), consent.None, true},
		{"region without global sharer", models.KindRegion, withSharers(1, 0), consent.None, false},
		{"region with global sharer", models.KindRegion, withSharers(0, 1), consent.None, true},
		{"nil snapshot", models.KindRegion, nil, consent.None, false},
		{"campaign never qualifies", models.KindCampaign, withSharers(1, 1), consent.All, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Qualifies(tc.kind, tc.snap, tc.flags); got != tc.want {
				t.Fatalf("Qualifies = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShardedLockerTimeout(t *testing.T) {
	l := NewShardedLocker(20 * time.Millisecond)
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = l.RunLocked(context.Background(), "k", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	time.AfterFunc(60*time.Millisecond, func() { close(release) })

	// The mutex is not interruptible; the deadline is checked once it is held.
	err := l.RunLocked(context.Background(), "k", func(context.Context) error { return nil })
	if !dErrors.HasCode(err, dErrors.CodeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
