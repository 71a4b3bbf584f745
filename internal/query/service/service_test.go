package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"parishnet/internal/aggregation"
	consent "parishnet/internal/consent/models"
	consentstore "parishnet/internal/consent/store"
	hierarchy "parishnet/internal/hierarchy/models"
	hierarchystore "parishnet/internal/hierarchy/store"
	"parishnet/internal/query/metrics"
	"parishnet/internal/query/models"
	dErrors "parishnet/pkg/domain-errors"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

type QueryServiceSuite struct {
	suite.Suite
	ctx      context.Context
	entities *hierarchystore.InMemory
	consents *consentstore.InMemory
	metrics  *metrics.Metrics
	service  *Service
}

func TestQueryServiceSuite(t *testing.T) {
	suite.Run(t, new(QueryServiceSuite))
}

// SetupTest builds:
//
//	campaign g ← region y ← community x ← a (20, all), b (30, none)
//	           ← region z ← community w (no members)
//	                        community v ← c (15, community only)
func (s *QueryServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.entities = hierarchystore.NewInMemory()
	s.consents = consentstore.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.entities, s.consents, WithMetrics(s.metrics))

	s.put(hierarchy.NewCampaign("g", "Global", t0))
	s.put(hierarchy.NewRegion("y", "g", "Y", t0))
	s.put(hierarchy.NewRegion("z", "g", "Z", t0))
	s.put(hierarchy.NewCommunity("x", "y", "X", t0))
	s.put(hierarchy.NewCommunity("w", "z", "W", t0))
	s.put(hierarchy.NewCommunity("v", "y", "V", t0))
	s.member("a", "x", 20, consent.All)
	s.member("b", "x", 30, consent.None)
	s.member("c", "v", 15, consent.Flags{ShareToCommunity: true})

	engine := aggregation.New(s.entities, s.consents)
	for _, key := range []string{"a", "c"} {
		s.Require().NoError(engine.OnChildChanged(s.ctx, hierarchy.KindIndividual, key))
	}
	_, err := engine.Rebuild(s.ctx, hierarchy.KindCampaign, "g")
	s.Require().NoError(err)
}

func (s *QueryServiceSuite) put(e *hierarchy.Entity, err error) {
	s.Require().NoError(err)
	s.Require().NoError(s.entities.Put(s.ctx, e))
}

func (s *QueryServiceSuite) member(key, community string, minutes int64, flags consent.Flags) {
	s.put(hierarchy.NewIndividual(key, community, key, map[string]int64{"practice_minutes": minutes}, []string{"rosary"}, t0))
	_, err := s.consents.Set(s.ctx, key, flags)
	s.Require().NoError(err)
}

func (s *QueryServiceSuite) query(role models.Role, scope string, kind hierarchy.Kind, key string) (*models.Result, error) {
	return s.service.Query(s.ctx, models.Caller{Role: role, ScopeKey: scope}, kind, key)
}

func (s *QueryServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
}

func (s *QueryServiceSuite) TestIndividual() {
	s.Run("self yields full detail", func() {
		res, err := s.query(models.RoleIndividual, "b", hierarchy.KindIndividual, "b")
		s.Require().NoError(err)
		s.Require().NotNil(res.Detail)
		s.Nil(res.Aggregate)
		s.Equal("x", res.Detail.CommunityKey)
		s.Equal(int64(30), res.Detail.Fields["practice_minutes"])
		s.Equal(consent.None, res.Detail.Consent)
	})

	s.Run("another individual is denied", func() {
		_, err := s.query(models.RoleIndividual, "a", hierarchy.KindIndividual, "b")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})

	s.Run("another unknown individual is still denied", func() {
		_, err := s.query(models.RoleIndividual, "a", hierarchy.KindIndividual, "ghost")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})

	s.Run("own community aggregate", func() {
		res, err := s.query(models.RoleIndividual, "b", hierarchy.KindCommunity, "x")
		s.Require().NoError(err)
		s.Require().NotNil(res.Aggregate)
		s.Equal(int64(1), res.Aggregate.Count)
		s.Require().NotNil(res.Aggregate.Fields["practice_minutes"].Average)
		s.InDelta(20.0, *res.Aggregate.Fields["practice_minutes"].Average, 1e-9)
		s.Empty(res.Aggregate.Children)
	})

	s.Run("another community is denied", func() {
		_, err := s.query(models.RoleIndividual, "a", hierarchy.KindCommunity, "v")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})

	s.Run("region is two levels up", func() {
		_, err := s.query(models.RoleIndividual, "a", hierarchy.KindRegion, "y")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})

	s.Run("unknown caller", func() {
		_, err := s.query(models.RoleIndividual, "ghost", hierarchy.KindIndividual, "ghost")
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *QueryServiceSuite) TestCommunityCoordinator() {
	s.Run("own community", func() {
		res, err := s.query(models.RoleCommunityCoordinator, "x", hierarchy.KindCommunity, "x")
		s.Require().NoError(err)
		s.False(res.Aggregate.NoData)
		s.Equal([]string{"rosary"}, res.Aggregate.Tags)
	})

	s.Run("parent region", func() {
		res, err := s.query(models.RoleCommunityCoordinator, "x", hierarchy.KindRegion, "y")
		s.Require().NoError(err)
		s.Equal(int64(1), res.Aggregate.Count)
		s.Empty(res.Aggregate.Children)
	})

	s.Run("sibling region", func() {
		_, err := s.query(models.RoleCommunityCoordinator, "x", hierarchy.KindRegion, "z")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})

	s.Run("members are never visible", func() {
		_, err := s.query(models.RoleCommunityCoordinator, "x", hierarchy.KindIndividual, "a")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})
}

func (s *QueryServiceSuite) TestRegionalLeader() {
	s.Run("individuals always denied", func() {
		for _, key := range []string{"a", "b", "c", "ghost"} {
			_, err := s.query(models.RoleRegionalLeader, "y", hierarchy.KindIndividual, key)
			s.requireCode(err, dErrors.CodePermissionDenied)
		}
	})

	s.Run("own region with children", func() {
		res, err := s.query(models.RoleRegionalLeader, "y", hierarchy.KindRegion, "y")
		s.Require().NoError(err)
		s.Equal(int64(1), res.Aggregate.Count)
		s.Require().Len(res.Aggregate.Children, 2)
		s.Equal("v", res.Aggregate.Children[0].Key)
		s.Equal(int64(1), res.Aggregate.Children[0].Count)
		s.Equal("x", res.Aggregate.Children[1].Key)
		s.Empty(res.Aggregate.Children[1].Children)
	})

	s.Run("child community", func() {
		res, err := s.query(models.RoleRegionalLeader, "y", hierarchy.KindCommunity, "v")
		s.Require().NoError(err)
		s.Equal(hierarchy.KindCommunity, res.Aggregate.Kind)
	})

	s.Run("community of a sibling region", func() {
		_, err := s.query(models.RoleRegionalLeader, "y", hierarchy.KindCommunity, "w")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})

	s.Run("sibling region", func() {
		_, err := s.query(models.RoleRegionalLeader, "y", hierarchy.KindRegion, "z")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})

	s.Run("parent campaign", func() {
		res, err := s.query(models.RoleRegionalLeader, "y", hierarchy.KindCampaign, "g")
		s.Require().NoError(err)
		s.Empty(res.Aggregate.Children)
	})

	s.Run("unknown and foreign communities look the same", func() {
		_, missing := s.query(models.RoleRegionalLeader, "y", hierarchy.KindCommunity, "ghost")
		s.requireCode(missing, dErrors.CodePermissionDenied)

		_, foreign := s.query(models.RoleRegionalLeader, "y", hierarchy.KindCommunity, "w")
		s.requireCode(foreign, dErrors.CodePermissionDenied)
		s.Equal(missing.Error(), foreign.Error())
	})
}

func (s *QueryServiceSuite) TestGlobalCoordinator() {
	s.Run("unknown region is denied", func() {
		_, err := s.query(models.RoleGlobalCoordinator, "g", hierarchy.KindRegion, "ghost")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})

	s.Run("campaign with region children", func() {
		res, err := s.query(models.RoleGlobalCoordinator, "g", hierarchy.KindCampaign, "g")
		s.Require().NoError(err)
		s.Equal(int64(1), res.Aggregate.Count)
		s.Equal(int64(1), res.Aggregate.Contributors)
		s.Require().Len(res.Aggregate.Children, 2)
		for _, child := range res.Aggregate.Children {
			s.Equal(hierarchy.KindRegion, child.Kind)
			s.Empty(child.Children)
		}
	})

	s.Run("communities are two levels down", func() {
		_, err := s.query(models.RoleGlobalCoordinator, "g", hierarchy.KindCommunity, "x")
		s.requireCode(err, dErrors.CodePermissionDenied)
	})
}

// TestNoDataIsDistinctFromDenied checks that an empty aggregate is a result,
// not an error.
func (s *QueryServiceSuite) TestNoDataIsDistinctFromDenied() {
	res, err := s.query(models.RoleCommunityCoordinator, "w", hierarchy.KindCommunity, "w")
	s.Require().NoError(err)
	s.Require().NotNil(res.Aggregate)
	s.True(res.Aggregate.NoData)
	s.Zero(res.Aggregate.Count)
	s.Empty(res.Aggregate.Fields)

	region, err := s.query(models.RoleCommunityCoordinator, "w", hierarchy.KindRegion, "z")
	s.Require().NoError(err)
	s.True(region.Aggregate.NoData)

	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Queries.WithLabelValues("community_coordinator", "community", "no_data"))+
		testutil.ToFloat64(s.metrics.Queries.WithLabelValues("community_coordinator", "region", "no_data")))
}

func (s *QueryServiceSuite) TestInvalidInput() {
	cases := []struct {
		name   string
		caller models.Caller
		kind   hierarchy.Kind
		key    string
	}{
		{"unknown role", models.Caller{Role: "pastor", ScopeKey: "x"}, hierarchy.KindCommunity, "x"},
		{"unknown kind", models.Caller{Role: models.RoleCommunityCoordinator, ScopeKey: "x"}, "parish", "x"},
		{"empty scope", models.Caller{Role: models.RoleCommunityCoordinator}, hierarchy.KindCommunity, "x"},
		{"bad target key", models.Caller{Role: models.RoleCommunityCoordinator, ScopeKey: "x"}, hierarchy.KindCommunity, "x/../y"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Query(s.ctx, tc.caller, tc.kind, tc.key)
			s.requireCode(err, dErrors.CodeInvalidInput)
		})
	}
}

type failingReader struct {
	EntityReader
}

func (failingReader) Get(context.Context, hierarchy.Kind, string) (*hierarchy.Entity, error) {
	return nil, errors.New("connection reset")
}

func (s *QueryServiceSuite) TestStorageErrorsAreTranslated() {
	svc := New(failingReader{}, s.consents)
	_, err := svc.Query(s.ctx, models.Caller{Role: models.RoleCommunityCoordinator, ScopeKey: "x"}, hierarchy.KindCommunity, "x")
	s.requireCode(err, dErrors.CodeInternal)
	s.NotContains(err.Error(), "sql")
}
