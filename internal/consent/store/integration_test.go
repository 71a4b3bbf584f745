//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"parishnet/pkg/testutil/containers"
)

func TestPostgresRegistry(t *testing.T) {
	pg := containers.Postgres(t)
	suite.Run(t, &RegistrySuite{newRegistry: func(t *testing.T) registry {
		require.NoError(t, pg.Truncate(context.Background()))
		return NewPostgres(pg.DB)
	}})
}

func TestRedisContainerRegistry(t *testing.T) {
	rc := containers.Redis(t)
	suite.Run(t, &RegistrySuite{newRegistry: func(t *testing.T) registry {
		require.NoError(t, rc.FlushAll(context.Background()))
		return NewRedis(rc.Client)
	}})
}
