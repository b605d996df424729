//go:build integration

package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"healthpass/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	redis := containers.GetManager().GetRedis(t)
	suite.Run(t, &StoreSuite{newStore: func() Store {
		if err := redis.Flush(context.Background()); err != nil {
			t.Fatalf("flush: %v", err)
		}
		return NewRedisStore(redis.Client)
	}})
}
