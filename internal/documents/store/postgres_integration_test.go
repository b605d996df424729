//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"healthpass/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	pgStore := NewPostgresStore(pg.Pool)
	if err := pgStore.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	suite.Run(t, &StoreSuite{newStore: func() Store {
		if err := pg.Truncate(context.Background(), "document_payloads"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return pgStore
	}})
}
