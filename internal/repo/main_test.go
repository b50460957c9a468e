package repo_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/cmd-f-hackthon/MapMe/internal/repo"
	"github.com/cmd-f-hackthon/MapMe/testutil"
)

// TestMain migrates the Postgres test database, when one is configured, using
// the same repo.Migrate the server runs at startup. Memory backend tests run
// regardless; Postgres and Mongo tests skip themselves without a database.
func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		os.Exit(m.Run())
	}

	pool := testutil.MustOpenPool(dsn)
	if err := repo.Migrate(context.Background(), pool); err != nil {
		pool.Close()
		log.Fatalf("TestMain: %v", err)
	}
	pool.Close()

	os.Exit(m.Run())
}
