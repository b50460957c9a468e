package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/cmd-f-hackthon/MapMe/migrations"
)

// ConnectPostgres returns a Connector that opens a pool for dsn, verifies the
// server is reachable and applies pending migrations.
func ConnectPostgres(dsn string) Connector {
	return func(ctx context.Context) (EntryRepo, func(), error) {
		if dsn == "" {
			return nil, nil, errors.New("repo.ConnectPostgres: DATABASE_URL not set")
		}

		// pgxpool.New does not open connections; Ping does, within ctx.
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("repo.ConnectPostgres: create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("repo.ConnectPostgres: ping: %w", err)
		}
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}

		return NewPostgresEntryRepo(pool), pool.Close, nil
	}
}

// Migrate applies every pending goose migration embedded in migrations.FS.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// goose needs database/sql; the wrapper borrows connections from pool.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("repo.Migrate: create goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("repo.Migrate: run migrations: %w", err)
	}
	return nil
}

// ConnectMongo returns a Connector that connects to uri, pings the primary and
// ensures the entries collection indexes exist in database.
func ConnectMongo(uri, database string) Connector {
	return func(ctx context.Context) (EntryRepo, func(), error) {
		if uri == "" {
			return nil, nil, errors.New("repo.ConnectMongo: MONGODB_URI not set")
		}

		opts := options.Client().ApplyURI(uri)
		if deadline, ok := ctx.Deadline(); ok {
			opts.SetServerSelectionTimeout(time.Until(deadline))
		}

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("repo.ConnectMongo: connect: %w", err)
		}
		disconnect := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			disconnect()
			return nil, nil, fmt.Errorf("repo.ConnectMongo: ping: %w", err)
		}

		coll := client.Database(database).Collection(EntriesCollection)
		if err := EnsureMongoIndexes(ctx, coll); err != nil {
			disconnect()
			return nil, nil, err
		}

		return NewMongoEntryRepo(coll), disconnect, nil
	}
}
