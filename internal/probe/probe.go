// Package probe checks whether configured databases are reachable from this
// machine, without going through the backend.
package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/querydesk/querydesk-cli/internal/model"
)

var ErrUnsupported = errors.New("probe not supported for database type")

const DefaultTimeout = 5 * time.Second

// Status is the reachability of one database.
type Status struct {
	DB        model.DatabaseConfig
	Connected bool
	Latency   time.Duration
	Error     string
}

// Label is the status word shown next to a database.
func (s Status) Label() string {
	if s.Connected {
		return "connected"
	}
	return "disconnected"
}

// Checker pings databases. Zero value is usable.
type Checker struct {
	Timeout     time.Duration
	Concurrency int

	// ping is replaced in tests.
	ping func(ctx context.Context, cfg model.DatabaseConfig) error
}

func (c *Checker) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Check opens a connection to cfg and pings it.
func (c *Checker) Check(ctx context.Context, cfg model.DatabaseConfig) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	ping := c.ping
	if ping == nil {
		ping = Ping
	}

	start := time.Now()
	err := ping(ctx, cfg)
	st := Status{DB: cfg, Latency: time.Since(start)}
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Connected = true
	return st
}

// CheckAll checks every config. The result is in input order and one
// failure does not affect the others.
func (c *Checker) CheckAll(ctx context.Context, dbs []model.DatabaseConfig) []Status {
	out := make([]Status, len(dbs))
	limit := c.Concurrency
	if limit <= 0 {
		limit = 4
	}

	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, cfg := range dbs {
		g.Go(func() error {
			out[i] = c.Check(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Ping connects to cfg with the engine's native driver.
func Ping(ctx context.Context, cfg model.DatabaseConfig) error {
	if cfg.Engine() == model.EngineMongo {
		return pingMongo(ctx, cfg)
	}

	driver, dsn, err := dsnFor(cfg)
	if err != nil {
		return err
	}
	if driver == "sqlite" {
		// Opening a missing file would create it.
		if _, err := os.Stat(dsn); err != nil {
			return err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", driver, err)
	}
	defer db.Close()
	return db.PingContext(ctx)
}

func pingMongo(ctx context.Context, cfg model.DatabaseConfig) error {
	opts := options.Client().ApplyURI(MongoURI(cfg))
	if dl, ok := ctx.Deadline(); ok {
		opts.SetServerSelectionTimeout(time.Until(dl))
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	return client.Ping(ctx, readpref.Primary())
}
