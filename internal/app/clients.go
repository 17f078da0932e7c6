package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/db"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/gcp"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/neo4jdb"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/openai"
	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime/bus"
	"github.com/F-O-T/contentagen-nx-sub000/internal/temporalx"
)

// Clients are the external connections. Optional ones are nil when their
// address is not configured.
type Clients struct {
	DB       *db.PostgresService
	Redis    *goredis.Client
	Neo4j    *neo4jdb.Client
	Sources  gcp.SourceReader
	OpenAI   openai.Client
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Database
	var err error
	if cfg.Queue.Backend == BackendMemory && strings.TrimSpace(cfg.Postgres.SQLitePath) != "" {
		c.DB, err = db.NewSQLiteService(log, cfg.Postgres.SQLitePath)
	} else {
		c.DB, err = db.NewPostgresService(log, cfg.Postgres)
	}
	if err != nil {
		return Clients{}, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(c.DB.DB()); err != nil {
		c.Close(ctx)
		return Clients{}, err
	}

	// Openai
	c.OpenAI, err = openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		c.Close(ctx)
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		c.Redis, err = bus.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			c.Close(ctx)
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
	}

	// Neo4j
	c.Neo4j, err = neo4jdb.New(ctx, log, cfg.Neo4j)
	if err != nil {
		c.Close(ctx)
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}

	// Gcs
	if cfg.Storage.Credentials != "" || cfg.Storage.EmulatorHost != "" || cfg.Storage.Mode != "" {
		c.Sources, err = gcp.NewSourceReader(ctx, log, cfg.Storage)
		if err != nil {
			c.Close(ctx)
			return Clients{}, fmt.Errorf("init source reader: %w", err)
		}
	}

	// Temporal
	if cfg.Queue.Backend == BackendTemporal {
		c.Temporal, err = temporalx.NewClient(ctx, log, cfg.Temporal)
		if err != nil {
			c.Close(ctx)
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
	}

	return c, nil
}

func (c *Clients) Gorm() *gorm.DB {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.DB()
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Sources != nil {
		_ = c.Sources.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
