package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-ledger/pkg/contentledger"
	"github.com/tendant/content-ledger/pkg/contentledger/repo/memory"
	repopg "github.com/tendant/content-ledger/pkg/contentledger/repo/postgres"
	reposqlite "github.com/tendant/content-ledger/pkg/contentledger/repo/sqlite"
	fsstorage "github.com/tendant/content-ledger/pkg/contentledger/storage/fs"
	memorystorage "github.com/tendant/content-ledger/pkg/contentledger/storage/memory"
	s3storage "github.com/tendant/content-ledger/pkg/contentledger/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "ledger",
		Snapshot: SnapshotConfig{
			Type:   "memory",
			Prefix: "snapshots/",
			Config: map[string]interface{}{},
		},
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the content ledger service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres schema to use (default: ledger)
	SQLitePath   string // SQLite file, or ":memory:"
	AutoMigrate  bool   // Apply the Postgres schema on startup

	// Snapshot storage
	Snapshot SnapshotConfig

	// JWTSecret signs and verifies caller tokens for the HTTP API (HS256)
	JWTSecret string

	EnableEventLogging bool
}

// SnapshotConfig selects the blob store snapshots are exported to
type SnapshotConfig struct {
	Type   string // "memory", "fs", "s3"
	Prefix string
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("sqlite path is required when using sqlite")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	switch c.Snapshot.Type {
	case "memory":
	case "fs":
		if getString(c.Snapshot.Config, "base_dir", "") == "" {
			return errors.New("snapshot base_dir is required for fs storage")
		}
	case "s3":
		if getString(c.Snapshot.Config, "bucket", "") == "" {
			return errors.New("snapshot bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported snapshot storage type: %s", c.Snapshot.Type)
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("jwt secret is required in production")
	}

	return nil
}

// BuildRepository creates the journal described by the configuration.
// The returned function releases its connections.
func (c *ServerConfig) BuildRepository(ctx context.Context) (contentledger.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		pool, err := c.newPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool, c.DBSchema); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repopg.NewWithPool(pool), pool.Close, nil
	case "sqlite":
		repo, err := reposqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) newPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the configured search_path.
func (c *ServerConfig) PingPostgres(ctx context.Context) error {
	pool, err := c.newPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// BuildService rebuilds a ledger over the configured repository.
// Extra options are applied after the configured ones.
func (c *ServerConfig) BuildService(ctx context.Context, extra ...contentledger.Option) (contentledger.Service, func(), error) {
	repo, closeRepo, err := c.BuildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	options := []contentledger.Option{contentledger.WithRepository(repo)}
	if c.EnableEventLogging {
		options = append(options, contentledger.WithEventSink(contentledger.NewLoggingEventSink(slog.Default())))
	}
	options = append(options, extra...)

	svc, err := contentledger.New(ctx, options...)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}
	return svc, closeRepo, nil
}

// BuildSnapshotStore creates the blob store snapshots are written to
func (c *ServerConfig) BuildSnapshotStore() (contentledger.BlobStore, error) {
	cfg := c.Snapshot.Config
	switch c.Snapshot.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(cfg, "base_dir", "./data/snapshots"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(cfg, "region", "us-east-1"),
			Bucket:                 getString(cfg, "bucket", ""),
			AccessKeyID:            getString(cfg, "access_key_id", ""),
			SecretAccessKey:        getString(cfg, "secret_access_key", ""),
			Endpoint:               getString(cfg, "endpoint", ""),
			UsePathStyle:           getBool(cfg, "use_path_style", false),
			EnableSSE:              getBool(cfg, "enable_sse", false),
			SSEAlgorithm:           getString(cfg, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(cfg, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(cfg, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported snapshot storage type: %s", c.Snapshot.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if b, err := parseBool(v); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
