package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//	JWT_SECRET - HS256 secret for caller tokens
//	EVENT_LOGGING - Log every ledger event (default: true)
//
// Database:
//
//	DATABASE_URL - one of:
//	               "memory" or empty - in-memory journal (lost on restart)
//	               "postgres://..." or "postgresql://..." - Postgres journal
//	               "sqlite:///path/to/ledger.db" or "sqlite://:memory:" - embedded SQLite journal
//	DB_SCHEMA - Postgres schema (default: "ledger")
//	DB_AUTO_MIGRATE - Apply the Postgres schema on startup
//
// Snapshots:
//
//	SNAPSHOT_URL - one of:
//	               "memory://" (default)
//	               "file:///path/to/snapshots"
//	               "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//	SNAPSHOT_PREFIX - key prefix (default: "snapshots/")
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "JWT_SECRET"); ok {
			c.JWTSecret = v
		}
		if v, ok, err := parseBoolEnv(prefix, "EVENT_LOGGING"); err != nil {
			return err
		} else if ok {
			c.EnableEventLogging = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}

		return applySnapshotEnv(prefix, c)
	}
}

func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok && v != "" {
		c.DBSchema = v
	}
	if v, ok, err := parseBoolEnv(prefix, "DB_AUTO_MIGRATE"); err != nil {
		return err
	} else if ok {
		c.AutoMigrate = v
	}

	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")
	switch {
	case !hasURL || dbURL == "" || dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = "sqlite"
		c.SQLitePath = path
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'sqlite://...')", dbURL)
	}
	return nil
}

func applySnapshotEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "SNAPSHOT_PREFIX"); ok && v != "" {
		c.Snapshot.Prefix = v
	}

	raw, ok := lookupEnv(prefix, "SNAPSHOT_URL")
	if !ok || raw == "" || raw == "memory" || raw == "memory://" {
		c.Snapshot.Type = "memory"
		c.Snapshot.Config = map[string]interface{}{}
		return nil
	}

	switch {
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in SNAPSHOT_URL")
		}
		c.Snapshot.Type = "fs"
		c.Snapshot.Config = map[string]interface{}{"base_dir": path}
		return nil

	case strings.HasPrefix(raw, "s3://"):
		return applyS3Snapshot(raw, c)
	}

	return fmt.Errorf("unsupported SNAPSHOT_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

// applyS3Snapshot configures S3 storage from s3://bucket?region=...&endpoint=...&path_style=true
func applyS3Snapshot(raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid SNAPSHOT_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in SNAPSHOT_URL")
	}

	cfg := map[string]interface{}{
		"bucket": u.Host,
		"region": "us-east-1",
	}
	q := u.Query()
	if v := q.Get("region"); v != "" {
		cfg["region"] = v
	}
	if v := q.Get("endpoint"); v != "" {
		cfg["endpoint"] = v
	}
	if v := q.Get("path_style"); v != "" {
		cfg["use_path_style"] = v
	}
	if v := q.Get("create_bucket"); v != "" {
		cfg["create_bucket_if_not_exist"] = v
	}

	// Standard AWS variables are read without the prefix
	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		cfg["access_key_id"] = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		cfg["secret_access_key"] = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" && q.Get("region") == "" {
		cfg["region"] = region
	}

	c.Snapshot.Type = "s3"
	c.Snapshot.Config = cfg
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := parseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseBool(raw string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(raw))
}
