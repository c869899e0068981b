package config

import "fmt"

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the journal backend. For sqlite, url is the file path.
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
			c.DatabaseURL = ""
		case "postgres":
			if url == "" {
				return fmt.Errorf("database URL is required for postgres")
			}
			c.DatabaseURL = url
		case "sqlite":
			if url == "" {
				return fmt.Errorf("sqlite path is required")
			}
			c.SQLitePath = url
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'sqlite', got: %s", dbType)
		}
		c.DatabaseType = dbType
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate applies the Postgres schema when the repository is built
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithFilesystemSnapshots stores snapshots under baseDir
func WithFilesystemSnapshots(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Snapshot.Type = "fs"
		c.Snapshot.Config = map[string]interface{}{"base_dir": baseDir}
		return nil
	}
}

// WithS3Snapshots stores snapshots in an S3 bucket
func WithS3Snapshots(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Snapshot.Type = "s3"
		c.Snapshot.Config = map[string]interface{}{
			"bucket": bucket,
			"region": region,
		}
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if c.Snapshot.Type != "s3" {
			return fmt.Errorf("S3 endpoint requires S3 snapshot storage, got: %s", c.Snapshot.Type)
		}
		c.Snapshot.Config["endpoint"] = endpoint
		c.Snapshot.Config["use_path_style"] = usePathStyle
		return nil
	}
}

// WithSnapshotPrefix sets the key prefix snapshots are written under
func WithSnapshotPrefix(prefix string) Option {
	return func(c *ServerConfig) error {
		c.Snapshot.Prefix = prefix
		return nil
	}
}

// WithJWTSecret sets the HS256 secret for caller tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithEventLogging toggles the structured event log
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
