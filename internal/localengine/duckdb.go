package localengine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/lychee-technology/tablekernel"
)

// DuckDBClient wraps a database/sql DB opened with the DuckDB driver,
// configured for reading Parquet data files over local disk or S3.
type DuckDBClient struct {
	DB *sql.DB
}

// NewDuckDBClient opens an in-memory DuckDB database and loads the parquet
// extension unconditionally plus httpfs/S3 configuration when cfg names an
// S3 endpoint or region.
func NewDuckDBClient(ctx context.Context, cfg tablekernel.StorageConfig) (*DuckDBClient, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)

	SetGlobalDuckDBCircuitBreaker(NewCircuitBreaker(5, 30*time.Second, 30*time.Second))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	if _, err := db.ExecContext(ctx, "INSTALL parquet; LOAD parquet;"); err != nil {
		zap.S().Warnw("localengine: load parquet extension failed", "err", err)
	}

	if cfg.Endpoint != "" || cfg.Region != "" {
		if _, err := db.ExecContext(ctx, "INSTALL httpfs; LOAD httpfs;"); err != nil {
			zap.S().Warnw("localengine: load httpfs extension failed", "err", err)
		}
		if cfg.Region != "" {
			mustPragma(ctx, db, "s3_region", cfg.Region)
		}
		if cfg.Endpoint != "" {
			mustPragma(ctx, db, "s3_endpoint", cfg.Endpoint)
		}
		if cfg.AccessKeyID != "" {
			mustPragma(ctx, db, "s3_access_key_id", cfg.AccessKeyID)
		}
		if cfg.SecretAccessKey != "" {
			mustPragma(ctx, db, "s3_secret_access_key", cfg.SecretAccessKey)
		}
		if cfg.UsePathStyle {
			if _, err := db.ExecContext(ctx, "PRAGMA s3_url_style='path';"); err != nil {
				zap.S().Warnw("localengine: set s3_url_style failed", "err", err)
			}
		}
	}

	return &DuckDBClient{DB: db}, nil
}

func mustPragma(ctx context.Context, db *sql.DB, key, value string) {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s='%s';", key, value)); err != nil {
		zap.S().Warnw("localengine: set duckdb pragma failed", "pragma", key, "err", err)
	}
}

// Close closes the underlying DB.
func (c *DuckDBClient) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// HealthCheck runs a trivial query to confirm the connection is live.
func (c *DuckDBClient) HealthCheck(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return fmt.Errorf("duckdb client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var v int
	if err := c.DB.QueryRowContext(ctx, "SELECT 1;").Scan(&v); err != nil {
		return fmt.Errorf("duckdb health query failed: %w", err)
	}
	return nil
}
