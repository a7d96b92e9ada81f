package repository

import (
	"context"
	"fmt"
	"strings"

	"stock-pulse/observability"
)

// Open selects the ranking store from databaseURL: postgres:// or
// postgresql:// for Postgres, sqlite://path for an embedded file, and an
// empty URL for the in-process store.
func Open(ctx context.Context, databaseURL string) (RankingStore, error) {
	switch {
	case databaseURL == "":
		observability.Warn("DATABASE_URL not set, rankings are kept in memory only")
		return NewMemoryStore(), nil

	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		repo, err := NewRepository(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil

	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite DATABASE_URL needs a path, e.g. sqlite://rankings.db")
		}
		return NewSQLiteStore(ctx, path)

	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme in %q", redact(databaseURL))
	}
}

// redact drops everything after the scheme so credentials are not logged
func redact(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i+3] + "..."
	}
	return "..."
}
