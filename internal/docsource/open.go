package docsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type BackendConfig struct {
	Backend  string
	DSN      string
	Redis    RedisConfig
	Encoding GeometryEncoding
}

// OpenStore opens the remote document store. It returns a nil Store for the
// "none" backend.
func OpenStore(ctx context.Context, cfg BackendConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite backend requires a database path")
		}
		return NewSQLiteStore(cfg.DSN)
	case BackendPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return NewPostgresStore(cfg.DSN)
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewSource builds the lookup chain: the local data directory first, then the
// remote store (if any) with its geometry encoding undone.
func NewSource(dataDir string, remote Store, codec Codec, log zerolog.Logger, observer FetchObserver) Source {
	sources := []Named{}
	if dataDir != "" {
		sources = append(sources, Named{Name: "file", Source: NewFileSource(dataDir)})
	}
	if remote != nil {
		sources = append(sources, Named{Name: "remote", Source: CodecSource{Source: remote, Codec: codec}})
	}
	return NewChain(log, observer, sources...)
}
