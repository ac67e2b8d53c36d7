package vectorindex

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Type   string
	Qdrant QdrantConfig
	Redis  RedisConfig
	// RedisClient is required for the redis backend only.
	RedisClient *redis.Client
}

func New(opts Options) (Index, error) {
	switch opts.Type {
	case "", "memory":
		return NewMemoryIndex(), nil
	case "qdrant":
		return NewQdrantIndex(opts.Qdrant)
	case "redis":
		return NewRedisIndex(opts.RedisClient, opts.Redis)
	default:
		return nil, fmt.Errorf("unsupported vector store type %q", opts.Type)
	}
}
