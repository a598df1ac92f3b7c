package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "tapestry:doc:"

// Store implements ports.DocumentStore using Redis. It serves as a remote
// autosave slot shared by editor instances.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for saved documents.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client returns the underlying client, e.g. to build a Locker on it.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(key string, section ports.Section) string {
	return s.prefix + key + ":" + string(section)
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Write stores the section. Writing the graph section also refreshes the index.
func (s *Store) Write(ctx context.Context, key string, section ports.Section, data []byte) error {
	if key == "" {
		return fmt.Errorf("document key cannot be empty")
	}

	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, s.key(key, section), data, s.ttl)
		if section == ports.SectionGraph {
			// Score is the expiry time; without TTL the entry never expires.
			score := float64(time.Now().Add(s.ttl).Unix())
			if s.ttl == 0 {
				score = 4102444800 // 2100-01-01
			}
			pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: key})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write to redis: %w", err)
	}
	return nil
}

// Read returns the section.
func (s *Store) Read(ctx context.Context, key string, section ports.Section) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key, section)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, key)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, nil
}

// Delete removes every section and the index entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()
	for _, section := range ports.Sections {
		pipe.Del(ctx, s.key(key, section))
	}
	pipe.ZRem(ctx, s.indexKey(), key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns the indexed documents, dropping expired entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired documents: %w", err)
	}

	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return keys, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
