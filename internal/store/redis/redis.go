package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/invcache-go/internal/store"
)

// Config holds configuration for the Redis slot store
type Config struct {
	// Client is an existing client; when nil one is created from Addr
	Client redis.UniversalClient

	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to every slot name
	KeyPrefix string

	// Expiration bounds how long a slot survives without being rewritten.
	// Zero keeps slots until deleted.
	Expiration time.Duration
}

// Store keeps slots as Redis string keys
type Store struct {
	client     redis.UniversalClient
	prefix     string
	expiration time.Duration
	ownsClient bool
}

var _ store.Store = (*Store)(nil)

// New creates a Redis slot store and verifies connectivity
func New(ctx context.Context, config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("redis configuration is required")
	}

	client := config.Client
	owns := false
	if client == nil {
		if config.Addr == "" {
			return nil, errors.New("redis address is required when no client is provided")
		}
		client = redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		})
		owns = true
	}

	if err := client.Ping(ctx).Err(); err != nil {
		if owns {
			_ = client.Close()
		}
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:     client,
		prefix:     config.KeyPrefix,
		expiration: config.Expiration,
		ownsClient: owns,
	}, nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Get reads the slot; redis.Nil maps to absent
func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get slot %s: %w", name, err)
	}
	return value, true, nil
}

// Set writes the slot
func (s *Store) Set(ctx context.Context, name, value string) error {
	if err := s.client.Set(ctx, s.key(name), value, s.expiration).Err(); err != nil {
		return fmt.Errorf("failed to set slot %s: %w", name, err)
	}
	return nil
}

// Delete removes the slot
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", name, err)
	}
	return nil
}

// Close closes the client if the store created it
func (s *Store) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
