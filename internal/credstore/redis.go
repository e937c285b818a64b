package credstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisPairKey   = "exonvc:session:v1"
	redisDeviceKey = "exonvc:session:v1:device"

	// The platform keeps the credential pair for years; re-validation at
	// startup is what actually retires stale sessions.
	redisPairTTL = 730 * 24 * time.Hour
)

// RedisStore persists credentials in a Redis hash. The token and user
// entries live in one key written through a transactional pipeline, so the
// pair stays atomic.
type RedisStore struct {
	client *redis.Client
	sealer *Sealer
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client. sealer may be nil.
func NewRedisStore(client *redis.Client, sealer *Sealer) *RedisStore {
	return &RedisStore{client: client, sealer: sealer}
}

// OpenRedisStore connects to Redis at url and verifies connectivity.
func OpenRedisStore(ctx context.Context, url, passphrase string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	var sealer *Sealer
	if passphrase != "" {
		salt, err := loadOrCreateRedisSalt(ctx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		if sealer, err = NewSealer(passphrase, salt); err != nil {
			client.Close()
			return nil, err
		}
	}
	return NewRedisStore(client, sealer), nil
}

func loadOrCreateRedisSalt(ctx context.Context, client *redis.Client) ([]byte, error) {
	saltKey := redisPairKey + ":salt"
	fresh, err := NewSealSalt()
	if err != nil {
		return nil, err
	}
	if err := client.SetNX(ctx, saltKey, fresh, 0).Err(); err != nil {
		return nil, fmt.Errorf("session seal salt: %w", err)
	}
	salt, err := client.Get(ctx, saltKey).Bytes()
	if err != nil {
		return nil, fmt.Errorf("session seal salt: %w", err)
	}
	return salt, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context) (Credentials, bool, error) {
	fields, err := s.client.HGetAll(ctx, redisPairKey).Result()
	if err != nil {
		return Credentials{}, false, fmt.Errorf("load session: %w", err)
	}
	token := []byte(fields[tokenEntry])
	user := []byte(fields[userEntry])
	if len(token) == 0 || len(user) == 0 {
		return Credentials{}, false, nil
	}
	if s.sealer != nil {
		if token, err = s.sealer.Open(token); err != nil {
			return Credentials{}, false, nil
		}
		if user, err = s.sealer.Open(user); err != nil {
			return Credentials{}, false, nil
		}
	}
	creds, ok := decodePair(token, user)
	return creds, ok, nil
}

func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	token, user, err := encodePair(creds)
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if token, err = s.sealer.Seal(token); err != nil {
			return err
		}
		if user, err = s.sealer.Seal(user); err != nil {
			return err
		}
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, redisPairKey, tokenEntry, token, userEntry, user)
	pipe.Expire(ctx, redisPairKey, redisPairTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, redisPairKey).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *RedisStore) DeviceID(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.client.SetNX(ctx, redisDeviceKey, id, 0).Err(); err != nil {
		return "", fmt.Errorf("session device id: %w", err)
	}
	stored, err := s.client.Get(ctx, redisDeviceKey).Result()
	if err != nil {
		return "", fmt.Errorf("session device id: %w", err)
	}
	return stored, nil
}
