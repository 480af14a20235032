package credstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/nacl/secretbox"
)

// Redis stores token pairs in Redis, sealed with NaCl secretbox so that
// access tokens never sit in the shared cache as plaintext. Entries carry a
// TTL; after that the student has to log in again.
type Redis struct {
	rdb *redis.Client
	key [32]byte
	ttl time.Duration
}

// ErrSealKey is returned when the configured seal key is not 32 hex-encoded bytes.
var ErrSealKey = errors.New("credstore: seal key must be 64 hex characters")

// NewRedis creates a Redis-backed store. sealKeyHex must decode to exactly
// 32 bytes.
func NewRedis(rdb *redis.Client, sealKeyHex string, ttl time.Duration) (*Redis, error) {
	raw, err := hex.DecodeString(sealKeyHex)
	if err != nil || len(raw) != 32 {
		return nil, ErrSealKey
	}
	s := &Redis{rdb: rdb, ttl: ttl}
	copy(s.key[:], raw)
	return s, nil
}

func credKey(sessionID string) string {
	return "portal:cred:" + sessionID
}

func (s *Redis) Save(ctx context.Context, sessionID string, creds Credentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	box, err := seal(&s.key, plain)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, credKey(sessionID), box, s.ttl).Err(); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, sessionID string) (Credentials, error) {
	box, err := s.rdb.Get(ctx, credKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}
	plain, err := open(&s.key, box)
	if err != nil {
		return Credentials{}, err
	}
	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return Credentials{}, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return creds, nil
}

func (s *Redis) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, credKey(sessionID)).Err()
}

// seal encrypts plain with a random 24-byte nonce prepended to the box.
func seal(key *[32]byte, plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, key), nil
}

// open reverses seal. Fails if the box was tampered with or sealed under a
// different key.
func open(key *[32]byte, box []byte) ([]byte, error) {
	if len(box) < 24 {
		return nil, errors.New("credstore: sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, key)
	if !ok {
		return nil, errors.New("credstore: failed to open sealed credentials")
	}
	return plain, nil
}
