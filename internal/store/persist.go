package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"ticketkenya/internal/models"
)

// AuthKey is the namespace the auth slice is persisted under.
const AuthKey = "persist:auth"

type Policy string

const (
	PolicyWhitelist Policy = "whitelist"
	PolicyToken     Policy = "token"
)

// Persister stores opaque blobs by key. Load returns nil, nil for a
// missing key.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

type persistedAuth struct {
	User            *models.User `json:"user,omitempty"`
	Token           string       `json:"token"`
	IsAuthenticated bool         `json:"isAuthenticated,omitempty"`
	UserRole        models.Role  `json:"userRole,omitempty"`
}

func encodeAuth(policy Policy, a models.AuthState) ([]byte, error) {
	p := persistedAuth{Token: a.Token}
	if policy != PolicyToken {
		p.User = a.User
		p.IsAuthenticated = a.IsAuthenticated
		p.UserRole = a.UserRole
	}
	return json.Marshal(p)
}

func decodeAuth(data []byte) (models.AuthState, error) {
	var p persistedAuth
	if err := json.Unmarshal(data, &p); err != nil {
		return models.AuthState{}, fmt.Errorf("decode %s: %w", AuthKey, err)
	}
	return models.AuthState{
		User:            p.User,
		Token:           p.Token,
		IsAuthenticated: p.IsAuthenticated,
		UserRole:        p.UserRole,
	}, nil
}

// ---------- file ----------

// FilePersister keeps one file per key under Dir, owner read/write only.
type FilePersister struct {
	Dir string
}

func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{Dir: dir}
}

func (p *FilePersister) path(key string) string {
	return filepath.Join(p.Dir, strings.ReplaceAll(key, ":", "_")+".json")
}

func (p *FilePersister) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(p.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", key, err)
	}
	return data, nil
}

func (p *FilePersister) Save(_ context.Context, key string, data []byte) error {
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(p.Dir, ".state-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path(key)); err != nil {
		return fmt.Errorf("replace state %s: %w", key, err)
	}
	return nil
}

func (p *FilePersister) Remove(_ context.Context, key string) error {
	if err := os.Remove(p.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state %s: %w", key, err)
	}
	return nil
}

// ---------- redis ----------

// RedisPersister keeps state in Redis under Prefix+key. TTL of zero means
// the key never expires.
type RedisPersister struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedisPersister(client *redis.Client, prefix string) *RedisPersister {
	return &RedisPersister{Client: client, Prefix: prefix}
}

func (p *RedisPersister) Load(ctx context.Context, key string) ([]byte, error) {
	if p.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	data, err := p.Client.Get(ctx, p.Prefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return data, nil
}

func (p *RedisPersister) Save(ctx context.Context, key string, data []byte) error {
	if p.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if err := p.Client.Set(ctx, p.Prefix+key, data, p.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store %s in Redis: %w", key, err)
	}
	return nil
}

func (p *RedisPersister) Remove(ctx context.Context, key string) error {
	if p.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if err := p.Client.Del(ctx, p.Prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from Redis: %w", key, err)
	}
	return nil
}

// MemoryPersister is used when nothing should touch disk.
type MemoryPersister struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

func (p *MemoryPersister) Load(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data[key], nil
}

func (p *MemoryPersister) Save(_ context.Context, key string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = append([]byte(nil), data...)
	return nil
}

func (p *MemoryPersister) Remove(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return nil
}
