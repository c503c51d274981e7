package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

// DefaultURL is used when the module has neither a URL nor a client.
const DefaultURL = "redis://localhost:6379/0"

const setSchema = `{
  "type": "object",
  "required": ["key", "value"],
  "properties": {
    "key": {"type": "string", "minLength": 1},
    "value": {},
    "ttl": {"type": "string"}
  }
}`

const getSchema = `{
  "type": "object",
  "required": ["key"],
  "properties": {
    "key": {"type": "string", "minLength": 1}
  }
}`

// Store is the part of the redis client the tools use.
type Store interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
}

// Module implements the registry.Module interface for this package. The
// connection is opened on first use.
type Module struct {
	// URL is a redis:// or rediss:// connection string.
	URL string
	// Client overrides URL.
	Client Store

	once    sync.Once
	client  Store
	initErr error
}

type setInput struct {
	Key   string        `param:"key"`
	Value any           `param:"value"`
	TTL   time.Duration `param:"ttl"`
}

type getInput struct {
	Key string `param:"key"`
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("redis_set", setSchema, m.Set))
	r.RegisterTool(registry.NewFunc("redis_get", getSchema, m.Get))
}

func (m *Module) store() (Store, error) {
	m.once.Do(func() {
		if m.Client != nil {
			m.client = m.Client
			return
		}
		url := m.URL
		if url == "" {
			url = DefaultURL
		}
		opts, err := goredis.ParseURL(url)
		if err != nil {
			m.initErr = fmt.Errorf("invalid redis url: %w", err)
			return
		}
		m.client = goredis.NewClient(opts)
	})
	return m.client, m.initErr
}

// Set stores value under key. Non-string values are stored as JSON.
func (m *Module) Set(ctx context.Context, params map[string]any) (any, error) {
	var in setInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	client, err := m.store()
	if err != nil {
		return nil, err
	}

	value, ok := in.Value.(string)
	if !ok {
		b, err := json.Marshal(in.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode value for %q: %w", in.Key, err)
		}
		value = string(b)
	}

	if err := client.Set(ctx, in.Key, value, in.TTL).Err(); err != nil {
		return nil, fmt.Errorf("redis set %q failed: %w", in.Key, err)
	}

	ctxlog.FromContext(ctx).Debug("Stored redis key", "key", in.Key, "ttl", in.TTL)
	return map[string]any{"key": in.Key, "ok": true}, nil
}

// Get reads key. A missing key is reported, not failed.
func (m *Module) Get(ctx context.Context, params map[string]any) (any, error) {
	var in getInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	client, err := m.store()
	if err != nil {
		return nil, err
	}

	value, err := client.Get(ctx, in.Key).Result()
	if errors.Is(err, goredis.Nil) {
		return map[string]any{"key": in.Key, "value": nil, "found": false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q failed: %w", in.Key, err)
	}
	return map[string]any{"key": in.Key, "value": value, "found": true}, nil
}

// Close releases the connection pool if the module opened one.
func (m *Module) Close() error {
	if c, ok := m.client.(io.Closer); ok && m.Client == nil {
		return c.Close()
	}
	return nil
}
