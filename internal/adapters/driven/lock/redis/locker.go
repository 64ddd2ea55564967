// Package redis provides a session locker shared by every process using
// the same Redis server. Locks expire after a TTL so a crashed holder
// cannot wedge a session forever. A live holder renews its lease until it
// unlocks, so turns may run longer than the TTL.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/logger"
)

// Ensure Locker implements the interface.
var _ driven.SessionLocker = (*Locker)(nil)

// Default configuration values.
const (
	DefaultTTL          = 5 * time.Minute
	DefaultPollInterval = 50 * time.Millisecond
	DefaultKeyPrefix    = "docuchat:lock:session:"
	DefaultDialTimeout  = 5 * time.Second
)

// unlockScript deletes the key only if it still holds our token.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the key's expiry only if it still holds our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// client is the subset of go-redis the locker uses.
type client interface {
	goredis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Config holds configuration for the Redis locker.
type Config struct {
	// Addr is the Redis server address (required).
	Addr string

	// Password authenticates to Redis when set.
	Password string

	// TTL bounds how long a lock survives its holder (default: 5m).
	TTL time.Duration

	// PollInterval is how often a waiting Lock retries (default: 50ms).
	PollInterval time.Duration

	// RenewInterval is how often a held lease is extended back to TTL
	// (default: TTL/3). Values not below TTL use the default.
	RenewInterval time.Duration
}

// Locker implements driven.SessionLocker with SET NX PX.
type Locker struct {
	rdb           client
	ttl           time.Duration
	pollInterval  time.Duration
	renewInterval time.Duration
	prefix        string
}

// NewLocker connects to Redis and verifies the connection.
func NewLocker(ctx context.Context, cfg Config) (*Locker, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: address is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DialTimeout: DefaultDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newLocker(rdb, cfg), nil
}

func newLocker(rdb client, cfg Config) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RenewInterval <= 0 || cfg.RenewInterval >= cfg.TTL {
		cfg.RenewInterval = cfg.TTL / 3
	}
	return &Locker{
		rdb:           rdb,
		ttl:           cfg.TTL,
		pollInterval:  cfg.PollInterval,
		renewInterval: cfg.RenewInterval,
		prefix:        DefaultKeyPrefix,
	}
}

// Lock polls SET NX until the session key is ours or ctx is done. The
// lease is renewed in the background until the returned func is called.
func (l *Locker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := l.prefix + sessionID
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", sessionID, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.unlock(key, token)
		})
	}, nil
}

// keepAlive extends the lease every renewInterval until stop is closed or
// the key no longer holds token.
func (l *Locker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if !l.extend(key, token) {
			return
		}
	}
}

// extend reports false once the lease has been lost. Transient Redis
// errors are logged and retried on the next tick.
func (l *Locker) extend(key, token string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDialTimeout)
	defer cancel()

	n, err := extendScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		logger.Warn("redis renew %s: %v", key, err)
		return true
	}
	if n == 0 {
		logger.Warn("redis lease on %s lost before unlock", key)
		return false
	}
	return true
}

// unlock deletes key if it still holds token. The turn's context may
// already be cancelled, so a fresh one is used.
func (l *Locker) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDialTimeout)
	defer cancel()
	if err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		logger.Warn("redis unlock %s: %v", key, err)
	}
}

// Close closes the Redis connection.
func (l *Locker) Close() error {
	return l.rdb.Close()
}
