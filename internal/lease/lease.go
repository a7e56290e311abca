// Package lease provides the single-flight guard around optimization cycles.
package lease

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrHeld is returned by TryAcquire when another holder owns the lease.
var ErrHeld = errors.New("lease: held by another holder")

// Locker hands out exclusive leases. Release is idempotent.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(), err error)
}

// Local guards cycles within one process.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local { return &Local{} }

func (l *Local) TryAcquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript extends the key's TTL only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Redis guards cycles across replicas with SET NX PX. The holder renews the
// lease every third of the TTL until release, so a cycle may outlive the TTL;
// the TTL only bounds how long a crashed holder can block others.
type Redis struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// DefaultTTL is used when NewRedis gets a non-positive ttl.
const DefaultTTL = 10 * time.Minute

func NewRedis(rdb *redis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = "wasteroute:cycle-lease"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, key: key, ttl: ttl}
}

func (r *Redis) TryAcquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	stop, done := make(chan struct{}), make(chan struct{})
	go r.renew(token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.rdb, []string{r.key}, token).Err()
		})
	}, nil
}

// renew keeps the lease alive until stop is closed or the lease is lost.
func (r *Redis) renew(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := r.ttl / 3
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			n, err := renewScript.Run(ctx, r.rdb, []string{r.key}, token, r.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				log.Printf("lease key=%s renew: %v", r.key, err)
			case n == 0:
				log.Printf("lease key=%s lost before release", r.key)
				return
			}
		}
	}
}
