package locks

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func assertExclusive(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "k")
			if err != nil {
				t.Errorf("Lock() failed: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("%d goroutines held the lock at once", maxInside)
	}
}

func TestLocal_Exclusive(t *testing.T) {
	l := NewLocal()
	assertExclusive(t, l)
	if len(l.locks) != 0 {
		t.Errorf("Local kept %d idle entries", len(l.locks))
	}
}

func TestLocal_IndependentKeys(t *testing.T) {
	l := NewLocal()
	unlockA, _ := l.Lock(context.Background(), "a")
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("Lock(b) blocked by a: %v", err)
	}
	unlockB()
}

func TestLocal_ContextCancel(t *testing.T) {
	l := NewLocal()
	unlock, _ := l.Lock(context.Background(), "k")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock() error = %v, want DeadlineExceeded", err)
	}

	unlock()
	unlock()
	if len(l.locks) != 0 {
		t.Errorf("Local kept %d entries after release", len(l.locks))
	}
}

func TestNoop(t *testing.T) {
	var l Noop
	u1, _ := l.Lock(context.Background(), "k")
	u2, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Noop.Lock() failed: %v", err)
	}
	u1()
	u2()
}

// Set ADVERT_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a real server.
func TestRedis_Exclusive(t *testing.T) {
	addr := os.Getenv("ADVERT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADVERT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	assertExclusive(t, NewRedis(client, 5*time.Second))
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	addr := os.Getenv("ADVERT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADVERT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	l := NewRedis(client, 5*time.Second)
	unlock, err := l.Lock(ctx, "foreign")
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	// Simulate expiry followed by another holder.
	client.Set(ctx, keyPrefix+"foreign", "someone-else", time.Minute)
	unlock()

	if v, _ := client.Get(ctx, keyPrefix+"foreign").Result(); v != "someone-else" {
		t.Errorf("release removed a lock held by another token: %q", v)
	}
	client.Del(ctx, keyPrefix+"foreign")
}

func TestRedis_HeldPastTTL(t *testing.T) {
	addr := os.Getenv("ADVERT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADVERT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedis(client, 300*time.Millisecond)
	unlock, err := l.Lock(context.Background(), "slow-holder")
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}

	// A create stuck on a slow image provider outlives the ttl several times over.
	time.Sleep(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "slow-holder"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second Lock() error = %v, want %v", err, ErrLockTimeout)
	}

	unlock()
	again, err := l.Lock(context.Background(), "slow-holder")
	if err != nil {
		t.Fatalf("Lock() after unlock failed: %v", err)
	}
	again()
}

func TestNewRedis_TTLBounds(t *testing.T) {
	if got := NewRedis(nil, 0).ttl; got != 10*time.Second {
		t.Errorf("default ttl = %s", got)
	}
	if got := NewRedis(nil, time.Nanosecond).ttl; got != minTTL {
		t.Errorf("short ttl = %s, want %s", got, minTTL)
	}
}
