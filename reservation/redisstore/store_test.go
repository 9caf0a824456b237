package redisstore_test

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/terraskye/cinema/reservation"
	"github.com/terraskye/cinema/reservation/redisstore"
	"github.com/terraskye/cinema/reservation/storetest"
)

func connect(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	if err := rdb.Ping(t.Context()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	return rdb
}

func cleanup(t *testing.T, rdb *redis.Client, prefix string) {
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := rdb.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
	})
}

func TestStore(t *testing.T) {
	rdb := connect(t)

	storetest.Run(t, func(t *testing.T) reservation.Store {
		prefix := "test:" + t.Name() + ":"
		cleanup(t, rdb, prefix)
		return redisstore.New(rdb, redisstore.WithKeyPrefix(prefix))
	})
}

// commandLog records which write commands are sent alone and which are sent
// together in one pipeline.
type commandLog struct {
	mu        sync.Mutex
	single    []string
	pipelines [][]string
}

func (l *commandLog) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (l *commandLog) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		l.mu.Lock()
		l.single = append(l.single, cmd.Name())
		l.mu.Unlock()
		return next(ctx, cmd)
	}
}

func (l *commandLog) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, len(cmds))
		for i, cmd := range cmds {
			names[i] = cmd.Name()
		}
		l.mu.Lock()
		l.pipelines = append(l.pipelines, names)
		l.mu.Unlock()
		return next(ctx, cmds)
	}
}

func TestStore_RecordAndIndexWrittenTogether(t *testing.T) {
	rdb := connect(t)
	prefix := "test:" + t.Name() + ":"
	cleanup(t, rdb, prefix)

	log := &commandLog{}
	rdb.AddHook(log)
	store := redisstore.New(rdb, redisstore.WithKeyPrefix(prefix))

	r := reservation.SeatReservation{
		ReservationID: "r1",
		ShowID:        "s1",
		WalletID:      "w1",
		Price:         decimal.NewFromInt(100),
		Status:        reservation.StatusStarted,
		Step:          reservation.StepReserveSeat,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := store.Create(t.Context(), r); err != nil {
		t.Fatal(err)
	}
	r.Status, r.Step = reservation.StatusCompleted, ""
	if err := store.Save(t.Context(), r); err != nil {
		t.Fatal(err)
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	for _, name := range log.single {
		switch name {
		case "set", "setnx", "sadd", "srem":
			t.Fatalf("%s sent outside a transaction: %v", name, log.single)
		}
	}
	together := func(a, b string) bool {
		for _, p := range log.pipelines {
			var hasA, hasB bool
			for _, name := range p {
				hasA = hasA || name == a
				hasB = hasB || name == b
			}
			if hasA && hasB {
				return true
			}
		}
		return false
	}
	if !together("set", "sadd") || !together("set", "srem") {
		t.Fatalf("pipelines = %v, want set with sadd and set with srem", log.pipelines)
	}
}
