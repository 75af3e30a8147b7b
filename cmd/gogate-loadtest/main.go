// Command gogate-loadtest measures session validation and Engine.Check
// throughput against Redis or an in-process miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/session"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed for the validate phase")
		logins      = flag.Int("logins", 64, "number of sessions opened through Login for the check phase")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + check)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gg-load", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *logins <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, logins, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	manager, err := session.NewManager(session.NewStore(client, *prefix), session.Config{
		IdleTimeout:     time.Hour,
		AbsoluteTimeout: 24 * time.Hour,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "session manager: %v\n", err)
		os.Exit(1)
	}

	ids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range ids {
		sess, err := manager.Begin(ctx, fmt.Sprintf("user-%d", i), time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "begin failed: %v\n", err)
			os.Exit(1)
		}
		ids[i] = sess.SessionID
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	engine, checkIDs, err := openEngine(ctx, client, *prefix, *logins)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	validateStats := runPhase(ids, *ops, *concurrency, func(sid string) error {
		_, err := manager.Validate(ctx, sid, time.Now())
		return err
	})
	checkStats := runPhase(checkIDs, *ops, *concurrency, func(sid string) error {
		d, err := engine.Check(ctx, sid, "editor")
		if err == nil && !d.Allowed {
			err = goGate.ErrSessionNotFound
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("check", checkStats)
}

// openEngine builds an Engine on client, registers one editor account and
// logs it in n times.
func openEngine(ctx context.Context, client redis.UniversalClient, prefix string, n int) (*goGate.Engine, []string, error) {
	cfg := goGate.DefaultConfig()
	cfg.Session.RedisPrefix = prefix
	cfg.Session.IdleTimeout = time.Hour
	cfg.RateLimit.Enabled = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := goGate.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		return nil, nil, err
	}
	if err := engine.SeedRoles(ctx, map[string]int{"admin": 100, "editor": 60, "user": 50}); err != nil {
		engine.Close()
		return nil, nil, err
	}
	if _, err := engine.CreateUser(ctx, "loadtest", "loadtest-password", "editor", "", ""); err != nil {
		engine.Close()
		return nil, nil, err
	}

	ids := make([]string, n)
	for i := range ids {
		sid, err := engine.Login(ctx, "loadtest", "loadtest-password")
		if err != nil {
			engine.Close()
			return nil, nil, err
		}
		ids[i] = sid
	}
	return engine, ids, nil
}

func runPhase(ids []string, ops, concurrency int, op func(sid string) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				sid := ids[r.Intn(len(ids))]
				t0 := time.Now()
				err := op(sid)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
