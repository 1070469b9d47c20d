package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/guard"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/route"
	"github.com/MrEthical07/sessionguard/tokenstore"
)

var roles = []string{"admin", "team_leader", "employee"}

type loadSession struct {
	session *sessionguard.Session
	guard   *guard.Guard
}

func main() {
	var (
		sessions    = flag.Int("sessions", 1000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "guard checks to run")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "sgload", "token key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
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

	secret := []byte("loadtest-secret-loadtest-secret!")
	issuer, err := jwt.NewManager(jwt.Config{SigningMethod: jwt.MethodHS256, Secret: secret, TTL: 24 * time.Hour})
	if err != nil {
		fmt.Fprintf(os.Stderr, "token manager: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeding %d tokens...\n", *sessions)
	startSeed := time.Now()
	for i := 0; i < *sessions; i++ {
		store, err := tokenstore.NewRedis(client, *prefix, userKey(i), 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "store: %v\n", err)
			os.Exit(1)
		}
		token, err := issuer.Issue(int64(i+1), userKey(i), roles[i%len(roles)])
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue: %v\n", err)
			os.Exit(1)
		}
		if err := store.Save(ctx, token); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	table, err := route.TimesheetTable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "routes: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	states, hydrateStats := runHydratePhase(ctx, client, secret, *prefix, *sessions, *concurrency, logger)
	defer func() {
		for _, s := range states {
			if s != nil {
				_ = s.session.Close()
			}
		}
	}()
	checkStats, redirects := runCheckPhase(ctx, states, table.Routes(), *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("hydrate", hydrateStats)
	printStats("check", checkStats)
	fmt.Printf("check: redirects=%d\n", redirects)
}

func userKey(i int) string {
	return fmt.Sprintf("user-%d", i)
}

func newLoadSession(client redis.UniversalClient, secret []byte, prefix string, i int, logger logrus.FieldLogger) (*loadSession, error) {
	cfg := sessionguard.DefaultConfig()
	cfg.Token.SigningMethod = string(jwt.MethodHS256)
	cfg.Token.Secret = string(secret)
	cfg.Store.Backend = sessionguard.StoreRedis
	cfg.Store.RedisAddr = "shared"
	cfg.Store.RedisPrefix = prefix
	cfg.Store.Key = userKey(i)

	s, err := sessionguard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, err
	}
	g, err := guard.New(s, cfg.Guard, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return &loadSession{session: s, guard: g}, nil
}

func runHydratePhase(ctx context.Context, client redis.UniversalClient, secret []byte, prefix string, n, concurrency int, logger logrus.FieldLogger) ([]*loadSession, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, n)
		mu        sync.Mutex
		states    = make([]*loadSession, n)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= n {
					return
				}
				t0 := time.Now()
				ls, err := newLoadSession(client, secret, prefix, i, logger)
				if err == nil {
					err = ls.session.Hydrate(ctx)
				}
				d := time.Since(t0)
				if ls != nil {
					states[i] = ls
				}
				if err != nil || !ls.session.IsAuthenticated() {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return states, computeStats(total, latencies, failures)
}

func runCheckPhase(ctx context.Context, states []*loadSession, routes []route.Route, ops, concurrency int) (phaseStats, int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		redirects int64
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
				state := states[r.Intn(len(states))]
				if state == nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				target := routes[r.Intn(len(routes))]
				t0 := time.Now()
				d := state.guard.Check(ctx, target)
				elapsed := time.Since(t0)
				if !d.Allowed() {
					atomic.AddInt64(&redirects, 1)
					// an authenticated session is only ever refused for its role
					if d.Reason == guard.ReasonUnauthenticated {
						atomic.AddInt64(&failures, 1)
					}
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures), redirects
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
