// Command sse_load opens many concurrent subscriptions to the journal event stream
// and reports connection and event counts.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type config struct {
	url      string
	password string
	conns    int
	duration time.Duration
	ramp     time.Duration
}

// stats is shared by all connections.
type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	events      atomic.Int64

	mu    sync.Mutex
	kinds map[string]int64
}

func newStats() *stats {
	return &stats{kinds: make(map[string]int64)}
}

func (s *stats) event(kind string) {
	s.events.Add(1)
	s.mu.Lock()
	s.kinds[kind]++
	s.mu.Unlock()
}

func (s *stats) summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.kinds[k]))
	}
	return strings.Join(parts, " ")
}

func main() {
	var cfg config
	flag.StringVar(&cfg.url, "url", "http://localhost:5005/journal/stream", "journal stream URL")
	flag.StringVar(&cfg.password, "password", os.Getenv("DASHBOARD_PASSWORD"), "dashboard password")
	flag.IntVar(&cfg.conns, "conns", 200, "number of concurrent subscriptions")
	flag.DurationVar(&cfg.duration, "dur", time.Minute, "test duration (0 runs until interrupted)")
	flag.DurationVar(&cfg.ramp, "ramp", 0, "spread connection starts across this window")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.conns <= 0 {
		logger.Fatal("Invalid connection count", zap.Int("conns", cfg.conns))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.duration)
		defer cancel()
	}

	st := newStats()
	start := time.Now()
	go report(ctx, st, start, logger)

	run(ctx, cfg, st)

	elapsed := max(time.Since(start), time.Millisecond)
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d events=%d elapsed=%s events/s=%.2f kinds: %s\n",
		st.connected.Load(), st.connectErrs.Load(), st.streamErrs.Load(), st.events.Load(),
		elapsed.Truncate(time.Millisecond), float64(st.events.Load())/elapsed.Seconds(), st.summary())
}

// run opens cfg.conns subscriptions and blocks until all of them end.
func run(ctx context.Context, cfg config, st *stats) {
	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     cfg.conns + 10,
			MaxIdleConnsPerHost: cfg.conns + 10,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	var interval time.Duration
	if cfg.ramp > 0 {
		interval = cfg.ramp / time.Duration(cfg.conns)
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.conns && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, cfg, st)
		}()
	}
	wg.Wait()
}

// subscribe reads one stream until ctx is done, counting events by their "event:" kind.
func subscribe(ctx context.Context, client *http.Client, cfg config, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.url, nil)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	if cfg.password != "" {
		req.SetBasicAuth("qqqm", cfg.password)
	}

	resp, err := client.Do(req)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		st.connectErrs.Add(1)
		return
	}
	st.connected.Add(1)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				st.streamErrs.Add(1)
			}
			return
		}
		if kind, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "event: "); ok {
			st.event(kind)
		}
	}
}

func report(ctx context.Context, st *stats, start time.Time, logger *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("Load status",
				zap.Int64("connected", st.connected.Load()),
				zap.Int64("connect_errs", st.connectErrs.Load()),
				zap.Int64("stream_errs", st.streamErrs.Load()),
				zap.Int64("events", st.events.Load()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
