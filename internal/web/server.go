// Package web serves the operator control surface: a JSON API, the journal event stream and metrics.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/events"
	"github.com/vadiminshakov/qqqm/internal/services/riskguard"
	"github.com/vadiminshakov/qqqm/internal/storage/journal"
	"github.com/vadiminshakov/qqqm/internal/storage/sqlstore"
	"go.uber.org/zap"
)

const (
	defaultLimit      = 100
	maxLimit          = 1000
	replayWindow      = 100
	heartbeatInterval = 30 * time.Second
	// ManualCloseReason is recorded on positions closed from the API.
	ManualCloseReason = "manual"
)

// Store is the state read by the API.
type Store interface {
	ControlState(ctx context.Context) (domain.ControlState, error)
	LatestLedger(ctx context.Context) (domain.LedgerSnapshot, error)
	ListLedger(ctx context.Context, limit int) ([]domain.LedgerSnapshot, error)
	ListOptions(ctx context.Context, limit int) ([]domain.OptionPosition, error)
	ListTrades(ctx context.Context, limit int) ([]domain.Trade, error)
	OpenRiskItems(ctx context.Context) ([]domain.RiskItem, error)
}

// Guard is the risk guard with its operator controls.
type Guard interface {
	riskguard.Controls
	Evaluate(ctx context.Context) riskguard.Decision
}

// Closer closes option positions.
type Closer interface {
	CloseOption(ctx context.Context, id int64, reason string) (domain.OrderResult, error)
	CloseAllOptions(ctx context.Context) (int, error)
}

// JournalReader replays persisted journal events.
type JournalReader interface {
	EventsAfter(index uint64) ([]journal.Event, error)
	CurrentIndex() uint64
}

// Server exposes the HTTP control surface.
type Server struct {
	Addr     string
	store    Store
	guard    Guard
	closer   Closer
	journal  JournalReader
	bus      *events.Broadcaster
	metrics  http.Handler
	password string
	logger   *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithPassword requires basic auth on everything except /healthz.
func WithPassword(password string) Option {
	return func(s *Server) { s.password = password }
}

// WithJournal enables /journal/stream. Either source may be nil.
func WithJournal(reader JournalReader, bus *events.Broadcaster) Option {
	return func(s *Server) {
		s.journal = reader
		s.bus = bus
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new web server instance.
func NewServer(addr string, store Store, guard Guard, closer Closer, opts ...Option) *Server {
	s := &Server{Addr: addr, store: store, guard: guard, closer: closer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with authentication applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("POST /api/pause", s.control("pause", s.guard.Pause))
	mux.HandleFunc("POST /api/resume", s.control("resume", s.guard.Resume))
	mux.HandleFunc("POST /api/reset-kill", s.control("reset-kill", s.guard.ResetKillSwitch))
	mux.HandleFunc("POST /api/close", s.handleClose)
	mux.HandleFunc("POST /api/close-all", s.handleCloseAll)
	mux.HandleFunc("GET /journal/stream", s.handleJournalStream)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Handle("/", s.auth(mux))
	return root
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Web server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) auth(next http.Handler) http.Handler {
	if s.password == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="qqqm"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Status is the /api/status payload.
type Status struct {
	Controls domain.ControlState    `json:"controls"`
	Ledger   *domain.LedgerSnapshot `json:"ledger,omitempty"`
	Guard    riskguard.Decision     `json:"guard"`
	OpenRisk decimal.Decimal        `json:"open_risk"`
	Bulls    int                    `json:"bulls"`
	Bears    int                    `json:"bears"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	controls, err := s.store.ControlState(ctx)
	if err != nil {
		s.fail(w, "load control state", err)
		return
	}
	st := Status{Controls: controls}

	snap, err := s.store.LatestLedger(ctx)
	switch {
	case err == nil:
		st.Ledger = &snap
	case !errors.Is(err, sqlstore.ErrNotFound):
		s.fail(w, "load ledger", err)
		return
	}

	items, err := s.store.OpenRiskItems(ctx)
	if err != nil {
		s.fail(w, "load risk items", err)
		return
	}
	exposure := domain.NewExposure(items)
	st.OpenRisk, st.Bulls, st.Bears = exposure.OpenRisk, exposure.Bulls, exposure.Bears
	st.Guard = s.guard.Evaluate(ctx)

	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	list(s, w, r, "list ledger", s.store.ListLedger)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	list(s, w, r, "list options", s.store.ListOptions)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	list(s, w, r, "list trades", s.store.ListTrades)
}

func list[T any](s *Server, w http.ResponseWriter, r *http.Request, what string, fn func(context.Context, int) ([]T, error)) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := fn(r.Context(), limit)
	if err != nil {
		s.fail(w, what, err)
		return
	}
	if rows == nil {
		rows = []T{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.Errorf("invalid limit %q", raw)
	}
	return min(n, maxLimit), nil
}

func (s *Server) control(name string, fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			s.fail(w, name, err)
			return
		}
		s.logger.Info("Control applied", zap.String("control", name), zap.String("remote", r.RemoteAddr))
		state, err := s.guard.State(r.Context())
		if err != nil {
			s.fail(w, "load control state", err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	res, err := s.closer.CloseOption(r.Context(), id, ManualCloseReason)
	if err != nil {
		s.fail(w, "close option", err)
		return
	}
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (s *Server) handleCloseAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.closer.CloseAllOptions(r.Context())
	if err != nil {
		s.fail(w, "close all options", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"closed": n})
}

// handleJournalStream replays recent journal events, or those after ?after= or Last-Event-ID,
// then streams live ones. ?kinds=trade,guard limits both to the listed kinds.
func (s *Server) handleJournalStream(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil && s.bus == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	kinds, err := journal.ParseKinds(r.URL.Query().Get("kinds"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := events.NewFilter(kinds...)

	var live chan journal.Event
	if s.bus != nil {
		live = s.bus.Subscribe(kinds...)
		defer s.bus.Unsubscribe(live)
	}

	var history []journal.Event
	last := uint64(0)
	if s.journal != nil {
		after, err := s.replayFrom(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if history, err = s.journal.EventsAfter(after); err != nil {
			s.fail(w, "load journal", err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(ev journal.Event) bool {
		if ev.Index != 0 && ev.Index <= last {
			return true
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("Failed to encode journal event", zap.String("id", ev.ID), zap.Error(err))
			return true
		}
		if ev.Index != 0 {
			fmt.Fprintf(w, "id: %d\n", ev.Index)
			last = ev.Index
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
		flusher.Flush()
		return r.Context().Err() == nil
	}

	for _, ev := range history {
		if !filter.Match(ev) {
			continue
		}
		if !send(ev) {
			return
		}
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-live:
			if !ok || !send(ev) {
				return
			}
		}
	}
}

func (s *Server) replayFrom(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("after")
	if raw == "" {
		raw = r.Header.Get("Last-Event-ID")
	}
	if raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, errors.Errorf("invalid event index %q", raw)
		}
		return after, nil
	}
	current := s.journal.CurrentIndex()
	if current <= replayWindow {
		return 0, nil
	}
	return current - replayWindow, nil
}

func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	s.logger.Error("API request failed", zap.String("op", what), zap.Error(err))
	http.Error(w, what+" failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>qqqm</title>
<style>
body { font-family: ui-monospace, monospace; background: #0f1115; color: #d7dae0; margin: 2rem; }
h1 { font-size: 1.2rem; }
button { margin-right: .5rem; }
pre { background: #171a21; padding: 1rem; overflow: auto; max-height: 40vh; }
</style>
</head>
<body>
<h1>qqqm</h1>
<div>
<button onclick="post('/api/pause')">Pause</button>
<button onclick="post('/api/resume')">Resume</button>
<button onclick="post('/api/reset-kill')">Reset kill-switch</button>
<button onclick="if (confirm('Close all options?')) post('/api/close-all')">Close all</button>
</div>
<h2>Status</h2>
<pre id="status">loading...</pre>
<h2>Journal</h2>
<pre id="journal"></pre>
<script>
async function refresh() {
  const r = await fetch('/api/status');
  document.getElementById('status').textContent = JSON.stringify(await r.json(), null, 2);
}
async function post(path) {
  await fetch(path, { method: 'POST' });
  refresh();
}
const journal = document.getElementById('journal');
const es = new EventSource('/journal/stream');
['trade', 'mark', 'skip', 'guard'].forEach(kind => es.addEventListener(kind, e => {
  journal.textContent = e.data + '\n' + journal.textContent;
}));
refresh();
setInterval(refresh, 15000);
</script>
</body>
</html>
`
