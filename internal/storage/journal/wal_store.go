// Package journal keeps an append-only write-ahead log of executed trades and
// account marks for the dashboard stream and for audit.
package journal

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

const (
	defaultJournalDir   = "./wal/journal"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	eventKeyPrefix      = "event_"
)

// Kind of journal entry.
type Kind string

const (
	KindTrade Kind = "trade"
	KindMark  Kind = "mark"
	// KindSkip is a broker mutation that was not applied.
	KindSkip Kind = "skip"
	// KindGuard is a job blocked by a risk check.
	KindGuard Kind = "guard"
)

// ParseKinds parses a comma separated list of kinds. Blank input yields no kinds.
func ParseKinds(raw string) ([]Kind, error) {
	var kinds []Kind
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch k := Kind(part); k {
		case KindTrade, KindMark, KindSkip, KindGuard:
			kinds = append(kinds, k)
		default:
			return nil, errors.Errorf("unknown journal kind %q", part)
		}
	}
	return kinds, nil
}

// Event is a single journal entry.
type Event struct {
	Index   uint64             `json:"index"`
	ID      string             `json:"id"`
	Time    time.Time          `json:"time"`
	Kind    Kind               `json:"kind"`
	Action  domain.TradeAction `json:"action,omitempty"`
	Symbol  string             `json:"symbol,omitempty"`
	Qty     decimal.Decimal    `json:"qty"`
	Price   decimal.Decimal    `json:"price"`
	Tag     string             `json:"tag,omitempty"`
	Details string             `json:"details,omitempty"`
	Cash    decimal.Decimal    `json:"cash"`
	Equity  decimal.Decimal    `json:"equity"`
}

// TradeEvent builds a journal entry for an executed trade.
func TradeEvent(id string, t domain.Trade) Event {
	return Event{
		ID:      id,
		Time:    t.Timestamp,
		Kind:    KindTrade,
		Action:  t.Action,
		Symbol:  t.Symbol,
		Qty:     t.Qty,
		Price:   t.Price,
		Tag:     t.Tag,
		Details: t.Details,
	}
}

// MarkEvent builds a journal entry for an account mark.
func MarkEvent(id string, snap domain.LedgerSnapshot) Event {
	return Event{
		ID:     id,
		Time:   snap.Timestamp,
		Kind:   KindMark,
		Tag:    snap.Note,
		Cash:   snap.Cash,
		Equity: snap.Equity,
	}
}

// NoticeEvent builds a skip or guard entry carrying a tag (job or strategy) and a reason.
func NoticeEvent(id string, kind Kind, at time.Time, tag, reason string) Event {
	return Event{
		ID:      id,
		Time:    at,
		Kind:    kind,
		Tag:     tag,
		Details: reason,
	}
}

// WALStore persists journal events in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens or creates the journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes ev at the next index and returns that index.
func (s *WALStore) Append(ev Event) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("journal is not initialized")
	}
	if ev.Kind == "" {
		return 0, errors.New("journal event kind is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.wal.CurrentIndex() + 1
	ev.Index = next

	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, errors.Wrap(err, "marshal journal event")
	}

	if err := s.wal.Write(next, eventKeyPrefix+string(ev.Kind), payload); err != nil {
		return 0, errors.Wrapf(err, "write journal event %d", next)
	}

	return next, nil
}

// EventsAfter returns the events written after index, oldest first.
func (s *WALStore) EventsAfter(index uint64) ([]Event, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	events := make([]Event, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, eventKeyPrefix) {
			continue
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, errors.Wrapf(err, "decode journal event %d", idx)
		}
		ev.Index = idx
		events = append(events, ev)
	}

	return events, nil
}

// CurrentIndex returns the latest index written.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
