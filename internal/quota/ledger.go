package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Armin-kho/gheymat-bot/internal/db"
)

const (
	DefaultLimit = 1500
	DocumentName = "brs_usage"

	dayLayout = "2006-01-02"
)

var (
	ErrQuotaExceeded = errors.New("daily request limit reached")
	// ErrLedgerUnreadable refuses a call when today's count cannot be read.
	ErrLedgerUnreadable = errors.New("quota ledger unreadable")
)

// DayUsage is the persisted counter for one UTC day.
type DayUsage struct {
	Count int `json:"count"`
}

// Permit is returned for every upstream call the ledger allowed.
type Permit struct {
	Day   string
	Count int
	Limit int
}

// Usage is a read-only view of today's counter.
type Usage struct {
	Day       string `json:"day"`
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

type Options struct {
	Limit int
	// RetentionDays > 0 drops day keys older than that many days on acquire.
	RetentionDays int
	Now           func() time.Time
	Logger        zerolog.Logger
}

// Ledger counts upstream calls per UTC day and refuses calls past the limit.
// The whole ledger is one document; mu serializes every read-modify-write.
type Ledger struct {
	store db.Store
	opts  Options

	mu sync.Mutex
}

func New(store db.Store, opts Options) *Ledger {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{store: store, opts: opts}
}

func (l *Ledger) today() string {
	return l.opts.Now().UTC().Format(dayLayout)
}

// Acquire charges one call against today's counter and persists the ledger
// before returning. Once the limit is reached it fails with ErrQuotaExceeded
// and leaves the ledger untouched.
func (l *Ledger) Acquire(ctx context.Context, provider string) (Permit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.today()
	doc, err := l.load(ctx)
	if err != nil {
		return Permit{}, fmt.Errorf("%s: %w", provider, err)
	}

	cur, err := doc.day(day)
	if err != nil {
		l.opts.Logger.Error().Err(err).Str("provider", provider).Str("day", day).Msg("refusing call")
		return Permit{}, fmt.Errorf("%s: %w", provider, err)
	}
	if cur.Count >= l.opts.Limit {
		l.opts.Logger.Warn().Str("provider", provider).Str("day", day).Int("count", cur.Count).
			Msg("daily quota exhausted")
		return Permit{}, fmt.Errorf("%s: %w", provider, ErrQuotaExceeded)
	}
	cur.Count++
	doc.days[day] = cur
	l.prune(doc, day)

	body, err := doc.encode()
	if err != nil {
		return Permit{}, err
	}
	if err := l.store.Put(ctx, DocumentName, body); err != nil {
		return Permit{}, fmt.Errorf("persist quota ledger: %w", err)
	}
	l.opts.Logger.Debug().Str("provider", provider).Str("day", day).Int("count", cur.Count).
		Msg("quota permit")
	return Permit{Day: day, Count: cur.Count, Limit: l.opts.Limit}, nil
}

// Usage reports today's counter without creating an entry.
func (l *Ledger) Usage(ctx context.Context) (Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.today()
	doc, err := l.load(ctx)
	if err != nil {
		return Usage{}, err
	}
	cur, err := doc.day(day)
	if err != nil {
		return Usage{}, err
	}
	rem := l.opts.Limit - cur.Count
	if rem < 0 {
		rem = 0
	}
	return Usage{Day: day, Count: cur.Count, Limit: l.opts.Limit, Remaining: rem}, nil
}

// document is the decoded ledger. Day entries that do not decode are kept in
// raw and written back unchanged.
type document struct {
	days map[string]DayUsage
	raw  map[string]json.RawMessage
}

func (d document) day(key string) (DayUsage, error) {
	if _, bad := d.raw[key]; bad {
		return DayUsage{}, fmt.Errorf("%w: entry for %s", ErrLedgerUnreadable, key)
	}
	return d.days[key], nil
}

func (d document) encode() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.days)+len(d.raw))
	for k, v := range d.raw {
		out[k] = v
	}
	for k, v := range d.days {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return json.Marshal(out)
}

// load fails only when the store cannot be read. A document that is not a
// JSON object counts as empty.
func (l *Ledger) load(ctx context.Context) (document, error) {
	body, err := l.store.Get(ctx, DocumentName)
	if err != nil {
		return document{}, fmt.Errorf("%w: %w", ErrLedgerUnreadable, err)
	}
	doc, err := decode(body)
	if err != nil {
		l.opts.Logger.Warn().Err(err).Msg("quota ledger is not a json object, starting empty")
	}
	return doc, nil
}

func decode(body []byte) (document, error) {
	doc := document{days: map[string]DayUsage{}, raw: map[string]json.RawMessage{}}
	if len(body) == 0 {
		return doc, nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return doc, err
	}
	for k, v := range entries {
		var u DayUsage
		if err := json.Unmarshal(v, &u); err != nil {
			doc.raw[k] = v
			continue
		}
		doc.days[k] = u
	}
	return doc, nil
}

func (l *Ledger) prune(doc document, today string) {
	if l.opts.RetentionDays <= 0 {
		return
	}
	now, err := time.Parse(dayLayout, today)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -l.opts.RetentionDays)
	old := func(k string) bool {
		if k == today {
			return false
		}
		d, err := time.Parse(dayLayout, k)
		return err == nil && d.Before(cutoff)
	}
	for k := range doc.days {
		if old(k) {
			delete(doc.days, k)
		}
	}
	for k := range doc.raw {
		if old(k) {
			delete(doc.raw, k)
		}
	}
}
