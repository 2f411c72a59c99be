package quota

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/gheymat-bot/internal/db"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newLedger(t *testing.T, limit int, c *clock) (*Ledger, db.Store) {
	t.Helper()
	store, err := db.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return New(store, Options{Limit: limit, Now: c.Now, Logger: zerolog.Nop()}), store
}

func readLedger(t *testing.T, store db.Store) map[string]DayUsage {
	t.Helper()
	body, err := store.Get(context.Background(), DocumentName)
	require.NoError(t, err)
	out := map[string]DayUsage{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestAcquireUpToLimit(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)}
	l, store := newLedger(t, 3, c)

	for i := 1; i <= 3; i++ {
		p, err := l.Acquire(ctx, "brs")
		require.NoError(t, err)
		assert.Equal(t, i, p.Count)
		assert.Equal(t, "2026-10-19", p.Day)
	}

	_, err := l.Acquire(ctx, "brs")
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 3, readLedger(t, store)["2026-10-19"].Count)

	c.Set(time.Date(2026, 10, 20, 0, 0, 1, 0, time.UTC))
	p, err := l.Acquire(ctx, "brs")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count)

	got := readLedger(t, store)
	assert.Equal(t, 3, got["2026-10-19"].Count)
	assert.Equal(t, 1, got["2026-10-20"].Count)
}

func TestDayKeyIsUTC(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	c := &clock{now: time.Date(2026, 10, 20, 2, 0, 0, 0, tehran)}
	l, _ := newLedger(t, 5, c)

	p, err := l.Acquire(context.Background(), "brs")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", p.Day)
}

func TestCountSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	store, err := db.NewFileStore(t.TempDir())
	require.NoError(t, err)

	first := New(store, Options{Limit: 2, Now: c.Now, Logger: zerolog.Nop()})
	_, err = first.Acquire(ctx, "brs")
	require.NoError(t, err)

	second := New(store, Options{Limit: 2, Now: c.Now, Logger: zerolog.Nop()})
	_, err = second.Acquire(ctx, "brs")
	require.NoError(t, err)
	_, err = second.Acquire(ctx, "brs")
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestConcurrentAcquireNeverOvershoots(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	l, store := newLedger(t, 25, c)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, refused := 0, 0
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Acquire(ctx, "brs")
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrQuotaExceeded) {
				refused++
				return
			}
			assert.NoError(t, err)
			granted++
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, granted)
	assert.Equal(t, 35, refused)
	assert.Equal(t, 25, readLedger(t, store)["2026-10-19"].Count)
}

func TestCorruptLedgerStartsEmpty(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	l, store := newLedger(t, 3, c)
	require.NoError(t, store.Put(ctx, DocumentName, []byte(`{"2026-10-19": {"count": 2`)))

	p, err := l.Acquire(ctx, "brs")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count)
}

func TestBadOldDayIsKeptAndCapHolds(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	l, store := newLedger(t, 3, c)
	require.NoError(t, store.Put(ctx, DocumentName, []byte(
		`{"2026-10-18":{"count":"7"},"2026-10-19":{"count":2}}`)))

	p, err := l.Acquire(ctx, "brs")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Count)

	_, err = l.Acquire(ctx, "brs")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	body, err := store.Get(ctx, DocumentName)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2026-10-18":{"count":"7"},"2026-10-19":{"count":3}}`, string(body))
}

func TestUnreadableTodayRefusesCall(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	l, store := newLedger(t, 3, c)
	stored := `{"2026-10-19":{"count":"2"}}`
	require.NoError(t, store.Put(ctx, DocumentName, []byte(stored)))

	_, err := l.Acquire(ctx, "brs")
	require.ErrorIs(t, err, ErrLedgerUnreadable)
	_, err = l.Usage(ctx)
	require.ErrorIs(t, err, ErrLedgerUnreadable)

	body, err := store.Get(ctx, DocumentName)
	require.NoError(t, err)
	assert.JSONEq(t, stored, string(body))
}

type failingStore struct {
	db.Store
	puts int
}

func (f *failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (f *failingStore) Put(context.Context, string, []byte) error {
	f.puts++
	return nil
}

func TestStoreReadErrorRefusesWithoutWriting(t *testing.T) {
	c := &clock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	fs := &failingStore{}
	l := New(fs, Options{Limit: 3, Now: c.Now, Logger: zerolog.Nop()})

	_, err := l.Acquire(context.Background(), "brs")
	require.ErrorIs(t, err, ErrLedgerUnreadable)
	assert.Zero(t, fs.puts)
}

func TestRetentionKeepsRecentDays(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	store, err := db.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, DocumentName, []byte(
		`{"2026-09-01":{"count":9},"2026-10-17":{"count":4},"2026-10-19":{"count":1},"legacy":{"count":3}}`)))

	l := New(store, Options{Limit: 10, RetentionDays: 7, Now: c.Now, Logger: zerolog.Nop()})
	p, err := l.Acquire(ctx, "brs")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Count)

	got := readLedger(t, store)
	assert.NotContains(t, got, "2026-09-01")
	assert.Equal(t, 4, got["2026-10-17"].Count)
	assert.Equal(t, 3, got["legacy"].Count)
}

func TestUsageDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	l, store := newLedger(t, 3, c)

	u, err := l.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, Usage{Day: "2026-10-19", Count: 0, Limit: 3, Remaining: 3}, u)

	body, err := store.Get(ctx, DocumentName)
	require.NoError(t, err)
	assert.Nil(t, body)
}
