package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Armin-kho/gheymat-bot/internal/quota"
)

// Gate charges a quota-limited provider before each real upstream call.
type Gate interface {
	Acquire(ctx context.Context, provider string) (quota.Permit, error)
}

type Options struct {
	BitpinURL      string
	BitpinTTL      time.Duration
	BitpinTimeout  time.Duration
	BitpinAttempts int

	BRSURL     string
	BRSKey     string
	BRSTTL     time.Duration
	BRSTimeout time.Duration

	Now    func() time.Time
	Logger zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.BitpinURL == "" {
		o.BitpinURL = DefaultBitpinURL
	}
	if o.BitpinTTL <= 0 {
		o.BitpinTTL = 30 * time.Second
	}
	if o.BitpinTimeout <= 0 {
		o.BitpinTimeout = 8 * time.Second
	}
	if o.BitpinAttempts <= 0 {
		o.BitpinAttempts = 3
	}
	if o.BRSURL == "" {
		o.BRSURL = DefaultBRSURL
	}
	if o.BRSTTL <= 0 {
		o.BRSTTL = 60 * time.Second
	}
	if o.BRSTimeout <= 0 {
		o.BRSTimeout = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Manager provides cached fetches for both providers. The aggregator is
// charged against the gate only when its cache entry is stale.
type Manager struct {
	opts Options
	gate Gate
	log  zerolog.Logger

	bitpinClient *http.Client
	brsClient    *http.Client

	markets *Cache[[]Market]
	brs     *Cache[BRSPayload]
}

func NewManager(gate Gate, opts Options) *Manager {
	opts.setDefaults()
	return &Manager{
		opts:         opts,
		gate:         gate,
		log:          opts.Logger.With().Str("component", "sources").Logger(),
		bitpinClient: &http.Client{Timeout: opts.BitpinTimeout},
		brsClient:    &http.Client{Timeout: opts.BRSTimeout},
		markets:      NewCache[[]Market](opts.Now),
		brs:          NewCache[BRSPayload](opts.Now),
	}
}

// BRSEnabled reports whether an aggregator key is configured.
func (m *Manager) BRSEnabled() bool { return m.opts.BRSKey != "" }

// Bitpin returns the exchange markets, fetching when the cache is stale.
func (m *Manager) Bitpin(ctx context.Context) ([]Market, error) {
	e, err := m.markets.GetOrFetch(ctx, string(ProviderBitpin), m.opts.BitpinTTL, func(ctx context.Context) ([]Market, error) {
		start := time.Now()
		out, err := fetchBitpin(ctx, m.bitpinClient, m.opts.BitpinURL, m.opts.BitpinAttempts, m.log)
		if err != nil {
			return nil, err
		}
		m.log.Debug().Int("markets", len(out)).Dur("took", time.Since(start)).Msg("bitpin fetched")
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return e.Payload, nil
}

// BRS returns the aggregator payload. It fails with ErrDisabled when no key
// is configured and with a wrapped quota.ErrQuotaExceeded when the daily
// limit is reached.
func (m *Manager) BRS(ctx context.Context) (BRSPayload, error) {
	if !m.BRSEnabled() {
		return BRSPayload{}, ErrDisabled
	}
	e, err := m.brs.GetOrFetch(ctx, string(ProviderBRS), m.opts.BRSTTL, m.fetchBRS)
	if err != nil {
		return BRSPayload{}, err
	}
	return e.Payload, nil
}

func (m *Manager) fetchBRS(ctx context.Context) (BRSPayload, error) {
	u, err := brsURL(m.opts.BRSURL, m.opts.BRSKey)
	if err != nil {
		return BRSPayload{}, fmt.Errorf("brs url: %w", err)
	}
	permit, err := m.gate.Acquire(ctx, string(ProviderBRS))
	if err != nil {
		return BRSPayload{}, err
	}
	body, err := httpGet(ctx, m.brsClient, u)
	if err != nil {
		return BRSPayload{}, fmt.Errorf("brs: %w", err)
	}
	out, err := decodeBRS(body, m.log)
	if err != nil {
		return BRSPayload{}, err
	}
	m.log.Debug().Int("count", permit.Count).Int("limit", permit.Limit).Msg("brs fetched")
	return out, nil
}

// LastFetch reports when a provider's cached payload was fetched.
func (m *Manager) LastFetch(p Provider) (time.Time, bool) {
	switch p {
	case ProviderBitpin:
		e, ok := m.markets.Peek(string(p))
		return e.FetchedAt, ok
	case ProviderBRS:
		e, ok := m.brs.Peek(string(p))
		return e.FetchedAt, ok
	}
	return time.Time{}, false
}

// Warm refreshes the given providers if their entries are stale. A disabled
// aggregator is skipped.
func (m *Manager) Warm(ctx context.Context, providers ...Provider) error {
	var firstErr error
	for _, p := range providers {
		var err error
		switch p {
		case ProviderBitpin:
			_, err = m.Bitpin(ctx)
		case ProviderBRS:
			if !m.BRSEnabled() {
				continue
			}
			_, err = m.BRS(ctx)
		default:
			err = fmt.Errorf("unknown provider %q", p)
		}
		if err != nil {
			m.log.Warn().Err(err).Str("provider", string(p)).Msg("warm failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
