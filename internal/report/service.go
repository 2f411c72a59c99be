package report

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Armin-kho/gheymat-bot/internal/prefs"
	"github.com/Armin-kho/gheymat-bot/internal/quota"
	"github.com/Armin-kho/gheymat-bot/internal/sources"
)

// QuotaNotice is shown in place of the aggregator sections once its daily
// limit is reached.
const QuotaNotice = "Daily request limit reached."

type Feeds interface {
	Bitpin(ctx context.Context) ([]sources.Market, error)
	BRS(ctx context.Context) (sources.BRSPayload, error)
}

type Preferences interface {
	Get(ctx context.Context, chatID int64) prefs.Preference
}

// Service builds a chat's snapshot from the live feeds.
type Service struct {
	feeds    Feeds
	prefs    Preferences
	composer Composer
	log      zerolog.Logger
}

func NewService(feeds Feeds, p Preferences, composer Composer, log zerolog.Logger) *Service {
	return &Service{feeds: feeds, prefs: p, composer: composer, log: log}
}

// Snapshot never fails. A feed that errors only drops its sections; an
// exhausted quota adds a Notice instead.
func (s *Service) Snapshot(ctx context.Context, chatID int64) Snapshot {
	var (
		markets []sources.Market
		brs     *sources.BRSPayload
		notice  *Notice
	)

	var g errgroup.Group
	g.Go(func() error {
		m, err := s.feeds.Bitpin(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("provider", string(sources.ProviderBitpin)).Msg("feed unavailable")
			return nil
		}
		markets = m
		return nil
	})
	g.Go(func() error {
		p, err := s.feeds.BRS(ctx)
		switch {
		case err == nil:
			brs = &p
		case errors.Is(err, sources.ErrDisabled):
		case errors.Is(err, quota.ErrQuotaExceeded):
			notice = &Notice{Provider: sources.ProviderBRS, Text: QuotaNotice}
		default:
			s.log.Warn().Err(err).Str("provider", string(sources.ProviderBRS)).Msg("feed unavailable")
		}
		return nil
	})
	_ = g.Wait()

	pref := s.prefs.Get(ctx, chatID)
	snap := s.composer.Compose(markets, brs, pref)
	if notice != nil {
		snap.Notices = append(snap.Notices, *notice)
	}
	return snap
}
