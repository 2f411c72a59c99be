package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
)

const DefaultBitpinURL = "https://api.bitpin.ir/v5/mkt/markets/?quote=IRT&limit=6"

type bitpinResponse struct {
	Results []json.RawMessage `json:"results"`
}

type bitpinMarket struct {
	Code      Field `json:"code"`
	Name      Field `json:"name"`
	Currency1 *struct {
		Title Field `json:"title"`
	} `json:"currency1"`
	PriceInfo *struct {
		Price  Field `json:"price"`
		Change Field `json:"change"`
		Min    Field `json:"min"`
		Max    Field `json:"max"`
	} `json:"price_info"`
}

func (r bitpinMarket) market() Market {
	m := Market{
		Code:   strings.ReplaceAll(r.Code.Or("N/A"), "_IRT", ""),
		Name:   r.Name.Or("N/A"),
		Price:  "-",
		Change: "0",
		Min:    "-",
		Max:    "-",
	}
	if r.Currency1 != nil && r.Currency1.Title.Valid {
		m.Name = r.Currency1.Title.Raw
	}
	if pi := r.PriceInfo; pi != nil {
		m.Price = pi.Price.Or(m.Price)
		m.Change = pi.Change.Or(m.Change)
		m.Min = pi.Min.Or(m.Min)
		m.Max = pi.Max.Or(m.Max)
	}
	return m
}

// decodeBitpin parses the markets endpoint. Records that do not decode are
// skipped.
func decodeBitpin(body []byte, log zerolog.Logger) ([]Market, error) {
	var resp bitpinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("bitpin decode: %w: %v (%s)", ErrMalformedPayload, err, snippet(body))
	}
	out := make([]Market, 0, len(resp.Results))
	for i, raw := range resp.Results {
		var r bitpinMarket
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Debug().Err(err).Int("index", i).Msg("skip bitpin record")
			continue
		}
		out = append(out, r.market())
	}
	return out, nil
}

// fetchBitpin retries transport errors and 5xx responses; anything else
// fails immediately.
func fetchBitpin(ctx context.Context, client *http.Client, url string, attempts int, log zerolog.Logger) ([]Market, error) {
	if attempts < 1 {
		attempts = 1
	}
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    2 * time.Second,
		Jitter: true,
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			d := b.Duration()
			log.Debug().Err(lastErr).Int("attempt", i+1).Dur("wait", d).Msg("retry bitpin")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d):
			}
		}
		body, err := httpGet(ctx, client, url)
		if err == nil {
			return decodeBitpin(body, log)
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			break
		}
	}
	return nil, fmt.Errorf("bitpin: %w", lastErr)
}
