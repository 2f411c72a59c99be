package sources

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

const DefaultBRSURL = "https://brsapi.ir/Api/Market/Gold_Currency.php"

type brsResponse struct {
	Gold     []json.RawMessage `json:"gold"`
	Currency []json.RawMessage `json:"currency"`
	Crypto   []json.RawMessage `json:"cryptocurrency"`
}

type brsQuote struct {
	Symbol        Field `json:"symbol"`
	Name          Field `json:"name"`
	NameEn        Field `json:"name_en"`
	Price         Field `json:"price"`
	Unit          Field `json:"unit"`
	ChangePercent Field `json:"change_percent"`
}

// brsURL adds the API key to base, keeping any query it already has.
func brsURL(base, key string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeBRS(body []byte, log zerolog.Logger) (BRSPayload, error) {
	var resp brsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return BRSPayload{}, fmt.Errorf("brs decode: %w: %v (%s)", ErrMalformedPayload, err, snippet(body))
	}
	return BRSPayload{
		Gold:     decodeQuotes("gold", resp.Gold, log),
		Currency: decodeQuotes("currency", resp.Currency, log),
		Crypto:   decodeQuotes("cryptocurrency", resp.Crypto, log),
	}, nil
}

// decodeQuotes keeps feed order and skips records without a symbol or with
// a non-scalar field.
func decodeQuotes(section string, raws []json.RawMessage, log zerolog.Logger) []Quote {
	out := make([]Quote, 0, len(raws))
	for i, raw := range raws {
		var r brsQuote
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Debug().Err(err).Str("section", section).Int("index", i).Msg("skip brs record")
			continue
		}
		if r.Symbol.Raw == "" {
			log.Debug().Str("section", section).Int("index", i).Msg("skip brs record without symbol")
			continue
		}
		out = append(out, Quote{
			Symbol:        r.Symbol.Raw,
			Name:          r.Name.Raw,
			NameEn:        r.NameEn.Raw,
			Price:         r.Price,
			Unit:          r.Unit.Raw,
			ChangePercent: r.ChangePercent,
		})
	}
	return out
}
