package sources

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Provider string

const (
	ProviderBitpin Provider = "bitpin"
	ProviderBRS    Provider = "brs"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedPayload    = errors.New("malformed payload")
	// ErrDisabled means the provider has no credentials configured.
	ErrDisabled = errors.New("provider disabled")
)

// Field is a loosely typed scalar from an upstream payload. Numbers and
// strings are both kept as their raw text so rendering can decide how to
// parse them.
type Field struct {
	Raw   string
	Valid bool
}

func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = Field{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Field{Raw: s, Valid: true}
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("%w: expected scalar, got %s", ErrMalformedPayload, kindOf(b[0]))
	default:
		*f = Field{Raw: string(b), Valid: true}
	}
	return nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Raw)
}

// Or returns the raw text, or def when the field was missing or null.
func (f Field) Or(def string) string {
	if !f.Valid {
		return def
	}
	return f.Raw
}

func kindOf(c byte) string {
	if c == '{' {
		return "object"
	}
	return "array"
}

// Market is one exchange pair with its defaults already applied.
type Market struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Change string `json:"change"`
	Min    string `json:"min"`
	Max    string `json:"max"`
}

// Quote is one aggregator record.
type Quote struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name,omitempty"`
	NameEn        string `json:"name_en,omitempty"`
	Price         Field  `json:"price"`
	Unit          string `json:"unit,omitempty"`
	ChangePercent Field  `json:"change_percent"`
}

// DisplayName prefers the English name, then the native name, then the
// symbol.
func (q Quote) DisplayName() string {
	if q.NameEn != "" {
		return q.NameEn
	}
	if q.Name != "" {
		return q.Name
	}
	return q.Symbol
}

// BRSPayload is the aggregator response split into its three arrays, in feed
// order.
type BRSPayload struct {
	Gold     []Quote `json:"gold"`
	Currency []Quote `json:"currency"`
	Crypto   []Quote `json:"cryptocurrency"`
}

// Empty reports whether no array carried a usable record.
func (p BRSPayload) Empty() bool {
	return len(p.Gold) == 0 && len(p.Currency) == 0 && len(p.Crypto) == 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
