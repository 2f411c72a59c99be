package report

import (
	"github.com/Armin-kho/gheymat-bot/internal/items"
	"github.com/Armin-kho/gheymat-bot/internal/prefs"
	"github.com/Armin-kho/gheymat-bot/internal/sources"
	"github.com/Armin-kho/gheymat-bot/internal/utils"
)

type Kind string

const (
	KindExchange Kind = "exchange"
	KindGold     Kind = "gold"
	KindCurrency Kind = "currency"
	KindCrypto   Kind = "crypto"
)

// Row is one rendered instrument. Price, Min and Max carry thousands
// separators; Change carries the direction glyph.
type Row struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Price  string `json:"price"`
	Change string `json:"change"`
	Unit   string `json:"unit,omitempty"`
	Min    string `json:"min,omitempty"`
	Max    string `json:"max,omitempty"`
}

type Section struct {
	Kind Kind  `json:"kind"`
	Rows []Row `json:"rows"`
}

// Notice replaces a provider's sections when it could not be queried for a
// reason the user should see.
type Notice struct {
	Provider sources.Provider `json:"provider"`
	Text     string           `json:"text"`
}

// Snapshot is the filtered report for one chat. Sections are ordered
// exchange, gold, currency, crypto and never empty.
type Snapshot struct {
	Mode     prefs.Mode `json:"mode"`
	Sections []Section  `json:"sections"`
	Notices  []Notice   `json:"notices,omitempty"`
}

func (s Snapshot) Section(k Kind) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.Kind == k {
			return sec, true
		}
	}
	return Section{}, false
}

func (s Snapshot) Notice(p sources.Provider) (Notice, bool) {
	for _, n := range s.Notices {
		if n.Provider == p {
			return n, true
		}
	}
	return Notice{}, false
}

// Empty reports whether neither feed contributed anything.
func (s Snapshot) Empty() bool {
	return len(s.Sections) == 0 && len(s.Notices) == 0
}

// Composer filters feeds into a Snapshot. The zero value shows every
// exchange pair.
type Composer struct {
	// AllowPairs restricts the exchange section to these codes (without the
	// quote suffix) when non-empty.
	AllowPairs []string
}

// Compose is Composer{}.Compose.
func Compose(markets []sources.Market, brs *sources.BRSPayload, pref prefs.Preference) Snapshot {
	return Composer{}.Compose(markets, brs, pref)
}

// Compose is pure: a nil brs or empty markets only drop their sections.
func (c Composer) Compose(markets []sources.Market, brs *sources.BRSPayload, pref prefs.Preference) Snapshot {
	snap := Snapshot{Mode: pref.Mode, Sections: []Section{}}

	if rows := c.exchangeRows(markets); len(rows) > 0 {
		snap.Sections = append(snap.Sections, Section{Kind: KindExchange, Rows: rows})
	}
	if brs == nil {
		return snap
	}

	var custom map[string]bool
	if pref.Mode == prefs.ModeCustom {
		custom = items.NativeSet(pref.Custom)
	}
	groups := []struct {
		kind   Kind
		cat    items.Category
		quotes []sources.Quote
	}{
		{KindGold, items.CategoryGold, brs.Gold},
		{KindCurrency, items.CategoryCurrency, brs.Currency},
		{KindCrypto, items.CategoryCrypto, brs.Crypto},
	}
	for _, g := range groups {
		var rows []Row
		for _, q := range g.quotes {
			if !include(pref.Mode, g.cat, q.Symbol, custom) {
				continue
			}
			rows = append(rows, Row{
				Name:   q.DisplayName(),
				Code:   q.Symbol,
				Price:  utils.FormatPrice(q.Price.Or("-")),
				Change: utils.ChangeArrow(q.ChangePercent.Raw),
				Unit:   q.Unit,
			})
		}
		if len(rows) > 0 {
			snap.Sections = append(snap.Sections, Section{Kind: g.kind, Rows: rows})
		}
	}
	return snap
}

func (c Composer) exchangeRows(markets []sources.Market) []Row {
	var allow map[string]bool
	if len(c.AllowPairs) > 0 {
		allow = make(map[string]bool, len(c.AllowPairs))
		for _, p := range c.AllowPairs {
			allow[p] = true
		}
	}
	var rows []Row
	for _, m := range markets {
		if allow != nil && !allow[m.Code] {
			continue
		}
		rows = append(rows, Row{
			Name:   m.Name,
			Code:   m.Code,
			Price:  utils.FormatPrice(m.Price),
			Change: utils.ChangeArrow(m.Change),
			Min:    utils.FormatPrice(m.Min),
			Max:    utils.FormatPrice(m.Max),
		})
	}
	return rows
}

func include(mode prefs.Mode, cat items.Category, symbol string, custom map[string]bool) bool {
	switch mode {
	case prefs.ModeAll:
		return true
	case prefs.ModeCustom:
		return custom[symbol]
	default:
		return items.IsImportant(cat, symbol)
	}
}
