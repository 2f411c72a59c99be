package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Armin-kho/gheymat-bot/internal/db"
	"github.com/Armin-kho/gheymat-bot/internal/items"
)

const DocumentName = "users"

type Mode string

const (
	ModeAll       Mode = "all"
	ModeImportant Mode = "important"
	ModeCustom    Mode = "custom"

	DefaultMode = ModeImportant
)

var (
	ErrInvalidMode   = errors.New("invalid mode")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// ParseMode validates s against the three display modes.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAll, ModeImportant, ModeCustom:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Preference is what a chat wants to see.
type Preference struct {
	Mode   Mode     `json:"mode"`
	Custom []string `json:"custom"`
}

// Has reports whether key is in the custom selection.
func (p Preference) Has(key string) bool {
	return lo.Contains(p.Custom, key)
}

// Default is the preference of a chat that never changed anything.
func Default() Preference {
	return Preference{Mode: DefaultMode, Custom: items.Defaults()}
}

// record mirrors one stored entry; pointers tell a missing field apart.
type record struct {
	Mode   *string  `json:"mode,omitempty"`
	Custom []string `json:"custom"`
}

// Store keeps every chat's preference in one document. Each operation reads
// the whole document, mutates it in memory and writes it back under mu.
type Store struct {
	store db.Store
	log   zerolog.Logger

	mu sync.Mutex
}

func NewStore(store db.Store, log zerolog.Logger) *Store {
	return &Store{store: store, log: log}
}

func chatKey(chatID int64) string { return strconv.FormatInt(chatID, 10) }

// Get returns the stored preference or the default. It never fails and never
// writes.
func (s *Store) Get(ctx context.Context, chatID int64) Preference {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("read preferences, using defaults")
		return Default()
	}
	key := chatKey(chatID)
	return resolve(s.decodeRecord(key, data[key]))
}

// SetMode stores mode for chatID, seeding the custom set with the defaults
// when the chat has no record yet.
func (s *Store) SetMode(ctx context.Context, chatID int64, mode string) error {
	m, err := ParseMode(mode)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load(ctx)
	if err != nil {
		return err
	}
	key := chatKey(chatID)
	rec := s.decodeRecord(key, data[key])
	if rec == nil {
		rec = &record{}
	}
	ms := string(m)
	rec.Mode = &ms
	if rec.Custom == nil {
		rec.Custom = items.Defaults()
	}
	rec.Custom = known(rec.Custom)
	if err := put(data, key, rec); err != nil {
		return err
	}
	return s.save(ctx, data)
}

// Toggle flips key in the chat's custom set and switches the chat to custom
// mode. It returns the updated set, sorted.
func (s *Store) Toggle(ctx context.Context, chatID int64, key string) ([]string, error) {
	if !items.Known(key) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	ck := chatKey(chatID)
	rec := s.decodeRecord(ck, data[ck])
	if rec == nil {
		rec = &record{}
	}
	cur := rec.Custom
	if cur == nil {
		cur = items.Defaults()
	}
	cur = known(cur)
	if lo.Contains(cur, key) {
		cur = lo.Without(cur, key)
	} else {
		cur = append(cur, key)
	}
	sort.Strings(cur)

	mode := string(ModeCustom)
	rec.Mode = &mode
	rec.Custom = cur
	if err := put(data, ck, rec); err != nil {
		return nil, err
	}
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	out := make([]string, len(cur))
	copy(out, cur)
	return out, nil
}

// load returns the document keyed by chat, each record still raw so that
// records this process does not touch are written back byte for byte. Only a
// read error from the store fails; a document that is not a JSON object reads
// as empty.
func (s *Store) load(ctx context.Context) (map[string]json.RawMessage, error) {
	data := map[string]json.RawMessage{}
	body, err := s.store.Get(ctx, DocumentName)
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if len(body) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(body, &data); err != nil || data == nil {
		s.log.Warn().Err(err).Msg("preferences document is corrupt, using defaults")
		return map[string]json.RawMessage{}, nil
	}
	return data, nil
}

// decodeRecord decodes one chat's record field by field. A field of the wrong
// type counts as missing; a record that is not an object yields nil.
func (s *Store) decodeRecord(key string, raw json.RawMessage) *record {
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		s.log.Warn().Err(err).Str("chat", key).Msg("preference record is corrupt, using defaults")
		return nil
	}
	rec := &record{}
	if v, ok := fields["mode"]; ok {
		var m string
		if err := json.Unmarshal(v, &m); err == nil {
			rec.Mode = &m
		}
	}
	if v, ok := fields["custom"]; ok {
		var c []string
		if err := json.Unmarshal(v, &c); err == nil {
			rec.Custom = c
		}
	}
	return rec
}

func put(data map[string]json.RawMessage, key string, rec *record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data[key] = body
	return nil
}

func (s *Store) save(ctx context.Context, data map[string]json.RawMessage) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, DocumentName, body); err != nil {
		return fmt.Errorf("persist preferences: %w", err)
	}
	return nil
}

func resolve(rec *record) Preference {
	p := Default()
	if rec == nil {
		return p
	}
	if rec.Mode != nil {
		if m, err := ParseMode(*rec.Mode); err == nil {
			p.Mode = m
		}
	}
	if rec.Custom != nil {
		p.Custom = known(rec.Custom)
	}
	return p
}

// known drops keys outside the symbol universe and duplicates, keeping order.
func known(keys []string) []string {
	return lo.Uniq(lo.Filter(keys, func(k string, _ int) bool { return items.Known(k) }))
}
