package prefs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/gheymat-bot/internal/db"
	"github.com/Armin-kho/gheymat-bot/internal/items"
)

func newStore(t *testing.T) (*Store, db.Store) {
	t.Helper()
	fs, err := db.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewStore(fs, zerolog.Nop()), fs
}

func TestGetDefaultsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	s, fs := newStore(t)

	p := s.Get(ctx, 42)
	assert.Equal(t, ModeImportant, p.Mode)
	assert.Equal(t, items.Defaults(), p.Custom)

	body, err := fs.Get(ctx, DocumentName)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestSetMode(t *testing.T) {
	ctx := context.Background()
	s, fs := newStore(t)

	require.NoError(t, s.SetMode(ctx, 42, "all"))
	p := s.Get(ctx, 42)
	assert.Equal(t, ModeAll, p.Mode)
	assert.Equal(t, items.Defaults(), p.Custom)

	body, err := fs.Get(ctx, DocumentName)
	require.NoError(t, err)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "all", raw["42"]["mode"])
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	ctx := context.Background()
	s, fs := newStore(t)

	err := s.SetMode(ctx, 42, "everything")
	require.ErrorIs(t, err, ErrInvalidMode)

	body, err := fs.Get(ctx, DocumentName)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestToggleTwiceRestoresSet(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	got, err := s.Toggle(ctx, 7, "usd")
	require.NoError(t, err)
	assert.NotContains(t, got, "usd")
	assert.IsIncreasing(t, got)
	assert.Equal(t, ModeCustom, s.Get(ctx, 7).Mode)

	got, err = s.Toggle(ctx, 7, "usd")
	require.NoError(t, err)
	assert.Contains(t, got, "usd")
	assert.ElementsMatch(t, items.Defaults(), got)
	assert.IsIncreasing(t, got)
}

func TestToggleAddsNewSymbol(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	got, err := s.Toggle(ctx, 7, "eur")
	require.NoError(t, err)
	assert.Contains(t, got, "eur")
	assert.Len(t, got, len(items.Defaults())+1)
	assert.True(t, s.Get(ctx, 7).Has("eur"))
}

func TestToggleRejectsUnknownSymbol(t *testing.T) {
	ctx := context.Background()
	s, fs := newStore(t)

	_, err := s.Toggle(ctx, 7, "doge")
	require.ErrorIs(t, err, ErrUnknownSymbol)

	body, err := fs.Get(ctx, DocumentName)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestChatsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.SetMode(ctx, 1, "all"))
	_, err := s.Toggle(ctx, 2, "btc")
	require.NoError(t, err)

	assert.Equal(t, ModeAll, s.Get(ctx, 1).Mode)
	assert.True(t, s.Get(ctx, 1).Has("btc"))
	assert.False(t, s.Get(ctx, 2).Has("btc"))
}

func TestCorruptDocumentFallsBack(t *testing.T) {
	ctx := context.Background()
	s, fs := newStore(t)
	require.NoError(t, fs.Put(ctx, DocumentName, []byte(`{"42": {"mode": `)))

	assert.Equal(t, Default(), s.Get(ctx, 42))

	require.NoError(t, s.SetMode(ctx, 42, "custom"))
	assert.Equal(t, ModeCustom, s.Get(ctx, 42).Mode)
}

func TestPartialRecordFillsDefaults(t *testing.T) {
	ctx := context.Background()
	s, fs := newStore(t)
	require.NoError(t, fs.Put(ctx, DocumentName, []byte(
		`{"1":{"custom":["btc","doge"]},"2":{"mode":"weird"}}`)))

	p1 := s.Get(ctx, 1)
	assert.Equal(t, ModeImportant, p1.Mode)
	assert.Equal(t, []string{"btc"}, p1.Custom)

	p2 := s.Get(ctx, 2)
	assert.Equal(t, ModeImportant, p2.Mode)
	assert.Equal(t, items.Defaults(), p2.Custom)
}

func TestWrongTypedRecordDoesNotLoseOtherChats(t *testing.T) {
	ctx := context.Background()
	s, fs := newStore(t)
	require.NoError(t, fs.Put(ctx, DocumentName, []byte(
		`{"1":{"mode":"all","custom":["btc"]},"2":{"mode":"custom","custom":"usd"},"4":{"mode":5},"5":"junk"}`)))

	p1 := s.Get(ctx, 1)
	assert.Equal(t, ModeAll, p1.Mode)
	assert.Equal(t, []string{"btc"}, p1.Custom)

	p2 := s.Get(ctx, 2)
	assert.Equal(t, ModeCustom, p2.Mode)
	assert.Equal(t, items.Defaults(), p2.Custom)

	assert.Equal(t, Default(), s.Get(ctx, 4))
	assert.Equal(t, Default(), s.Get(ctx, 5))

	require.NoError(t, s.SetMode(ctx, 3, "all"))

	body, err := fs.Get(ctx, DocumentName)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.JSONEq(t, `{"mode":"all","custom":["btc"]}`, string(doc["1"]))
	assert.JSONEq(t, `{"mode":"custom","custom":"usd"}`, string(doc["2"]))
	assert.JSONEq(t, `{"mode":5}`, string(doc["4"]))
	assert.JSONEq(t, `"junk"`, string(doc["5"]))
	assert.Contains(t, doc, "3")

	sel, err := s.Toggle(ctx, 2, "gbp")
	require.NoError(t, err)
	assert.Contains(t, sel, "gbp")
	assert.Equal(t, ModeCustom, s.Get(ctx, 2).Mode)
	assert.Equal(t, ModeAll, s.Get(ctx, 1).Mode)
}
