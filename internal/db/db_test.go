package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := Open(BackendFile, t.TempDir())
	require.NoError(t, err)
	sq, err := Open(BackendSQLite, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = fs.Close()
		_ = sq.Close()
	})
	return map[string]Store{BackendFile: fs, BackendSQLite: sq}
}

func TestStoreMissingDocument(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			body, err := s.Get(context.Background(), "users")
			require.NoError(t, err)
			assert.Nil(t, body)
		})
	}
}

func TestStorePutReplaces(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "brs_usage", []byte(`{"2026-10-19":{"count":1}}`)))
			require.NoError(t, s.Put(ctx, "brs_usage", []byte(`{"2026-10-19":{"count":2}}`)))

			body, err := s.Get(ctx, "brs_usage")
			require.NoError(t, err)
			assert.JSONEq(t, `{"2026-10-19":{"count":2}}`, string(body))
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	require.Error(t, err)
}

func TestFileStoreLayoutAndNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs.Put(context.Background(), "users", []byte(`{}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "users.json", entries[0].Name())
}

func TestFileStorePutVisibleAfterReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs.Put(ctx, "brs_usage", []byte(`{"2026-10-19":{"count":1}}`)))
	require.NoError(t, fs.Put(ctx, "brs_usage", []byte(`{"2026-10-19":{"count":2}}`)))
	require.NoError(t, syncDir(dir))

	again, err := NewFileStore(dir)
	require.NoError(t, err)
	body, err := again.Get(ctx, "brs_usage")
	require.NoError(t, err)
	assert.JSONEq(t, `{"2026-10-19":{"count":2}}`, string(body))

	require.Error(t, syncDir(filepath.Join(dir, "missing")))
}

func TestFileStoreRejectsPathNames(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.Error(t, fs.Put(context.Background(), "../users", []byte(`{}`)))
	_, err = fs.Get(context.Background(), "")
	require.Error(t, err)
}

func TestExportAndBackup(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	d, err := OpenSQL(filepath.Join(src, "bot.db"))
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Put(ctx, "users", []byte(`{"42":{"mode":"all","custom":[]}}`)))
	require.NoError(t, d.Put(ctx, "brs_usage", []byte(`{}`)))

	names, err := d.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"brs_usage", "users"}, names)

	out := t.TempDir()
	require.NoError(t, d.ExportTo(ctx, out))
	b, err := os.ReadFile(filepath.Join(out, "users.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"42":{"mode":"all","custom":[]}}`, string(b))

	backup := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, d.BackupTo(ctx, backup))
	restored, err := OpenSQL(backup)
	require.NoError(t, err)
	defer restored.Close()
	body, err := restored.Get(ctx, "users")
	require.NoError(t, err)
	assert.JSONEq(t, `{"42":{"mode":"all","custom":[]}}`, string(body))
}
