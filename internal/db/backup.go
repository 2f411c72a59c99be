package db

import (
	"context"
	"fmt"
	"strings"
)

// BackupTo creates a consistent SQLite snapshot at dstPath using VACUUM INTO.
// This works even when WAL mode is enabled.
func (d *DB) BackupTo(ctx context.Context, dstPath string) error {
	// Escape single quotes for SQLite string literal
	escaped := strings.ReplaceAll(dstPath, "'", "''")
	_, err := d.sql.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s';", escaped))
	return err
}

// ExportTo writes every document into dir using the file backend layout, so a
// SQLite deployment can always be moved back to plain JSON files.
func (d *DB) ExportTo(ctx context.Context, dir string) error {
	fs, err := NewFileStore(dir)
	if err != nil {
		return err
	}
	names, err := d.Names(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		body, err := d.Get(ctx, n)
		if err != nil {
			return fmt.Errorf("export %s: %w", n, err)
		}
		if err := fs.Put(ctx, n, body); err != nil {
			return fmt.Errorf("export %s: %w", n, err)
		}
	}
	return nil
}
