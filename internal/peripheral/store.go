package peripheral

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Record is the persisted form of a created peripheral.
//
// Position is assigned by the store and only read back by List.
type Record struct {
	Name      string
	Type      Type
	Address   uint16
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists the set of created peripherals so it survives a restart.
type Store interface {
	// Save inserts or replaces the record for rec.Name. A new name is
	// placed after every stored record; replacing keeps the stored
	// position and creation time.
	Save(ctx context.Context, rec Record) error

	// Delete removes the record for name. Deleting an absent name is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all records ordered by position.
	List(ctx context.Context) ([]Record, error)
}

// SQLiteStore implements Store on the peripherals table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Save upserts rec. rec.Position is ignored.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO peripherals (name, type, address, position, created_at, updated_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM peripherals), ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			address = excluded.address,
			updated_at = excluded.updated_at`,
		rec.Name, string(rec.Type), int64(rec.Address), now, now,
	)
	if err != nil {
		return fmt.Errorf("saving peripheral %s: %w", rec.Name, err)
	}
	return nil
}

// Delete removes the record for name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM peripherals WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting peripheral %s: %w", name, err)
	}
	return nil
}

// List returns all records ordered by position, then name.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, address, position, created_at, updated_at
		FROM peripherals
		ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("querying peripherals: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec              Record
			typ              string
			addr, pos        int64
			created, updated string
		)
		if err := rows.Scan(&rec.Name, &typ, &addr, &pos, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning peripheral row: %w", err)
		}
		rec.Type = Type(typ)
		rec.Address = uint16(addr)
		rec.Position = int(pos)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created) //nolint:errcheck // format is ours
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated) //nolint:errcheck // format is ours
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating peripherals: %w", err)
	}
	return records, nil
}
