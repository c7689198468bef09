package peripheral

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/iobridge/internal/infrastructure/config"
	"github.com/nerrad567/iobridge/internal/infrastructure/database"
	_ "github.com/nerrad567/iobridge/migrations" // registers the schema
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "store.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteStore(db.DB)
}

func TestSQLiteStore_SaveListDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	records := []Record{
		{Name: "oled", Type: TypeSSD1306, Address: 0x3C},
		{Name: "adc1", Type: TypeADS1015, Address: 0x48},
		{Name: "touch", Type: TypeMPR121, Address: 0x5A},
	}
	for _, rec := range records {
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("Save(%s) error = %v", rec.Name, err)
		}
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	wantOrder := []string{"oled", "adc1", "touch"}
	if len(got) != len(wantOrder) {
		t.Fatalf("List() returned %d records, want %d", len(got), len(wantOrder))
	}
	for i, name := range wantOrder {
		if got[i].Name != name {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].Name, name)
		}
	}
	if got[1].Type != TypeADS1015 || got[1].Address != 0x48 {
		t.Errorf("adc1 = %+v", got[1])
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	if err := store.Delete(ctx, "touch"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "touch"); err != nil {
		t.Errorf("Delete() of absent name error = %v", err)
	}
	got, _ = store.List(ctx)
	if len(got) != 2 {
		t.Errorf("List() after Delete = %d records, want 2", len(got))
	}
}

func TestSQLiteStore_UpsertKeepsCreatedAt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return first }
	if err := store.Save(ctx, Record{Name: "adc", Type: TypeADS1015, Address: 0x48}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	store.now = func() time.Time { return first.Add(time.Hour) }
	if err := store.Save(ctx, Record{Name: "adc", Type: TypeADS1115, Address: 0x49}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() = %d records, want 1", len(got))
	}
	rec := got[0]
	if rec.Type != TypeADS1115 || rec.Address != 0x49 {
		t.Errorf("record not replaced: %+v", rec)
	}
	if !rec.CreatedAt.Equal(first) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, first)
	}
	if !rec.UpdatedAt.Equal(first.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, first.Add(time.Hour))
	}
}

func TestSQLiteStore_PositionsOnlyGrow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	save := func(name string, addr uint16) {
		t.Helper()
		if err := store.Save(ctx, Record{Name: name, Type: TypeADS1015, Address: addr}); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}
	save("a", 0x48)
	save("zeta", 0x49)
	save("omega", 0x4A)
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	save("beta", 0x4B)
	save("zeta", 0x4C) // replace keeps its place

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	seen := make(map[int]string)
	for _, rec := range got {
		names = append(names, rec.Name)
		if other, dup := seen[rec.Position]; dup {
			t.Errorf("%s and %s share position %d", other, rec.Name, rec.Position)
		}
		seen[rec.Position] = rec.Name
	}
	if want := []string{"zeta", "omega", "beta"}; !slices.Equal(names, want) {
		t.Errorf("List() order = %v, want %v", names, want)
	}
}

func TestSQLiteStore_RejectsOutOfRangeAddress(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(context.Background(), Record{Name: "bad", Type: TypeADS1015, Address: 0x7F}); err == nil {
		t.Error("Save() should reject an address outside the 7-bit device range")
	}
}
