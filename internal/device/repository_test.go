package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dispatch/migrations"
)

// setupTestRepo opens a migrated SQLite database in a temp dir.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func testDevice(id, protocolID string) *Device {
	return &Device{
		ID:       id,
		Name:     "Device " + id,
		Protocol: protocolID,
		Metadata: Metadata{"firmware": "1.2.0", "channels": []any{"a", "b"}},
		Enabled:  true,
	}
}

func TestSQLiteRepository_CreateGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	d := testDevice("dev-1", "graylogic-json")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.CreatedAt.IsZero() || d.UpdatedAt.IsZero() {
		t.Error("Create() did not stamp timestamps")
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Protocol != "graylogic-json" || !got.Enabled {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.Metadata["firmware"] != "1.2.0" {
		t.Errorf("Metadata[firmware] = %v, want 1.2.0", got.Metadata["firmware"])
	}

	if err := repo.Create(ctx, testDevice("dev-1", "other")); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrDeviceExists", err)
	}
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo := setupTestRepo(t)

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_ListByProtocol(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, d := range []*Device{
		testDevice("dev-b", "graylogic-json"),
		testDevice("dev-a", "graylogic-json"),
		testDevice("dev-c", "modbus"),
	} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create(%s) error = %v", d.ID, err)
		}
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "dev-a" {
		t.Errorf("List() = %d devices, first %q", len(all), all[0].ID)
	}

	jsonDevices, err := repo.ListByProtocol(ctx, "graylogic-json")
	if err != nil {
		t.Fatalf("ListByProtocol() error = %v", err)
	}
	if len(jsonDevices) != 2 {
		t.Errorf("ListByProtocol() = %d devices, want 2", len(jsonDevices))
	}
}

func TestSQLiteRepository_UpdateDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	d := testDevice("dev-1", "graylogic-json")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	d.Protocol = "modbus"
	d.Enabled = false
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, "dev-1")
	if got.Protocol != "modbus" || got.Enabled {
		t.Errorf("after Update() = %+v", got)
	}

	if err := repo.Update(ctx, testDevice("ghost", "x")); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrDeviceNotFound", err)
	}

	if err := repo.Delete(ctx, "dev-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "dev-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDeviceNotFound", err)
	}
}
