package migrate

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"smartbanker/backend/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	if err := Run("", Up); !errors.Is(err, db.ErrEmptyDSN) {
		t.Fatalf("Run(\"\") error = %v, want ErrEmptyDSN", err)
	}
	if _, _, err := Version(""); !errors.Is(err, db.ErrEmptyDSN) {
		t.Fatalf("Version(\"\") error = %v, want ErrEmptyDSN", err)
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "sideways", "UP", "Down"} {
		t.Run(direction, func(t *testing.T) {
			err := Run("postgres://localhost/test", direction)
			if err == nil {
				t.Fatalf("Run with direction %q should return error", direction)
			}
			if !strings.Contains(err.Error(), "direction") {
				t.Errorf("error %q should mention direction", err)
			}
		})
	}
}

func TestRun_UnsupportedScheme(t *testing.T) {
	if err := Run("mysql://localhost/test", Up); err == nil {
		t.Fatal("Run with an unregistered database scheme should fail")
	}
}

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("migrations: %d up, %d down; want matching non-zero counts", ups, downs)
	}
}
