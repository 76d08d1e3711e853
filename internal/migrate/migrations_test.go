package migrate_test

import (
	"testing"

	"postline/internal/db"
	"postline/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := migrate.Migrate(conn); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}

	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version after migrate: %v", err)
	}
	if v < 1 {
		t.Fatalf("version after migrate = %d", v)
	}
}
