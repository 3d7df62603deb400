package database

import (
	"path/filepath"
	"testing"
)

func TestOpenRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "chores", "chore_completions", "push_subscriptions"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenEnablesForeignKeys(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var enabled int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&enabled); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	if enabled != 1 {
		t.Errorf("foreign_keys = %d, want 1", enabled)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chores.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.Close()

	// Reopening must not re-apply migrations.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
}

func TestSeed(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	seeded, err := Seed(db)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !seeded {
		t.Fatal("expected fresh database to be seeded")
	}

	var parents, children, chores int
	db.QueryRow(`SELECT COUNT(*) FROM users WHERE user_type = 'PARENT' AND pin IS NOT NULL`).Scan(&parents)
	db.QueryRow(`SELECT COUNT(*) FROM users WHERE user_type = 'CHILD'`).Scan(&children)
	db.QueryRow(`SELECT COUNT(*) FROM chores WHERE is_active = 1`).Scan(&chores)

	if parents != 1 {
		t.Errorf("parents = %d, want 1", parents)
	}
	if children != 2 {
		t.Errorf("children = %d, want 2", children)
	}
	if chores != len(seedChores) {
		t.Errorf("chores = %d, want %d", chores, len(seedChores))
	}

	var reward int64
	if err := db.QueryRow(`SELECT reward FROM chores WHERE name = 'Feed Pets'`).Scan(&reward); err != nil {
		t.Fatalf("query reward: %v", err)
	}
	if reward != 150 {
		t.Errorf("Feed Pets reward = %d cents, want 150", reward)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := Seed(db); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	seeded, err := Seed(db)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if seeded {
		t.Error("second seed should be a no-op")
	}

	var users int
	db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users)
	if users != 3 {
		t.Errorf("users = %d, want 3", users)
	}
}
