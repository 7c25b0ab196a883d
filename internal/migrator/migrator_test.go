package migrator

import (
	"context"
	"os"
	"testing"

	"github.com/telemirror/telemirror/migrations"
)

func TestNewWithFS_NilFS(t *testing.T) {
	_, err := NewWithFS(nil)
	if err == nil {
		t.Fatal("NewWithFS(nil) expected error, got nil")
	}
}

func TestUp_EmptyURL(t *testing.T) {
	m, err := NewWithFS(migrations.FS)
	if err != nil {
		t.Fatalf("NewWithFS failed: %v", err)
	}

	if err := m.Up(context.Background(), ""); err == nil {
		t.Fatal("Up with empty URL expected error, got nil")
	}
}

func TestUp_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration test; set INTEGRATION_TEST=1 to run")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	m, err := NewWithFS(migrations.FS)
	if err != nil {
		t.Fatalf("NewWithFS failed: %v", err)
	}

	if err := m.Up(context.Background(), dbURL); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	version, dirty, err := m.Version(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if dirty {
		t.Error("migration state is dirty")
	}
	if version == 0 {
		t.Error("expected non-zero migration version")
	}
}
