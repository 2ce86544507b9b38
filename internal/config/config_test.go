package config

import (
	"strings"
	"testing"
)

func TestResolveSQLitePath(t *testing.T) {
	// An explicitly empty path is a config error, not a panic
	if _, err := resolveSQLitePath(""); err == nil {
		t.Error("empty path accepted")
	}

	path, err := resolveSQLitePath(":memory:")
	if err != nil || path != ":memory:" {
		t.Errorf("resolveSQLitePath(:memory:) = %q, %v", path, err)
	}

	path, err = resolveSQLitePath("/var/lib/guard/storage.db")
	if err != nil || path != "/var/lib/guard/storage.db" {
		t.Errorf("absolute path changed: %q, %v", path, err)
	}

	path, err = resolveSQLitePath("data/storage.db")
	if err != nil {
		t.Fatalf("relative path rejected: %v", err)
	}
	if !strings.HasSuffix(path, "/data/storage.db") || path == "data/storage.db" {
		t.Errorf("relative path not anchored in instance folder: %q", path)
	}
}
