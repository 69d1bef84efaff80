package common

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "does-not-exist.env")); err != nil {
		t.Fatalf("missing file must be a no-op: %v", err)
	}
}

func TestLoadEnvFileSetsVariables(t *testing.T) {
	path := writeEnvFile(t, "# comment\n\nFOO_TEST_KEY=bar\nQUOTED_TEST_KEY=\"with spaces\"\nno-equals-line\n")
	t.Setenv("FOO_TEST_KEY", "")
	os.Unsetenv("FOO_TEST_KEY")
	t.Setenv("QUOTED_TEST_KEY", "")
	os.Unsetenv("QUOTED_TEST_KEY")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("FOO_TEST_KEY"); got != "bar" {
		t.Fatalf("FOO_TEST_KEY=%q", got)
	}
	if got := os.Getenv("QUOTED_TEST_KEY"); got != "with spaces" {
		t.Fatalf("QUOTED_TEST_KEY=%q", got)
	}
}

func TestLoadEnvFilePreservesExisting(t *testing.T) {
	path := writeEnvFile(t, "PRESET_TEST_KEY=from-file\n")
	t.Setenv("PRESET_TEST_KEY", "from-env")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("PRESET_TEST_KEY"); got != "from-env" {
		t.Fatalf("existing value must win, got %q", got)
	}
}

func TestLoadEnvFileDirectoryFails(t *testing.T) {
	if err := LoadEnvFile(t.TempDir()); err == nil {
		t.Fatal("reading a directory must fail")
	}
}
