package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_SetsAndPreservesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `
# relay settings
RELAY_TEST_PLAIN=one
export RELAY_TEST_EXPORTED=two
RELAY_TEST_QUOTED="three four"
RELAY_TEST_SINGLE='five'
RELAY_TEST_EXISTING=from-file
not-a-pair
=no-key
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("RELAY_TEST_EXISTING", "from-env")
	for _, key := range []string{"RELAY_TEST_PLAIN", "RELAY_TEST_EXPORTED", "RELAY_TEST_QUOTED", "RELAY_TEST_SINGLE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	checks := map[string]string{
		"RELAY_TEST_PLAIN":    "one",
		"RELAY_TEST_EXPORTED": "two",
		"RELAY_TEST_QUOTED":   "three four",
		"RELAY_TEST_SINGLE":   "five",
		"RELAY_TEST_EXISTING": "from-env",
	}
	for key, want := range checks {
		if got := os.Getenv(key); got != want {
			t.Fatalf("%s=%q, want %q", key, got, want)
		}
	}
}

func TestLoadFile_MissingFileIsNotAnError(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("LoadFile on missing file: %v", err)
	}
}
