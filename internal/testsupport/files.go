package testsupport

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// ProfileFixture returns the path of the shared workflow profile fixture.
func ProfileFixture() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "profile", "testdata", "workflow.xml")
}

// WriteProfile copies the workflow fixture into dir and returns the copy's
// path, so tests may rewrite it without touching the shared file.
func WriteProfile(t testing.TB, dir string) string {
	t.Helper()

	data, err := os.ReadFile(ProfileFixture())
	if err != nil {
		t.Fatalf("read profile fixture: %v", err)
	}
	return writeText(t, filepath.Join(dir, "workflow.xml"), string(data))
}

func writeText(t testing.TB, path, text string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
