package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/decisionfoundry/hedge-engine/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solution.json")
	xbar := []float64{170, 80.5, 250}

	if err := Write(path, model.StatusConverged, xbar); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != len(xbar) {
		t.Fatalf("round trip returned %d values, want %d", len(got), len(xbar))
	}
	for i := range xbar {
		if got[i] != xbar[i] {
			t.Fatalf("xbar[%d] = %g, want %g", i, got[i], xbar[i])
		}
	}
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solution.json")
	if err := Write(path, model.StatusIterationLimit, []float64{1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "solution.json" {
		t.Fatalf("directory holds %d entries after Write", len(entries))
	}
}

func TestReadFailuresAreConfigErrors(t *testing.T) {
	dir := t.TempDir()

	// Missing file.
	if _, err := Read(filepath.Join(dir, "absent.json")); !errors.Is(err, model.ErrConfig) {
		t.Fatalf("missing file: err = %v, want ErrConfig", err)
	}

	// Corrupt JSON.
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{half a snapshot"), 0o644)
	if _, err := Read(bad); !errors.Is(err, model.ErrConfig) {
		t.Fatalf("corrupt file: err = %v, want ErrConfig", err)
	}

	// Wrong version.
	ver := filepath.Join(dir, "ver.json")
	os.WriteFile(ver, []byte(`{"version": 99, "status": "converged", "xbar": [1]}`), 0o644)
	if _, err := Read(ver); !errors.Is(err, model.ErrConfig) {
		t.Fatalf("future version: err = %v, want ErrConfig", err)
	}

	// Empty vector.
	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`{"version": 1, "status": "converged", "xbar": []}`), 0o644)
	if _, err := Read(empty); !errors.Is(err, model.ErrConfig) {
		t.Fatalf("empty vector: err = %v, want ErrConfig", err)
	}
}
