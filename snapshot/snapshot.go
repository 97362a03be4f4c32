// Package snapshot persists the converged first-stage decision as an
// ordered numeric array, indexed by first-stage variable order, so a later
// run can warm-start its INIT phase from it.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/decisionfoundry/hedge-engine/model"
)

// fileFormat is the on-disk shape. Version guards future layout changes.
type fileFormat struct {
	Version int       `json:"version"`
	Status  string    `json:"status"`
	Xbar    []float64 `json:"xbar"`
}

const currentVersion = 1

// Write serializes xbar and the run's terminal status to path, atomically
// via a rename so a crashed writer never leaves a torn snapshot behind.
func Write(path string, status model.Status, xbar []float64) error {
	data, err := json.MarshalIndent(fileFormat{
		Version: currentVersion,
		Status:  status.String(),
		Xbar:    xbar,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("installing snapshot: %w", err)
	}
	return nil
}

// Read loads a snapshot's first-stage vector for warm-starting.
func Read(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading warm start %q: %v", model.ErrConfig, path, err)
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decoding warm start %q: %v", model.ErrConfig, path, err)
	}
	if f.Version != currentVersion {
		return nil, fmt.Errorf("%w: warm start %q has version %d, want %d", model.ErrConfig, path, f.Version, currentVersion)
	}
	if len(f.Xbar) == 0 {
		return nil, fmt.Errorf("%w: warm start %q holds no values", model.ErrConfig, path)
	}
	return f.Xbar, nil
}
