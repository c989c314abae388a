// Package snapshot persists a resolved rule payload to a JSON file that
// serves as the fallback when the live store has nothing to offer.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanachterjacob/BC-MCP/internal/models"
)

// ErrInvalid is returned when the file exists but does not hold a usable payload.
var ErrInvalid = errors.New("invalid snapshot")

// File is a snapshot stored at a fixed path.
type File struct {
	path string
}

// New returns a snapshot bound to path. The file need not exist yet.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Read loads the embedded payload. The returned payload keeps the stored
// document in Raw, so it marshals back unchanged. Missing files surface as
// an fs.ErrNotExist wrapped error; unparseable or incomplete ones as ErrInvalid.
func (f *File) Read() (models.RulePayload, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return models.RulePayload{}, fmt.Errorf("read snapshot: %w", err)
	}

	var env struct {
		BusinessCentralRules json.RawMessage `json:"businessCentralRules"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return models.RulePayload{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	raw := env.BusinessCentralRules
	if len(raw) == 0 || string(raw) == "null" {
		return models.RulePayload{}, fmt.Errorf("%w: missing businessCentralRules", ErrInvalid)
	}

	// The typed decode only validates; callers receive the stored document as is.
	var p models.RulePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.RulePayload{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch {
	case p.Rules == nil:
		return models.RulePayload{}, fmt.Errorf("%w: missing rules", ErrInvalid)
	case p.Context.BusinessDomain == "":
		return models.RulePayload{}, fmt.Errorf("%w: missing context.businessDomain", ErrInvalid)
	}
	p.Raw = raw
	return p, nil
}

// Write replaces the snapshot with payload. The new content is written to
// a temporary file in the same directory and renamed over the old one, so
// readers see either the previous snapshot or the new one in full.
func (f *File) Write(payload models.RulePayload) error {
	data, err := json.MarshalIndent(models.Snapshot{BusinessCentralRules: &payload}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	success = true
	return nil
}
