package update

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// markerFile is the activation marker shared by every instance using the
// same state directory.
const markerFile = "activated.json"

// activationMarker records the most recent activation so that a restarted
// process (or a second instance) knows which version is current.
type activationMarker struct {
	Version     Version   `json:"version"`
	Previous    string    `json:"previous"`
	Instance    string    `json:"instance"`
	ActivatedAt time.Time `json:"activated_at"`
}

// writeMarker stores m as indented JSON. The write is atomic: content goes
// to a temporary file first and is renamed into place.
func writeMarker(path string, m activationMarker) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal activation marker: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp activation marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename activation marker: %w", err)
	}
	return nil
}

// readMarker loads the marker at path. A missing file is reported with an
// error satisfying os.IsNotExist.
func readMarker(path string) (activationMarker, error) {
	var m activationMarker
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("unmarshal activation marker: %w", err)
	}
	return m, nil
}
