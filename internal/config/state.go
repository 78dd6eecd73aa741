package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// LastRun records the outcome of the most recent completed run
type LastRun struct {
	RunID      string    `yaml:"run_id"`
	InputDir   string    `yaml:"input_dir"`
	OutputFile string    `yaml:"output_file"`
	Records    int       `yaml:"records"`
	Documents  int       `yaml:"documents"`
	Skipped    int       `yaml:"skipped"`
	FinishedAt time.Time `yaml:"finished_at"`
}

// State is the persisted CLI state
type State struct {
	LastRun *LastRun `yaml:"last_run,omitempty"`
}

// DefaultStatePath returns the state file location under the user config directory
func DefaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(dir, "drillagg", "state.yaml"), nil
}

// LoadState reads the state file. A missing file yields an empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	return &st, nil
}

// SaveState writes the state file, creating its directory when needed
func SaveState(path string, st *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp, path)
}
