package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/syntheo/syntheo/pkg/types"
)

// State is the persisted indexing progress, written to state.json.
type State struct {
	Status        string `json:"status"` // idle | indexing | error
	LastRun       int64  `json:"lastRun"`
	FilesIndexed  int    `json:"filesIndexed"`
	FilesSkipped  int    `json:"filesSkipped"`
	FilesFailed   int    `json:"filesFailed"`
	BlocksIndexed int    `json:"blocksIndexed"`
	DurationMS    int64  `json:"durationMs"`
}

// StateManager persists indexing progress and the workspace summary.
type StateManager struct {
	statePath    string
	metadataPath string
	state        State
}

// NewStateManager loads state.json from the data directory, tolerating a
// missing or corrupt file.
func NewStateManager(dataDir string) *StateManager {
	m := &StateManager{
		statePath:    filepath.Join(dataDir, "state.json"),
		metadataPath: filepath.Join(dataDir, "metadata.json"),
		state:        State{Status: "idle"},
	}
	if data, err := os.ReadFile(m.statePath); err == nil {
		_ = json.Unmarshal(data, &m.state)
	}
	return m
}

// State returns a copy of the current state.
func (m *StateManager) State() State {
	return m.state
}

// SetState replaces the state in memory; Persist writes it out.
func (m *StateManager) SetState(s State) {
	m.state = s
}

// Persist writes state.json, and metadata.json when a summary is given.
func (m *StateManager) Persist(summary *types.WorkspaceStatus) error {
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return err
	}

	if summary != nil {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(m.metadataPath, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
