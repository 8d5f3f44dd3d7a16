package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwell-studio/inkwell/workspace"
)

// SaveWorkspace writes the layout snapshot into the single-row state table.
func (s *Store) SaveWorkspace(snap *workspace.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace snapshot: %w", err)
	}
	_, err = s.db.conn.Exec(`
		INSERT OR REPLACE INTO workspace_state (id, snapshot, saved_at)
		VALUES (1, ?, ?)`,
		string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save workspace snapshot: %w", err)
	}
	slog.Debug("workspace snapshot saved", "tabs", len(snap.Tabs))
	return nil
}

// LoadWorkspace reads the layout snapshot. A missing row is a first run and
// returns (nil, nil).
func (s *Store) LoadWorkspace() (*workspace.Snapshot, error) {
	var data string
	err := s.db.conn.QueryRow("SELECT snapshot FROM workspace_state WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace snapshot: %w", err)
	}
	var snap workspace.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workspace snapshot: %w", err)
	}
	return &snap, nil
}
