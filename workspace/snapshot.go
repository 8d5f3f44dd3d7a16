package workspace

import (
	"fmt"
	"log/slog"
	"time"
)

// UIState is application-level presentation state carried in the snapshot.
type UIState struct {
	SidebarOpen  bool    `json:"sidebarOpen"`
	ChatOpen     bool    `json:"chatOpen"`
	SidebarWidth float64 `json:"sidebarWidth,omitempty"`
}

// TabSnapshot is the durable form of a tab: identity, document reference,
// and presentation state. Transcript and stream state are not persisted.
type TabSnapshot struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	PanelState PanelState `json:"panelState"`
}

// Snapshot is the workspace layout written to durable storage. It is used
// only for restore; live invariants are enforced by the store, not by the
// snapshot shape.
type Snapshot struct {
	CurrentProjectID string        `json:"currentProjectId,omitempty"`
	Tabs             []TabSnapshot `json:"tabs"`
	ActiveTabID      string        `json:"activeTabId,omitempty"`
	UIState          UIState       `json:"uiState"`
	LastSavedAt      time.Time     `json:"lastSavedAt"`
}

// SnapshotWorkspace captures the current layout and writes it through the
// persistence collaborator.
func (s *Store) SnapshotWorkspace() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		CurrentProjectID: s.currentProjectID,
		ActiveTabID:      s.activeTabID,
		UIState:          s.uiState,
		LastSavedAt:      time.Now(),
	}
	for _, tab := range s.tabs {
		snap.Tabs = append(snap.Tabs, TabSnapshot{
			ID:         tab.ID,
			DocumentID: tab.DocumentID,
			PanelState: tab.PanelState,
		})
	}
	if err := s.persist.SaveWorkspace(snap); err != nil {
		return nil, fmt.Errorf("saving workspace snapshot: %w", err)
	}
	return snap, nil
}

// RestoreWorkspace rebuilds the layout from the persisted snapshot. A missing
// snapshot is a first run. A snapshot referencing a project or documents that
// no longer exist degrades gracefully: the project selection falls back to
// none, and tabs whose document is gone are dropped with a diagnostic rather
// than restored as broken references.
func (s *Store) RestoreWorkspace() error {
	snap, err := s.persist.LoadWorkspace()
	if err != nil {
		return fmt.Errorf("loading workspace snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}

	if snap.CurrentProjectID != "" {
		exists, err := s.persist.ProjectExists(snap.CurrentProjectID)
		if err != nil {
			return fmt.Errorf("checking project %s: %w", snap.CurrentProjectID, err)
		}
		if !exists {
			slog.Warn("snapshot references missing project, starting with none selected",
				"project", snap.CurrentProjectID)
			snap = &Snapshot{UIState: snap.UIState}
		}
	}

	if snap.CurrentProjectID != "" {
		if err := s.SwitchProject(snap.CurrentProjectID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	s.uiState = snap.UIState
	for _, ts := range snap.Tabs {
		doc, ok := s.documents[ts.DocumentID]
		if !ok {
			slog.Warn("dropping snapshot tab for missing document",
				"tab", ts.ID, "document", ts.DocumentID)
			continue
		}
		tab := newTab(doc, s.nextTabOrder())
		tab.ID = ts.ID
		tab.PanelState = ts.PanelState
		s.tabs = append(s.tabs, tab)
	}
	if snap.ActiveTabID != "" && s.tabByID(snap.ActiveTabID) != nil {
		s.activeTabID = snap.ActiveTabID
	}
	return nil
}

// UI returns the application-level presentation state.
func (s *Store) UI() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uiState
}

// SetUI replaces the application-level presentation state.
func (s *Store) SetUI(ui UIState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uiState = ui
}
