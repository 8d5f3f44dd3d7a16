package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	store, _, persist, docs := newTestStore(2)
	tabA, _ := store.OpenDocument(docs[0].ID)
	tabB, _ := store.OpenDocument(docs[1].ID)
	require.NoError(t, store.SwitchTab(tabA.ID))
	require.NoError(t, store.UpdatePanelState(tabB.ID, PanelState{LayoutMode: "editor", SplitRatio: 0.7}))
	store.SetUI(UIState{SidebarOpen: true, ChatOpen: true, SidebarWidth: 240})

	snap, err := store.SnapshotWorkspace()
	require.NoError(t, err)
	require.Len(t, snap.Tabs, 2)
	assert.Equal(t, tabA.ID, snap.ActiveTabID)

	// A fresh store over the same persistence reproduces the layout.
	restored := NewStore(&fakeBackend{}, persist)
	require.NoError(t, restored.RestoreWorkspace())

	tabs := restored.Tabs()
	require.Len(t, tabs, 2)
	assert.Equal(t, tabA.ID, tabs[0].ID)
	assert.Equal(t, tabB.ID, tabs[1].ID)
	assert.Equal(t, 0.7, tabs[1].PanelState.SplitRatio)

	active := restored.ActiveTab()
	require.NotNil(t, active)
	assert.Equal(t, tabA.ID, active.ID)

	cur := restored.CurrentDocument()
	require.NotNil(t, cur)
	assert.Equal(t, docs[0].ID, cur.ID)

	assert.Equal(t, UIState{SidebarOpen: true, ChatOpen: true, SidebarWidth: 240}, restored.UI())
}

func TestSnapshot_FirstRunIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewStore(&fakeBackend{}, newMemPersist())
	require.NoError(t, store.RestoreWorkspace())
	assert.Empty(t, store.Tabs())
	assert.Nil(t, store.CurrentDocument())
}

// A snapshot pointing at a project that no longer exists must degrade to no
// project selected instead of failing the restore.
func TestSnapshot_MissingProjectDegrades(t *testing.T) {
	t.Parallel()

	store, _, persist, docs := newTestStore(1)
	_, err := store.OpenDocument(docs[0].ID)
	require.NoError(t, err)
	store.SetUI(UIState{SidebarOpen: true})
	_, err = store.SnapshotWorkspace()
	require.NoError(t, err)

	// Simulate the project being renamed out from under the snapshot.
	persist.mu.Lock()
	delete(persist.projects, "proj-1")
	persist.projects["proj-1-renamed"] = true
	persist.mu.Unlock()

	restored := NewStore(&fakeBackend{}, persist)
	require.NoError(t, restored.RestoreWorkspace())

	assert.Empty(t, restored.Tabs())
	assert.Nil(t, restored.CurrentDocument())
	assert.Empty(t, restored.Documents())
	assert.True(t, restored.UI().SidebarOpen, "presentation state survives the degrade")
}

func TestSnapshot_MissingDocumentTabDropped(t *testing.T) {
	t.Parallel()

	store, _, persist, docs := newTestStore(2)
	_, err := store.OpenDocument(docs[0].ID)
	require.NoError(t, err)
	tabB, err := store.OpenDocument(docs[1].ID)
	require.NoError(t, err)
	_, err = store.SnapshotWorkspace()
	require.NoError(t, err)

	// The first document vanishes from storage between sessions.
	persist.mu.Lock()
	delete(persist.documents, docs[0].ID)
	persist.mu.Unlock()

	restored := NewStore(&fakeBackend{}, persist)
	require.NoError(t, restored.RestoreWorkspace())

	tabs := restored.Tabs()
	require.Len(t, tabs, 1)
	assert.Equal(t, tabB.ID, tabs[0].ID)

	active := restored.ActiveTab()
	require.NotNil(t, active, "selection repaired onto the surviving tab")
	assert.Equal(t, tabB.ID, active.ID)
}

func TestSnapshot_StaleActiveTabRepaired(t *testing.T) {
	t.Parallel()

	store, _, persist, docs := newTestStore(2)
	tabA, _ := store.OpenDocument(docs[0].ID)
	_, err := store.OpenDocument(docs[1].ID)
	require.NoError(t, err)
	require.NoError(t, store.SwitchTab(tabA.ID))
	_, err = store.SnapshotWorkspace()
	require.NoError(t, err)

	persist.mu.Lock()
	delete(persist.documents, docs[0].ID)
	persist.mu.Unlock()

	restored := NewStore(&fakeBackend{}, persist)
	require.NoError(t, restored.RestoreWorkspace())

	active := restored.ActiveTab()
	require.NotNil(t, active)
	assert.NotEqual(t, tabA.ID, active.ID)
	cur := restored.CurrentDocument()
	require.NotNil(t, cur)
	assert.Equal(t, docs[1].ID, cur.ID)
}
