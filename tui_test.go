package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-studio/inkwell/storage"
	"github.com/inkwell-studio/inkwell/workspace"
)

// stubBackend acknowledges stream starts without producing events; tests feed
// chunk and terminal events through Update directly.
type stubBackend struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func (b *stubBackend) StartChatStream(ctx context.Context, messages []workspace.ChatTurn, requestID string, opts workspace.StreamOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = append(b.started, requestID)
	return nil
}

func (b *stubBackend) StartGenerationStream(ctx context.Context, req workspace.GenerationRequest, requestID string, opts workspace.StreamOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = append(b.started, requestID)
	return nil
}

func (b *stubBackend) StopStream(requestID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = append(b.stopped, requestID)
	return nil
}

func newTestTUI(t *testing.T) (*TUIModel, *workspace.Store, *stubBackend) {
	t.Helper()

	db, err := storage.InitDB(filepath.Join(t.TempDir(), "inkwell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := storage.NewStore(db)

	backend := &stubBackend{}
	ws := workspace.NewStore(backend, store, workspace.WithAuthor("tester"))

	config := defaultConfig()
	model := NewTUIModel(&config, ws, store)
	model.width = 100
	model.height = 30
	return model, ws, backend
}

func keyMsg(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func TestNewTUIModel_FirstRunCreatesWorkspace(t *testing.T) {
	model, ws, _ := newTestTUI(t)

	assert.NotEmpty(t, ws.CurrentProjectID())
	tab := ws.ActiveTab()
	require.NotNil(t, tab)
	assert.Equal(t, defaultDocumentName, tab.Title)
	assert.Equal(t, tab.ID, model.editorTabID)
}

func TestTUIModel_ReopenUsesExistingDocument(t *testing.T) {
	_, ws, _ := newTestTUI(t)

	// A second model over the same workspace must not create another document.
	config := defaultConfig()
	docsBefore := len(ws.Documents())
	NewTUIModel(&config, ws, nil)
	assert.Len(t, ws.Documents(), docsBefore)
}

func TestTUIModel_ChunkAndDoneRouting(t *testing.T) {
	model, ws, _ := newTestTUI(t)
	tab := ws.ActiveTab()
	require.NotNil(t, tab)

	reqID, err := ws.SendChatMessage(tab.ID, "hello", workspace.ContextNone, workspace.StreamOptions{})
	require.NoError(t, err)

	model.Update(workspace.ChunkEvent{RequestID: reqID, Content: "well "})
	model.Update(workspace.ChunkEvent{RequestID: reqID, Content: "met"})
	model.Update(workspace.StreamDoneEvent{RequestID: reqID})

	msgs := ws.Messages(tab.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, workspace.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "well met", msgs[1].Content)
	assert.False(t, ws.Streaming(tab.ID))
}

func TestTUIModel_EscStopsLiveStream(t *testing.T) {
	model, ws, backend := newTestTUI(t)
	tab := ws.ActiveTab()
	require.NotNil(t, tab)

	reqID, err := ws.SendChatMessage(tab.ID, "hello", workspace.ContextNone, workspace.StreamOptions{})
	require.NoError(t, err)
	model.Update(workspace.ChunkEvent{RequestID: reqID, Content: "partial"})
	require.True(t, ws.Streaming(tab.ID))

	model.Update(keyMsg(tea.KeyEsc))

	assert.False(t, ws.Streaming(tab.ID))
	backend.mu.Lock()
	assert.Contains(t, backend.stopped, reqID)
	backend.mu.Unlock()

	// The partial response is preserved in the transcript.
	msgs := ws.Messages(tab.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial", msgs[1].Content)
}

func TestTUIModel_CtrlSSavesDocument(t *testing.T) {
	model, ws, _ := newTestTUI(t)
	tab := ws.ActiveTab()
	require.NotNil(t, tab)

	model.editor.SetValue("a fresh paragraph")
	model.Update(keyMsg(tea.KeyCtrlS))

	doc, ok := ws.Document(tab.DocumentID)
	require.True(t, ok)
	assert.Equal(t, "a fresh paragraph", doc.Content)
	assert.Len(t, doc.Versions, 2)
	assert.False(t, ws.ActiveTab().IsDirty)
}

func TestTUIModel_NewAndCloseTab(t *testing.T) {
	model, ws, _ := newTestTUI(t)

	model.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Len(t, ws.Tabs(), 2)
	second := ws.ActiveTab()

	model.Update(tea.KeyMsg{Type: tea.KeyCtrlW})
	require.Len(t, ws.Tabs(), 1)
	active := ws.ActiveTab()
	require.NotNil(t, active)
	assert.NotEqual(t, second.ID, active.ID)
}

func TestTUIModel_TabCyclingCommitsEditor(t *testing.T) {
	model, ws, _ := newTestTUI(t)
	first := ws.ActiveTab()
	require.NotNil(t, first)

	model.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	second := ws.ActiveTab()
	require.NotEqual(t, first.ID, second.ID)

	model.editor.SetValue("written on the second tab")
	model.Update(tea.KeyMsg{Type: tea.KeyRight, Alt: true})

	assert.Equal(t, first.ID, ws.ActiveTab().ID)
	doc, ok := ws.Document(second.DocumentID)
	require.True(t, ok)
	assert.Equal(t, "written on the second tab", doc.Content)
}

func TestTUIModel_DoubleCtrlCQuits(t *testing.T) {
	model, _, _ := newTestTUI(t)

	_, cmd := model.Update(keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd, "first press shows a status toast")

	model.ctrlCPressed = time.Now().Add(-500 * time.Millisecond)
	_, cmd = model.Update(keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTUIModel_GenerateWritesIntoDocument(t *testing.T) {
	model, ws, backend := newTestTUI(t)
	tab := ws.ActiveTab()
	require.NotNil(t, tab)
	require.NoError(t, ws.UpdateAuthorNotes(tab.DocumentID, "a stormy opening"))

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	require.NotNil(t, cmd)

	backend.mu.Lock()
	require.NotEmpty(t, backend.started)
	reqID := backend.started[len(backend.started)-1]
	backend.mu.Unlock()

	model.Update(workspace.ChunkEvent{RequestID: reqID, Content: "It was a dark"})
	model.Update(workspace.StreamDoneEvent{RequestID: reqID})

	doc, ok := ws.Document(tab.DocumentID)
	require.True(t, ok)
	assert.Equal(t, "It was a dark", doc.AIGeneratedContent)
}
