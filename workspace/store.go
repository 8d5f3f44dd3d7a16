package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNoProject is returned by operations that need an active project.
	ErrNoProject = errors.New("no active project")
	// ErrDocumentNotFound is returned when a document id is not in the collection.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrTabNotFound is returned when a tab id is unknown.
	ErrTabNotFound = errors.New("tab not found")
	// ErrNoBackend is returned by stream operations before an AI backend is
	// attached.
	ErrNoBackend = errors.New("no AI backend available")
)

// ChatTurn is one message in the conversation sent to the backend.
type ChatTurn struct {
	Role    Role
	Content string
}

// StreamOptions carries per-request tuning passed through to the backend.
type StreamOptions struct {
	Model          string
	EnableThinking bool
}

// GenerationRequest describes a document-generation stream: the author's
// notes drive the prompt, with the current manuscript as reference material.
type GenerationRequest struct {
	AuthorNotes    string
	CurrentContent string
	SystemPrompt   string
	History        []ChatTurn
}

// Backend is the AI collaborator. Start calls acknowledge by returning; chunk
// and terminal events are delivered asynchronously, tagged with the request
// id, and must be fed back through HandleChunk / HandleStreamDone.
type Backend interface {
	StartChatStream(ctx context.Context, messages []ChatTurn, requestID string, opts StreamOptions) error
	StartGenerationStream(ctx context.Context, req GenerationRequest, requestID string, opts StreamOptions) error
	StopStream(requestID string) error
}

// Persistence is the durable-storage collaborator. LoadWorkspace returns
// (nil, nil) on first run.
type Persistence interface {
	ProjectExists(id string) (bool, error)
	ListDocuments(projectID string) ([]*Document, error)
	SaveDocument(doc *Document) error
	DeleteDocument(id string) error
	SaveWorkspace(snap *Snapshot) error
	LoadWorkspace() (*Snapshot, error)
}

// Store owns every piece of shared mutable state: the document collection,
// the tab list, per-tab chat transcripts, and the stream session registry.
// All mutation goes through named operations that finish with a reconcile
// pass, so the collection, the active selection, and the tabs can never
// diverge. Safety comes from the single mutex plus the session/request id
// validation in the dispatcher; there is no other locking.
type Store struct {
	mu sync.Mutex

	backend Backend
	persist Persistence
	author  string

	currentProjectID  string
	documents         map[string]*Document
	currentDocumentID string
	tabs              []*Tab
	activeTabID       string
	messages          map[string][]AIMessage
	streams           map[string]*StreamState
	requests          map[string]requestRoute
	uiState           UIState

	flushWindow time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithFlushWindow overrides the coalescing window for generation writes.
func WithFlushWindow(d time.Duration) Option {
	return func(s *Store) { s.flushWindow = d }
}

// WithAuthor sets the author recorded on documents and versions.
func WithAuthor(name string) Option {
	return func(s *Store) { s.author = name }
}

// NewStore creates an empty store bound to its collaborators.
func NewStore(backend Backend, persist Persistence, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		persist:     persist,
		author:      "user",
		documents:   make(map[string]*Document),
		messages:    make(map[string][]AIMessage),
		streams:     make(map[string]*StreamState),
		requests:    make(map[string]requestRoute),
		uiState:     UIState{SidebarOpen: true, ChatOpen: true},
		flushWindow: defaultFlushWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBackend attaches (or replaces) the AI backend. The application starts
// without one when the LLM client is still connecting; stream operations
// return ErrNoBackend until it arrives.
func (s *Store) SetBackend(backend Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = backend
}

// --- project -------------------------------------------------------------

// SwitchProject makes projectID current, closing all tabs and reloading the
// document collection from persistence.
func (s *Store) SwitchProject(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	docs, err := s.persist.ListDocuments(projectID)
	if err != nil {
		return fmt.Errorf("loading documents for project %s: %w", projectID, err)
	}

	for _, tab := range s.tabs {
		s.stopSession(tab.ID)
		delete(s.messages, tab.ID)
	}
	s.tabs = nil
	s.activeTabID = ""
	s.currentDocumentID = ""

	s.currentProjectID = projectID
	s.documents = make(map[string]*Document, len(docs))
	for _, doc := range docs {
		s.documents[doc.ID] = doc
	}
	return nil
}

// CurrentProjectID returns the active project id, or "".
func (s *Store) CurrentProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentProjectID
}

// --- documents -----------------------------------------------------------

// CreateDocument creates and persists a new document in the current project.
func (s *Store) CreateDocument(title string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	if s.currentProjectID == "" {
		return nil, ErrNoProject
	}
	doc := NewDocument(s.currentProjectID, title, s.author)
	if err := s.persist.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("persisting new document: %w", err)
	}
	s.documents[doc.ID] = doc
	return doc, nil
}

// Documents returns the collection ordered by creation time.
func (s *Store) Documents() []*Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]*Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Metadata.CreatedAt.Equal(docs[j].Metadata.CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].Metadata.CreatedAt.Before(docs[j].Metadata.CreatedAt)
	})
	return docs
}

// Document resolves a document by id through the collection.
func (s *Store) Document(id string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	return doc, ok
}

// CurrentDocument resolves the active selection through the collection, never
// through a cached pointer, so readers always observe the collection instance.
func (s *Store) CurrentDocument() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentDocumentID == "" {
		return nil
	}
	return s.documents[s.currentDocumentID]
}

// UpdateContent replaces the manuscript body and dirties the document's tabs.
func (s *Store) UpdateContent(docID, content string) error {
	return s.updateBody(docID, func(d *Document) { d.Content = content })
}

// UpdateAuthorNotes replaces the author-notes body.
func (s *Store) UpdateAuthorNotes(docID, notes string) error {
	return s.updateBody(docID, func(d *Document) { d.AuthorNotes = notes })
}

// UpdateAIContent replaces the AI-generated body.
func (s *Store) UpdateAIContent(docID, content string) error {
	return s.updateBody(docID, func(d *Document) { d.AIGeneratedContent = content })
}

func (s *Store) updateBody(docID string, apply func(*Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	doc, ok := s.documents[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	apply(doc)
	doc.touch()
	s.markDirty(docID, true)
	return nil
}

// SaveDocument snapshots a version and writes the document through to
// persistence, clearing the dirty flag on its tabs.
func (s *Store) SaveDocument(docID, changeDescription string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	doc, ok := s.documents[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	doc.CreateVersion(s.author, changeDescription)
	if err := s.persist.SaveDocument(doc); err != nil {
		return fmt.Errorf("saving document %s: %w", docID, err)
	}
	s.markDirty(docID, false)
	return nil
}

// RenameDocument retitles a document and mirrors the title onto its tabs.
func (s *Store) RenameDocument(docID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	doc, ok := s.documents[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	doc.Title = title
	doc.touch()
	if err := s.persist.SaveDocument(doc); err != nil {
		return fmt.Errorf("renaming document %s: %w", docID, err)
	}
	for _, tab := range s.tabs {
		if tab.DocumentID == docID {
			tab.Title = title
		}
	}
	return nil
}

// DeleteDocument removes a document, cascading to every tab that references
// it. Unsaved changes are discarded; the active selection is repaired by the
// reconcile pass and never left dangling.
func (s *Store) DeleteDocument(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	if _, ok := s.documents[docID]; !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	if err := s.persist.DeleteDocument(docID); err != nil {
		return fmt.Errorf("deleting document %s: %w", docID, err)
	}
	s.closeTabsForDocument(docID)
	delete(s.documents, docID)
	return nil
}

// MoveDocument reassigns a document to another project. Tabs do not follow
// cross-project moves, so the document's tabs close and it leaves the current
// collection.
func (s *Store) MoveDocument(docID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	doc, ok := s.documents[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	doc.ProjectID = projectID
	doc.touch()
	if err := s.persist.SaveDocument(doc); err != nil {
		return fmt.Errorf("moving document %s: %w", docID, err)
	}
	if projectID != s.currentProjectID {
		s.closeTabsForDocument(docID)
		delete(s.documents, docID)
	}
	return nil
}

// CopyDocument duplicates a document within the current project.
func (s *Store) CopyDocument(docID string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	src, ok := s.documents[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	dup := NewDocument(src.ProjectID, src.Title+" (copy)", s.author)
	dup.Content = src.Content
	dup.AuthorNotes = src.AuthorNotes
	dup.AIGeneratedContent = src.AIGeneratedContent
	dup.ComposedContent = src.ComposedContent
	dup.PluginData = src.PluginData
	dup.EnabledPlugins = append([]string(nil), src.EnabledPlugins...)
	dup.touch()
	if err := s.persist.SaveDocument(dup); err != nil {
		return nil, fmt.Errorf("copying document %s: %w", docID, err)
	}
	s.documents[dup.ID] = dup
	return dup, nil
}

// --- tabs ----------------------------------------------------------------

// OpenDocument opens a tab for the document, or focuses the existing one.
func (s *Store) OpenDocument(docID string) (*Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	doc, ok := s.documents[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	for _, tab := range s.tabs {
		if tab.DocumentID == docID {
			s.activeTabID = tab.ID
			return tab, nil
		}
	}
	tab := newTab(doc, s.nextTabOrder())
	s.tabs = append(s.tabs, tab)
	s.activeTabID = tab.ID
	return tab, nil
}

// CloseTab closes a tab, optionally flushing unsaved changes first, and
// selects an adjacent tab (or none).
func (s *Store) CloseTab(tabID string, flushUnsaved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	tab := s.tabByID(tabID)
	if tab == nil {
		return fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	if flushUnsaved && tab.IsDirty {
		if doc, ok := s.documents[tab.DocumentID]; ok {
			doc.CreateVersion(s.author, "Saved on close")
			if err := s.persist.SaveDocument(doc); err != nil {
				return fmt.Errorf("flushing tab %s: %w", tabID, err)
			}
		}
	}
	s.removeTab(tabID)
	return nil
}

// SwitchTab makes tabID the active tab.
func (s *Store) SwitchTab(tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	if s.tabByID(tabID) == nil {
		return fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	s.activeTabID = tabID
	return nil
}

// Tabs returns the open tabs in display order.
func (s *Store) Tabs() []*Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	tabs := make([]*Tab, len(s.tabs))
	copy(tabs, s.tabs)
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].Order < tabs[j].Order })
	return tabs
}

// ActiveTab returns the active tab, or nil when no tabs are open.
func (s *Store) ActiveTab() *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabByID(s.activeTabID)
}

// UpdatePanelState replaces a tab's presentation state.
func (s *Store) UpdatePanelState(tabID string, panel PanelState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab := s.tabByID(tabID)
	if tab == nil {
		return fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	tab.PanelState = panel
	return nil
}

// Messages returns a copy of the tab's chat transcript.
func (s *Store) Messages(tabID string) []AIMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AIMessage(nil), s.messages[tabID]...)
}

func (s *Store) tabByID(id string) *Tab {
	for _, tab := range s.tabs {
		if tab.ID == id {
			return tab
		}
	}
	return nil
}

func (s *Store) nextTabOrder() int {
	next := 0
	for _, tab := range s.tabs {
		if tab.Order >= next {
			next = tab.Order + 1
		}
	}
	return next
}

func (s *Store) markDirty(docID string, dirty bool) {
	for _, tab := range s.tabs {
		if tab.DocumentID == docID {
			tab.IsDirty = dirty
		}
	}
}

// removeTab drops the tab and its transcript, terminating any stream, and
// moves the active selection to an adjacent tab when needed.
func (s *Store) removeTab(tabID string) {
	idx := -1
	for i, tab := range s.tabs {
		if tab.ID == tabID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	s.stopSession(tabID)
	delete(s.messages, tabID)

	wasActive := s.activeTabID == tabID
	closing := s.tabs[idx]
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)

	if wasActive {
		s.activeTabID = ""
		if next := s.adjacentTab(closing.Order); next != nil {
			s.activeTabID = next.ID
		}
	}
}

// adjacentTab picks the nearest remaining tab by display order: the next one
// to the right, else the nearest to the left.
func (s *Store) adjacentTab(order int) *Tab {
	var right, left *Tab
	for _, tab := range s.tabs {
		if tab.Order > order && (right == nil || tab.Order < right.Order) {
			right = tab
		}
		if tab.Order < order && (left == nil || tab.Order > left.Order) {
			left = tab
		}
	}
	if right != nil {
		return right
	}
	return left
}

func (s *Store) closeTabsForDocument(docID string) {
	for {
		var victim *Tab
		for _, tab := range s.tabs {
			if tab.DocumentID == docID {
				victim = tab
				break
			}
		}
		if victim == nil {
			return
		}
		s.removeTab(victim.ID)
	}
}

// --- consistency engine --------------------------------------------------

// reconcile is the single reconciliation rule, run after every mutation to
// the collection, the tabs, or the selection — on failure paths too. It
// closes tabs whose document is gone, repairs the exactly-one-active-tab
// invariant, and re-resolves the current document through the collection so
// a stale reference can never survive a turn. Repairs are diagnostics, not
// errors; the session continues.
func (s *Store) reconcile() {
	// Tabs must never outlive their documents.
	for {
		var orphan *Tab
		for _, tab := range s.tabs {
			if _, ok := s.documents[tab.DocumentID]; !ok {
				orphan = tab
				break
			}
		}
		if orphan == nil {
			break
		}
		slog.Warn("closing tab for missing document", "tab", orphan.ID, "document", orphan.DocumentID)
		s.removeTab(orphan.ID)
	}

	// Active tab must exist; fall back to the first tab by order.
	if s.activeTabID != "" && s.tabByID(s.activeTabID) == nil {
		slog.Warn("active tab missing, reselecting", "tab", s.activeTabID)
		s.activeTabID = ""
	}
	if s.activeTabID == "" && len(s.tabs) > 0 {
		first := s.tabs[0]
		for _, tab := range s.tabs[1:] {
			if tab.Order < first.Order {
				first = tab
			}
		}
		s.activeTabID = first.ID
	}
	for _, tab := range s.tabs {
		tab.IsActive = tab.ID == s.activeTabID
	}

	// The current document follows the active tab and must resolve through
	// the collection.
	if active := s.tabByID(s.activeTabID); active != nil {
		s.currentDocumentID = active.DocumentID
	} else if s.currentDocumentID != "" {
		if _, ok := s.documents[s.currentDocumentID]; !ok {
			slog.Warn("current document missing from collection, clearing selection",
				"document", s.currentDocumentID)
			s.currentDocumentID = ""
		}
	}
	if len(s.tabs) == 0 {
		s.currentDocumentID = ""
	}
}
