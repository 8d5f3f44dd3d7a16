package workspace

import (
	"context"
	"errors"
	"sync"
)

// fakeBackend records start/stop calls without producing chunks; tests drive
// HandleChunk and HandleStreamDone directly.
type fakeBackend struct {
	mu          sync.Mutex
	chatStarts  []string
	genStarts   []string
	stops       []string
	startErr    error
	lastMsgs    []ChatTurn
	lastGenReq  GenerationRequest
	lastOptions StreamOptions
}

func (f *fakeBackend) StartChatStream(ctx context.Context, messages []ChatTurn, requestID string, opts StreamOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.chatStarts = append(f.chatStarts, requestID)
	f.lastMsgs = messages
	f.lastOptions = opts
	return nil
}

func (f *fakeBackend) StartGenerationStream(ctx context.Context, req GenerationRequest, requestID string, opts StreamOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.genStarts = append(f.genStarts, requestID)
	f.lastGenReq = req
	f.lastOptions = opts
	return nil
}

func (f *fakeBackend) StopStream(requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, requestID)
	return nil
}

func (f *fakeBackend) stopped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stops...)
}

// memPersist is an in-memory Persistence for store tests.
type memPersist struct {
	mu        sync.Mutex
	projects  map[string]bool
	documents map[string]*Document
	snapshot  *Snapshot
	saveErr   error
}

func newMemPersist(projectIDs ...string) *memPersist {
	p := &memPersist{
		projects:  make(map[string]bool),
		documents: make(map[string]*Document),
	}
	for _, id := range projectIDs {
		p.projects[id] = true
	}
	return p
}

func (p *memPersist) ProjectExists(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.projects[id], nil
}

func (p *memPersist) ListDocuments(projectID string) ([]*Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var docs []*Document
	for _, doc := range p.documents {
		if doc.ProjectID == projectID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (p *memPersist) SaveDocument(doc *Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.documents[doc.ID] = doc
	return nil
}

func (p *memPersist) DeleteDocument(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.documents[id]; !ok {
		return errors.New("no such document")
	}
	delete(p.documents, id)
	return nil
}

func (p *memPersist) SaveWorkspace(snap *Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = snap
	return nil
}

func (p *memPersist) LoadWorkspace() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot, nil
}

// newTestStore builds a store with one project selected and n documents
// created and returns everything a test needs.
func newTestStore(n int) (*Store, *fakeBackend, *memPersist, []*Document) {
	backend := &fakeBackend{}
	persist := newMemPersist("proj-1")
	store := NewStore(backend, persist, WithAuthor("tester"))
	if err := store.SwitchProject("proj-1"); err != nil {
		panic(err)
	}

	docs := make([]*Document, 0, n)
	for i := 0; i < n; i++ {
		doc, err := store.CreateDocument(string(rune('A' + i)))
		if err != nil {
			panic(err)
		}
		docs = append(docs, doc)
	}
	return store, backend, persist, docs
}
