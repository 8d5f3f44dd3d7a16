package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SendChatMessage appends the user's message to the tab's transcript and
// starts a chat stream for it. Any stream already live on the tab is
// superseded first, so at most one listener ever writes into the tab.
func (s *Store) SendChatMessage(tabID, text string, mode ContextMode, opts StreamOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	if s.backend == nil {
		return "", ErrNoBackend
	}
	tab := s.tabByID(tabID)
	if tab == nil {
		return "", fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	doc := s.documents[tab.DocumentID]

	s.messages[tabID] = append(s.messages[tabID], AIMessage{
		Role:        RoleUser,
		Content:     text,
		Timestamp:   time.Now(),
		ContextMode: mode,
	})

	turns := s.chatTurns(tabID, doc, mode)
	st, ctx := s.startSession(tabID, PurposeChat)
	if err := s.backend.StartChatStream(ctx, turns, st.requestID, opts); err != nil {
		s.stopSession(tabID)
		return "", fmt.Errorf("starting chat stream: %w", err)
	}
	return st.requestID, nil
}

// GenerateContent starts a document-generation stream for the tab's document.
// Chunks are written into the document's AI body through the coalescing
// flusher rather than on every event.
func (s *Store) GenerateContent(tabID, systemPrompt string, opts StreamOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	if s.backend == nil {
		return "", ErrNoBackend
	}
	tab := s.tabByID(tabID)
	if tab == nil {
		return "", fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	doc, ok := s.documents[tab.DocumentID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, tab.DocumentID)
	}

	req := GenerationRequest{
		AuthorNotes:    doc.AuthorNotes,
		CurrentContent: doc.Content,
		SystemPrompt:   systemPrompt,
		History:        s.chatTurns(tabID, nil, ContextNone),
	}

	st, ctx := s.startSession(tabID, PurposeGeneration)
	docID := doc.ID
	st.flush = newCoalescer(s.flushWindow, func(value string) {
		// Runs with s.mu held, inside HandleChunk / terminal handlers.
		if target, ok := s.documents[docID]; ok {
			target.AIGeneratedContent = value
			target.touch()
			s.markDirty(docID, true)
		}
	})

	if err := s.backend.StartGenerationStream(ctx, req, st.requestID, opts); err != nil {
		s.stopSession(tabID)
		return "", fmt.Errorf("starting generation stream: %w", err)
	}
	return st.requestID, nil
}

// StopStream cancels the tab's live stream and returns the content
// accumulated so far. The session is invalidated synchronously; the backend
// may keep producing chunks for a while, and the dispatcher will drop them.
// Stopping a tab with no live stream returns the empty string.
func (s *Store) StopStream(tabID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	st := s.stopSession(tabID)
	if st == nil {
		return ""
	}
	parsed := ParseThinking(st.buf.String())
	s.finalize(tabID, st, StreamOutcome{
		Status:   StatusStopped,
		Content:  parsed.Content,
		Thinking: parsed.Thinking,
	})
	return parsed.Content
}

// HandleChunk routes one backend chunk event. Stale deliveries — unknown
// request ids, aborted or superseded sessions — are dropped silently; that is
// the expected steady state after a stop or a rapid restart, not an error.
func (s *Store) HandleChunk(ev ChunkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.liveStream(ev.RequestID)
	if st == nil {
		slog.Debug("dropping stale chunk", "request", ev.RequestID)
		return
	}

	st.buf.WriteString(ev.Content)
	if st.purpose == PurposeGeneration && st.flush != nil {
		parsed := ParseThinking(st.buf.String())
		st.flush.Add(parsed.Content)
	}
}

// HandleStreamDone resolves a stream's terminal event. Completion appends the
// assistant message (chat) or flushes the final content (generation); a
// backend failure surfaces as a failed outcome that still carries the partial
// content. Terminal events for superseded sessions are dropped like chunks.
func (s *Store) HandleStreamDone(ev StreamDoneEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.reconcile()

	st, tabID := s.liveStream(ev.RequestID)
	if st == nil {
		slog.Debug("dropping stale stream termination", "request", ev.RequestID)
		return
	}

	st.aborted = true
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}

	parsed := ParseThinking(st.buf.String())
	outcome := StreamOutcome{
		Status:   StatusCompleted,
		Content:  parsed.Content,
		Thinking: parsed.Thinking,
	}
	switch {
	case errors.Is(ev.Err, context.Canceled):
		outcome.Status = StatusStopped
	case ev.Err != nil:
		outcome.Status = StatusFailed
		outcome.Err = ev.Err
		slog.Warn("stream failed", "tab", tabID, "request", ev.RequestID, "error", ev.Err)
	}
	s.finalize(tabID, st, outcome)
}

// finalize records the outcome and applies the accumulated content to its
// destination. Partial content from stopped and failed streams is preserved,
// mirroring the completion path. Caller must hold s.mu.
func (s *Store) finalize(tabID string, st *StreamState, outcome StreamOutcome) {
	st.outcome = &outcome

	switch st.purpose {
	case PurposeChat:
		if strings.TrimSpace(outcome.Content) != "" || strings.TrimSpace(outcome.Thinking) != "" {
			s.messages[tabID] = append(s.messages[tabID], AIMessage{
				Role:      RoleAssistant,
				Content:   outcome.Content,
				Thinking:  outcome.Thinking,
				Timestamp: time.Now(),
			})
		}
	case PurposeGeneration:
		if st.flush != nil {
			st.flush.Add(outcome.Content)
			st.flush.Final()
		}
	}
}

// StreamStatusFor reports the tab's stream status; StatusCompleted doubles as
// "idle" for a tab that has never streamed.
func (s *Store) StreamStatusFor(tabID string) StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.streams[tabID]
	if st == nil || st.outcome == nil {
		return StatusCompleted
	}
	return st.outcome.Status
}

// LastOutcome returns the tab's most recent terminal outcome, or nil while a
// stream is live (or before any stream ran).
func (s *Store) LastOutcome(tabID string) *StreamOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.streams[tabID]
	if st == nil || st.outcome == nil || st.outcome.Status == StatusStreaming {
		return nil
	}
	out := *st.outcome
	return &out
}

// Streaming reports whether the tab has a live, non-aborted stream.
func (s *Store) Streaming(tabID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.streams[tabID]
	return st != nil && !st.aborted
}

// PendingAssistant exposes the live buffer split into thinking and content,
// for rendering an in-progress response.
func (s *Store) PendingAssistant(tabID string) (Parsed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.streams[tabID]
	if st == nil || st.aborted {
		return Parsed{}, false
	}
	return ParseThinking(st.buf.String()), true
}

// chatTurns builds the conversation for the backend from the tab's
// transcript. When the latest user message is scoped to a document field, the
// field's text is appended as reference material.
func (s *Store) chatTurns(tabID string, doc *Document, mode ContextMode) []ChatTurn {
	history := s.messages[tabID]
	turns := make([]ChatTurn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, ChatTurn{Role: msg.Role, Content: msg.Content})
	}

	if mode != ContextNone && doc != nil && len(turns) > 0 {
		var field string
		switch mode {
		case ContextContent:
			field = doc.Content
		case ContextAuthorNotes:
			field = doc.AuthorNotes
		case ContextAIContent:
			field = doc.AIGeneratedContent
		}
		if field != "" {
			last := &turns[len(turns)-1]
			last.Content = fmt.Sprintf("%s\n\n---\nReference material:\n%s", last.Content, field)
		}
	}
	return turns
}
