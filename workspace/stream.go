package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ChunkEvent is one incremental unit of streamed text delivered by the
// backend. Chunks are correlated to the session that requested them through
// the request id only; the store resolves the owning tab.
type ChunkEvent struct {
	RequestID string
	Content   string
}

// StreamDoneEvent terminates a stream. A nil Err means the backend call
// resolved normally; context.Canceled is reported for user-initiated stops.
type StreamDoneEvent struct {
	RequestID string
	Err       error
}

// StreamPurpose selects where validated chunks are applied.
type StreamPurpose string

const (
	PurposeChat       StreamPurpose = "chat"
	PurposeGeneration StreamPurpose = "generation"
)

// StreamStatus describes how a stream attempt ended.
type StreamStatus string

const (
	StatusStreaming StreamStatus = "streaming"
	StatusCompleted StreamStatus = "completed"
	StatusStopped   StreamStatus = "stopped"
	StatusFailed    StreamStatus = "failed"
)

// StreamOutcome is the terminal result of a stream attempt. Stopped and
// failed outcomes still carry everything accumulated before the cut, so no
// partial content is ever discarded.
type StreamOutcome struct {
	Status   StreamStatus
	Content  string
	Thinking string
	Err      error
}

// StreamState is the per-tab session record. At most one live listener exists
// per tab; sessionID strictly increases on every start and stop and is never
// reused, which disqualifies in-flight chunks from superseded sessions.
// Terminated records stay in the registry as inert entries.
type StreamState struct {
	cancel    context.CancelFunc
	aborted   bool
	sessionID uint64
	requestID string
	purpose   StreamPurpose
	buf       strings.Builder
	flush     *coalescer
	outcome   *StreamOutcome
}

// requestRoute resolves a request id back to the tab and session that minted
// it. Routes outlive their sessions so that stale chunks can be recognized
// and dropped instead of failing the lookup.
type requestRoute struct {
	tabID     string
	sessionID uint64
}

// admitChunk is the dispatcher's validation filter. A chunk is applied only
// when the routed tab still has a session record, that record has not been
// aborted, and both the session id and request id still match the session
// that registered the listener. Everything else is a stale delivery.
func admitChunk(st *StreamState, route requestRoute, requestID string) bool {
	if st == nil || st.aborted {
		return false
	}
	if st.sessionID != route.sessionID {
		return false
	}
	return st.requestID == requestID
}

// startSession tears down any previous listener for the tab, then allocates
// the next session id and a fresh request id. Caller must hold s.mu.
func (s *Store) startSession(tabID string, purpose StreamPurpose) (*StreamState, context.Context) {
	prev := s.streams[tabID]
	var nextID uint64 = 1
	if prev != nil {
		if prev.cancel != nil {
			prev.cancel()
			prev.cancel = nil
		}
		prev.aborted = true
		nextID = prev.sessionID + 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &StreamState{
		cancel:    cancel,
		sessionID: nextID,
		requestID: fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), nextID),
		purpose:   purpose,
		outcome:   &StreamOutcome{Status: StatusStreaming},
	}
	s.streams[tabID] = st
	s.requests[st.requestID] = requestRoute{tabID: tabID, sessionID: st.sessionID}

	slog.Debug("stream session started",
		"tab", tabID, "session", st.sessionID, "request", st.requestID, "purpose", purpose)
	return st, ctx
}

// stopSession invalidates the tab's session synchronously: the aborted flag
// and the extra session bump disqualify any chunk still in flight, even one
// that arrives after a newer session has already started. The backend
// cancellation that follows is best-effort. Stopping a tab with no session is
// a no-op.
func (s *Store) stopSession(tabID string) *StreamState {
	st := s.streams[tabID]
	if st == nil || st.aborted {
		return nil
	}

	st.aborted = true
	st.sessionID++
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}

	if s.backend != nil && st.requestID != "" {
		if err := s.backend.StopStream(st.requestID); err != nil {
			slog.Debug("backend stop returned error", "request", st.requestID, "error", err)
		}
	}

	slog.Debug("stream session stopped", "tab", tabID, "request", st.requestID)
	return st
}

// liveStream resolves a request id to its stream state, returning nil for
// anything the dispatcher must drop. Caller must hold s.mu.
func (s *Store) liveStream(requestID string) (*StreamState, string) {
	route, ok := s.requests[requestID]
	if !ok {
		return nil, ""
	}
	st := s.streams[route.tabID]
	if !admitChunk(st, route, requestID) {
		return nil, ""
	}
	return st, route.tabID
}
