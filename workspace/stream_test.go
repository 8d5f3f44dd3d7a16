package workspace

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitChunk(t *testing.T) {
	t.Parallel()

	st := &StreamState{sessionID: 3, requestID: "r3"}
	route := requestRoute{tabID: "t1", sessionID: 3}

	assert.True(t, admitChunk(st, route, "r3"))
	assert.False(t, admitChunk(nil, route, "r3"), "no registry entry")
	assert.False(t, admitChunk(st, route, "r9"), "request id mismatch")

	st.aborted = true
	assert.False(t, admitChunk(st, route, "r3"), "aborted entry")

	st = &StreamState{sessionID: 4, requestID: "r3"}
	assert.False(t, admitChunk(st, route, "r3"), "session superseded since the route was minted")
}

// At most one live, non-aborted listener per tab for any start/stop sequence.
func TestRegistry_SingleLiveSession(t *testing.T) {
	t.Parallel()

	store, _, _, docs := newTestStore(1)
	tab, err := store.OpenDocument(docs[0].ID)
	require.NoError(t, err)

	seen := map[string]bool{}
	var lastReq string
	for i := 0; i < 10; i++ {
		req, err := store.SendChatMessage(tab.ID, fmt.Sprintf("msg %d", i), ContextNone, StreamOptions{})
		require.NoError(t, err)
		assert.False(t, seen[req], "request ids are never reused")
		seen[req] = true
		lastReq = req

		if i%3 == 0 {
			store.StopStream(tab.ID)
		}
	}

	// Only the most recent session can be live.
	assert.True(t, store.Streaming(tab.ID))
	store.HandleChunk(ChunkEvent{RequestID: lastReq, Content: "x"})
	pending, ok := store.PendingAssistant(tab.ID)
	require.True(t, ok)
	assert.Equal(t, "x", pending.Content)

	// Every superseded request is dead even though its record was never
	// deleted.
	for req := range seen {
		if req == lastReq {
			continue
		}
		store.HandleChunk(ChunkEvent{RequestID: req, Content: "stale"})
	}
	pending, _ = store.PendingAssistant(tab.ID)
	assert.Equal(t, "x", pending.Content, "stale chunks left no trace")
}

func TestRegistry_StopWithoutSessionIsNoop(t *testing.T) {
	t.Parallel()

	store, backend, _, docs := newTestStore(1)
	tab, err := store.OpenDocument(docs[0].ID)
	require.NoError(t, err)

	assert.Equal(t, "", store.StopStream(tab.ID))
	assert.Empty(t, backend.stopped(), "no backend cancellation issued")
}

func TestRegistry_StopIssuesBackendCancellation(t *testing.T) {
	t.Parallel()

	store, backend, _, docs := newTestStore(1)
	tab, err := store.OpenDocument(docs[0].ID)
	require.NoError(t, err)

	req, err := store.SendChatMessage(tab.ID, "hello", ContextNone, StreamOptions{})
	require.NoError(t, err)
	store.StopStream(tab.ID)

	assert.Equal(t, []string{req}, backend.stopped())
	assert.False(t, store.Streaming(tab.ID))
}

func TestRegistry_BackendStartFailureTearsDown(t *testing.T) {
	t.Parallel()

	store, backend, _, docs := newTestStore(1)
	tab, err := store.OpenDocument(docs[0].ID)
	require.NoError(t, err)

	backend.startErr = assert.AnError
	_, err = store.SendChatMessage(tab.ID, "hello", ContextNone, StreamOptions{})
	require.Error(t, err)
	assert.False(t, store.Streaming(tab.ID))
}
