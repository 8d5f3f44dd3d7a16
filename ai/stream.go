package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/inkwell-studio/inkwell/workspace"
)

// maxStreamBuffer caps how much text one stream may deliver. A runaway model
// gets its stream failed instead of growing without bound.
const maxStreamBuffer = 10 * 1024 * 1024

// ErrStreamTooLarge fails streams that exceed maxStreamBuffer.
var ErrStreamTooLarge = errors.New("stream exceeded maximum buffer size")

// NotifyFunc carries events back to the embedding application. The streamer
// sends workspace.ChunkEvent and workspace.StreamDoneEvent values; the app
// forwards them into the store on its own turn.
type NotifyFunc func(any)

// Streamer runs completions against an llms.Model and implements
// workspace.Backend. Each request gets its own cancellable context, keyed by
// request id, so a stop targets exactly one stream. A terminal event is
// emitted for every started stream, whatever the outcome.
type Streamer struct {
	llm    llms.Model
	notify NotifyFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewStreamer binds a model to an event sink.
func NewStreamer(llm llms.Model, notify NotifyFunc) *Streamer {
	return &Streamer{
		llm:     llm,
		notify:  notify,
		cancels: make(map[string]context.CancelFunc),
	}
}

// StartChatStream begins streaming a chat completion. It returns once the
// stream is registered; chunks and the terminal event arrive via notify.
func (s *Streamer) StartChatStream(ctx context.Context, messages []workspace.ChatTurn, requestID string, opts workspace.StreamOptions) error {
	msgs := make([]llms.MessageContent, 0, len(messages))
	for _, turn := range messages {
		msgs = append(msgs, llms.TextParts(roleFor(turn.Role), turn.Content))
	}
	if len(msgs) == 0 {
		return fmt.Errorf("chat stream %s: empty conversation", requestID)
	}
	s.launch(ctx, requestID, msgs, opts)
	return nil
}

// StartGenerationStream begins streaming document generation. The prompt puts
// the author's notes first, with the current manuscript attached as reference
// material, on top of the chat history minus any trailing user message (its
// text is already folded into the notes by the caller's flow).
func (s *Streamer) StartGenerationStream(ctx context.Context, req workspace.GenerationRequest, requestID string, opts workspace.StreamOptions) error {
	var msgs []llms.MessageContent
	if req.SystemPrompt != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}

	history := req.History
	if n := len(history); n > 0 && history[n-1].Role == workspace.RoleUser {
		history = history[:n-1]
	}
	for _, turn := range history {
		msgs = append(msgs, llms.TextParts(roleFor(turn.Role), turn.Content))
	}

	prompt := req.AuthorNotes
	if req.CurrentContent != "" {
		prompt = fmt.Sprintf("%s\n\n---\nReference material:\n%s", prompt, req.CurrentContent)
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	s.launch(ctx, requestID, msgs, opts)
	return nil
}

// StopStream cancels the stream for requestID. Unknown ids are a no-op: the
// stream may already have finished and released itself.
func (s *Streamer) StopStream(requestID string) error {
	s.mu.Lock()
	cancel := s.cancels[requestID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *Streamer) launch(ctx context.Context, requestID string, msgs []llms.MessageContent, opts workspace.StreamOptions) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[requestID] = cancel
	s.mu.Unlock()

	go s.run(ctx, requestID, msgs, opts)
}

func (s *Streamer) run(ctx context.Context, requestID string, msgs []llms.MessageContent, opts workspace.StreamOptions) {
	defer s.release(requestID)

	total := 0
	callOpts := []llms.CallOption{
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			total += len(chunk)
			if total > maxStreamBuffer {
				return ErrStreamTooLarge
			}
			s.notify(workspace.ChunkEvent{RequestID: requestID, Content: string(chunk)})
			return nil
		}),
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}

	_, err := s.llm.GenerateContent(ctx, msgs, callOpts...)
	// A cancelled stream reports context.Canceled regardless of how the
	// provider dressed up the abort.
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("completion stream failed", "request", requestID, "error", err)
	}
	s.notify(workspace.StreamDoneEvent{RequestID: requestID, Err: err})
}

func (s *Streamer) release(requestID string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[requestID]; ok {
		cancel()
		delete(s.cancels, requestID)
	}
	s.mu.Unlock()
}

func roleFor(role workspace.Role) llms.ChatMessageType {
	if role == workspace.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}
