// Package engine implements the streaming chat engine: it owns the live transcript and
// grows it as the assistant reply streams in from the LLM provider.
package engine

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/craftloom/saree-chat/internal/models"
	"github.com/google/uuid"
)

const errLoggerKey = "err"

// LLM streams assistant reply text for a conversation. The returned iterator yields
// text chunks in arrival order and stops after the first error.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// Engine holds the live transcript and streaming status. Send appends the user message
// and an empty assistant message, then streams provider chunks into that message's text
// part, notifying transcript-change subscribers after every mutation. Only one reply
// can be in flight at a time.
type Engine struct {
	llm    LLM
	logger *slog.Logger

	mu        sync.Mutex
	messages  []models.Message
	streaming bool
	cancel    context.CancelFunc
	onChange  []func(messages []models.Message)
	onReply   []func(messageID string, elapsed time.Duration)
}

// New creates an engine with an empty transcript.
func New(llm LLM, logger *slog.Logger) *Engine {
	return &Engine{
		llm:      llm,
		logger:   logger.With(slog.String("module", "engine")),
		messages: []models.Message{},
	}
}

// OnChange registers fn to run after every transcript mutation, with a snapshot of the
// full transcript. Registration is expected to happen during wiring, before Send.
func (e *Engine) OnChange(fn func(messages []models.Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, fn)
}

// OnReplyDone registers fn to run when an assistant reply finishes streaming, whether
// it completed or was stopped, with the reply's elapsed wall time.
func (e *Engine) OnReplyDone(fn func(messageID string, elapsed time.Duration)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReply = append(e.onReply, fn)
}

// Messages returns a snapshot of the live transcript.
func (e *Engine) Messages() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.CloneMessages(e.messages)
}

// Streaming reports whether an assistant reply is currently in flight.
func (e *Engine) Streaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streaming
}

// SetMessages replaces the live transcript. It seeds restored or reset state, so it
// does not notify subscribers; the caller decides whether to persist.
func (e *Engine) SetMessages(messages []models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = models.CloneMessages(messages)
}

// Send appends text as a user message and streams the assistant reply in the
// background. It fails when a reply is already in flight.
func (e *Engine) Send(text string) error {
	e.mu.Lock()
	if e.streaming {
		e.mu.Unlock()
		return errors.New("a reply is already streaming")
	}

	ctx, cancel := context.WithCancel(context.Background())

	user := models.TextMessage(uuid.New().String(), models.RoleUser, text)
	reply := models.TextMessage(uuid.New().String(), models.RoleAssistant, "")
	e.messages = append(e.messages, user, reply)
	e.streaming = true
	e.cancel = cancel

	// The empty reply placeholder stays out of the provider prompt.
	history := models.CloneMessages(e.messages[:len(e.messages)-1])
	snapshot := models.CloneMessages(e.messages)
	subs := e.changeSubsLocked()
	e.mu.Unlock()

	notify(subs, snapshot)

	go e.stream(ctx, cancel, history, reply.ID)

	return nil
}

// Stop cancels the in-flight reply, if any. The transcript keeps whatever content has
// streamed so far.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) stream(ctx context.Context, cancel context.CancelFunc, history []models.Message, replyID string) {
	defer cancel()
	started := time.Now()

	for chunk, err := range e.llm.Chat(ctx, history) {
		if err != nil {
			e.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			break
		}
		if chunk == "" {
			continue
		}
		e.appendChunk(replyID, chunk)
	}

	e.finish(replyID, time.Since(started))
}

// appendChunk grows the reply's text part. The chunk is dropped when the reply is no
// longer in the transcript, which happens when a reset raced the stream.
func (e *Engine) appendChunk(replyID, chunk string) {
	e.mu.Lock()
	idx := e.indexOfLocked(replyID)
	if idx == -1 {
		e.mu.Unlock()
		return
	}

	parts := e.messages[idx].Parts
	parts[len(parts)-1].Text += chunk

	snapshot := models.CloneMessages(e.messages)
	subs := e.changeSubsLocked()
	e.mu.Unlock()

	notify(subs, snapshot)
}

func (e *Engine) finish(replyID string, elapsed time.Duration) {
	e.mu.Lock()
	e.streaming = false
	e.cancel = nil
	found := e.indexOfLocked(replyID) != -1
	snapshot := models.CloneMessages(e.messages)
	replySubs := make([]func(string, time.Duration), len(e.onReply))
	copy(replySubs, e.onReply)
	subs := e.changeSubsLocked()
	e.mu.Unlock()

	if !found {
		return
	}
	// Reply-done subscribers run first, so the elapsed time they record is visible to
	// renderers picking up the final notification.
	for _, fn := range replySubs {
		fn(replyID, elapsed)
	}
	notify(subs, snapshot)
}

func (e *Engine) indexOfLocked(messageID string) int {
	for i := range e.messages {
		if e.messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

func (e *Engine) changeSubsLocked() []func([]models.Message) {
	subs := make([]func([]models.Message), len(e.onChange))
	copy(subs, e.onChange)
	return subs
}

func notify(subs []func([]models.Message), messages []models.Message) {
	for _, fn := range subs {
		fn(messages)
	}
}
