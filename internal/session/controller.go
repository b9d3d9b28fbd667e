// Package session keeps the live chat session and the persisted conversation record in
// sync: it restores persisted state on bootstrap, seeds the welcome greeting at most once
// per process lifetime, and writes every observed transcript or duration change back
// through the store.
package session

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/craftloom/saree-chat/internal/models"
)

// DefaultWelcome is the greeting seeded into an empty conversation.
const DefaultWelcome = "Namaste! I'm your personal saree stylist. " +
	"Ask me about fabrics, colors, or occasions and I'll point you to the right drape."

// Store is the durable slot for the conversation record. Implementations are fail-soft:
// Load never fails and Save absorbs write errors, so the controller proceeds with
// in-memory state regardless of storage health.
type Store interface {
	Load() models.ConversationRecord
	Save(rec models.ConversationRecord)
}

// Engine is the streaming chat engine the controller observes. The engine is the sole
// authority on transcript growth; the controller only reads the live transcript, and
// seeds it during bootstrap, welcome injection, and reset.
type Engine interface {
	Messages() []models.Message
	Streaming() bool
	Send(text string) error
	Stop()
	SetMessages(messages []models.Message)
}

// Controller orchestrates bootstrap, welcome injection, autosave, and reset for a single
// conversation. One controller owns the persisted record exclusively.
type Controller struct {
	store  Store
	engine Engine
	logger *slog.Logger

	mu           sync.Mutex
	durations    map[string]int64
	welcome      string
	welcomeShown bool
	bootstrapped bool
}

// NewController creates a controller over the given store and engine. An empty welcome
// string selects DefaultWelcome.
func NewController(store Store, engine Engine, welcome string, logger *slog.Logger) *Controller {
	if welcome == "" {
		welcome = DefaultWelcome
	}
	return &Controller{
		store:     store,
		engine:    engine,
		logger:    logger.With(slog.String("module", "session")),
		durations: map[string]int64{},
		welcome:   welcome,
	}
}

// Bootstrap restores the persisted conversation into the live session. It must complete
// before the first submit is reachable, otherwise a stale default could overwrite an
// in-flight transcript. Calling it again is a no-op.
func (c *Controller) Bootstrap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bootstrapped {
		return
	}

	rec := c.store.Load().Normalized()
	c.engine.SetMessages(rec.Messages)
	c.durations = rec.Durations
	c.bootstrapped = true

	c.logger.Info("Conversation restored",
		slog.Int("messages", len(rec.Messages)),
		slog.Int("durations", len(rec.Durations)))
}

// EnsureWelcome seeds the fixed greeting as the entire transcript when the restored
// transcript is empty, and persists it immediately. The one-shot flag is tied to the
// controller's lifetime, so a later reset does not re-inject the greeting, and a
// restored conversation is never clobbered.
func (c *Controller) EnsureWelcome() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.welcomeShown || len(c.engine.Messages()) > 0 {
		return
	}

	welcome := models.TextMessage(
		fmt.Sprintf("welcome-%d", time.Now().UnixNano()),
		models.RoleAssistant,
		c.welcome,
	)
	c.engine.SetMessages([]models.Message{welcome})
	c.welcomeShown = true
	c.persistLocked()
}

// Submit forwards already-validated user text to the streaming engine. The resulting
// transcript growth is the engine's responsibility; the controller picks it up through
// TranscriptChanged.
func (c *Controller) Submit(text string) error {
	return c.engine.Send(text)
}

// TranscriptChanged persists the live transcript together with the current duration
// map. Wire it as an engine transcript-change subscriber. The notification snapshot is
// ignored on purpose: it can predate a concurrent Reset, and a save queued behind the
// reset must write the cleared transcript, not resurrect the one it observed.
func (c *Controller) TranscriptChanged(_ []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistLocked()
}

// RecordDuration upserts the elapsed time for one message, leaving every other entry in
// place, and persists the merged state.
func (c *Controller) RecordDuration(messageID string, durationMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durations[messageID] = durationMs
	c.persistLocked()
}

// Durations returns a copy of the per-message elapsed-time map.
func (c *Controller) Durations() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.durations)
}

// Messages returns the live transcript.
func (c *Controller) Messages() []models.Message {
	return c.engine.Messages()
}

// Streaming reports whether an assistant reply is currently in flight.
func (c *Controller) Streaming() bool {
	return c.engine.Streaming()
}

// Stop cancels an in-flight assistant reply. Whatever content has streamed so far
// stays in the transcript and gets autosaved.
func (c *Controller) Stop() {
	c.engine.Stop()
}

// Reset clears the transcript and timing data and persists the empty record. The
// welcome one-shot flag is left set, so the greeting does not reappear until the next
// process start.
func (c *Controller) Reset() {
	c.engine.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetMessages(nil)
	c.durations = map[string]int64{}
	c.store.Save(models.EmptyRecord())
	c.logger.Info("Conversation cleared")
}

func (c *Controller) persistLocked() {
	c.store.Save(models.ConversationRecord{
		Messages:  c.engine.Messages(),
		Durations: maps.Clone(c.durations),
	})
}
