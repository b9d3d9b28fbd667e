package store

import (
	"sync"

	"github.com/craftloom/saree-chat/internal/models"
)

// Memory holds the conversation record in process memory. It serves two purposes:
// the fallback when no durable storage is available, and a drop-in store for tests.
type Memory struct {
	mu  sync.Mutex
	rec models.ConversationRecord
}

// NewMemory creates a Memory store holding the empty record.
func NewMemory() *Memory {
	return &Memory{rec: models.EmptyRecord()}
}

// Load returns a copy of the held record.
func (m *Memory) Load() models.ConversationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Clone()
}

// Save replaces the held record with a copy of rec.
func (m *Memory) Save(rec models.ConversationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = rec.Normalized().Clone()
}
