package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/craftloom/saree-chat/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	conversationBucket = []byte("conversation")
	recordKey          = []byte("current")
)

// Bolt persists the single conversation record in a BoltDB file, under one fixed
// bucket and key. Reads and writes are fail-soft: any storage failure is logged and
// absorbed, Load falls back to the empty record, and Save is best-effort.
type Bolt struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBolt opens (or creates, with 0600 permissions) the database file at the given
// path and ensures the conversation bucket exists. Opening is the only operation
// that reports an error; callers unable to open a database should fall back to the
// in-memory store.
func NewBolt(path string, logger *slog.Logger) (Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return Bolt{}, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return newBolt(db, logger)
}

func newBolt(db *bolt.DB, logger *slog.Logger) (Bolt, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationBucket)
		return err
	})
	if err != nil {
		// Release the handle, and with it the file lock, so the caller's fallback
		// does not strand the path.
		db.Close()
		return Bolt{}, fmt.Errorf("failed to create conversation bucket: %w", err)
	}

	return Bolt{
		db:     db,
		logger: logger.With(slog.String("module", "store")),
	}, nil
}

// Load reads the persisted conversation record. An absent key, a failed read, or a
// malformed blob all degrade to the empty record; a parseable blob with missing
// fields has each field defaulted independently.
func (b Bolt) Load() models.ConversationRecord {
	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(conversationBucket)
		if bkt == nil {
			return nil
		}

		if v := bkt.Get(recordKey); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		b.logger.Error("Failed to read conversation record", slog.String("err", err.Error()))
		return models.EmptyRecord()
	}
	if raw == nil {
		return models.EmptyRecord()
	}

	var rec models.ConversationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		b.logger.Error("Malformed conversation record, starting empty", slog.String("err", err.Error()))
		return models.EmptyRecord()
	}
	return rec.Normalized()
}

// Save overwrites the persisted conversation record. Serialization or write
// failures are logged and discarded; durability is best-effort.
func (b Bolt) Save(rec models.ConversationRecord) {
	v, err := json.Marshal(rec)
	if err != nil {
		b.logger.Error("Failed to marshal conversation record", slog.String("err", err.Error()))
		return
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(conversationBucket)
		if bkt == nil {
			return nil
		}
		return bkt.Put(recordKey, v)
	})
	if err != nil {
		b.logger.Error("Failed to write conversation record", slog.String("err", err.Error()))
	}
}

// Close releases the underlying database file.
func (b Bolt) Close() error {
	return b.db.Close()
}
