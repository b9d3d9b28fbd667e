package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/craftloom/saree-chat/internal/models"
	bolt "go.etcd.io/bbolt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBolt(t *testing.T) Bolt {
	t.Helper()

	b, err := NewBolt(filepath.Join(t.TempDir(), "conversation.db"), discardLogger())
	if err != nil {
		t.Fatalf("NewBolt() error = %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return b
}

func seedRaw(t *testing.T, b Bolt, raw []byte) {
	t.Helper()

	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationBucket).Put(recordKey, raw)
	})
	if err != nil {
		t.Fatalf("failed to seed raw record: %v", err)
	}
}

func sampleRecord() models.ConversationRecord {
	return models.ConversationRecord{
		Messages: []models.Message{
			models.TextMessage("welcome-1", models.RoleAssistant, "Namaste!"),
			models.TextMessage("m1", models.RoleUser, "Show me red sarees"),
		},
		Durations: map[string]int64{"welcome-1": 120},
	}
}

func TestLoadEmptyDB(t *testing.T) {
	b := newTestBolt(t)

	got := b.Load()
	if !reflect.DeepEqual(got, models.EmptyRecord()) {
		t.Errorf("Load() = %+v, want empty record", got)
	}
}

func TestRoundTrip(t *testing.T) {
	b := newTestBolt(t)

	want := sampleRecord()
	b.Save(want)

	got := b.Load()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestSaveOverwrites(t *testing.T) {
	b := newTestBolt(t)

	b.Save(sampleRecord())
	want := models.ConversationRecord{
		Messages:  []models.Message{models.TextMessage("m2", models.RoleUser, "hello")},
		Durations: map[string]int64{},
	}
	b.Save(want)

	got := b.Load()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadMalformedBlob(t *testing.T) {
	b := newTestBolt(t)
	seedRaw(t, b, []byte("not-json"))

	got := b.Load()
	if !reflect.DeepEqual(got, models.EmptyRecord()) {
		t.Errorf("Load() = %+v, want empty record", got)
	}
}

func TestLoadMissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.ConversationRecord
	}{
		{
			name: "missing durations",
			raw:  `{"messages":[{"id":"m1","role":"user","parts":[{"type":"text","text":"hi"}]}]}`,
			want: models.ConversationRecord{
				Messages:  []models.Message{models.TextMessage("m1", models.RoleUser, "hi")},
				Durations: map[string]int64{},
			},
		},
		{
			name: "missing messages",
			raw:  `{"durations":{"a":10}}`,
			want: models.ConversationRecord{
				Messages:  []models.Message{},
				Durations: map[string]int64{"a": 10},
			},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: models.EmptyRecord(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBolt(t)
			seedRaw(t, b, []byte(tt.raw))

			got := b.Load()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Load() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFailedConstructorReleasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation.db")

	// Seed a valid database file so a read-only open succeeds afterwards.
	seed, err := bolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := seed.Close(); err != nil {
		t.Fatal(err)
	}

	// A read-only handle makes the bucket-creation transaction fail.
	ro, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := newBolt(ro, discardLogger()); err == nil {
		t.Fatal("newBolt() on a read-only database should fail")
	}

	// The failed constructor must have closed the handle; a leaked one would hold the
	// shared file lock and this read-write open would time out.
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("reopening after a failed constructor: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestLoadSurvivesDurationsForMissingMessages(t *testing.T) {
	b := newTestBolt(t)

	// Duration entries may refer to messages no longer in the transcript.
	rec := models.ConversationRecord{
		Messages:  []models.Message{},
		Durations: map[string]int64{"gone": 42},
	}
	b.Save(rec)

	got := b.Load()
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("Load() = %+v, want %+v", got, rec)
	}
}
