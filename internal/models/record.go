package models

import "maps"

// ConversationRecord is the persisted unit: the full transcript plus per-message
// elapsed-time metadata in milliseconds, keyed by message ID. Duration keys are not
// required to match message IDs currently in the transcript, so consumers must
// tolerate entries for messages that are no longer present.
type ConversationRecord struct {
	Messages  []Message        `json:"messages"`
	Durations map[string]int64 `json:"durations"`
}

// EmptyRecord returns a record with no messages and no durations.
func EmptyRecord() ConversationRecord {
	return ConversationRecord{
		Messages:  []Message{},
		Durations: map[string]int64{},
	}
}

// Normalized defaults each missing field independently, so a blob that parsed but
// lacks messages or durations still yields a usable record.
func (r ConversationRecord) Normalized() ConversationRecord {
	if r.Messages == nil {
		r.Messages = []Message{}
	}
	if r.Durations == nil {
		r.Durations = map[string]int64{}
	}
	return r
}

// Clone deep-copies the record.
func (r ConversationRecord) Clone() ConversationRecord {
	return ConversationRecord{
		Messages:  CloneMessages(r.Messages),
		Durations: maps.Clone(r.Durations),
	}
}
