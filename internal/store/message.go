package store

import (
	"database/sql"
	"time"
)

// UpsertMessage inserts or replaces a message (idempotent on
// msg_id + conversation_id). The upstream service is authoritative, so
// every field is overwritten on conflict.
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (msg_id, conversation_id, sender_name, body_plain,
			body_raw, message_type, compose_time, is_self, raw_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id, conversation_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body_plain = excluded.body_plain,
			body_raw = excluded.body_raw,
			message_type = excluded.message_type,
			compose_time = excluded.compose_time,
			is_self = excluded.is_self,
			raw_payload = excluded.raw_payload`,
		m.MsgID, m.ConversationID, m.SenderName, m.BodyPlain,
		m.BodyRaw, m.MessageType, m.ComposeTime, m.IsSelf, m.RawPayload, now)
	return cacheErr("upsert message", err)
}

// GetMessages returns the most recent limit messages for a conversation in
// chronological order. The query fetches newest-first so the limit picks the
// right window, then reverses for display.
func (db *DB) GetMessages(conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT msg_id, conversation_id, sender_name, body_plain, body_raw,
			message_type, compose_time, is_self, raw_payload
		FROM messages
		WHERE conversation_id = ?
		ORDER BY compose_time DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, cacheErr("get messages", err)
	}
	defer func() { _ = rows.Close() }()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, cacheErr("get messages", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LatestAcrossConversations returns up to perConv recent messages for each
// of the numConvs most recently active conversations. Conversations with no
// cached messages are skipped.
func (db *DB) LatestAcrossConversations(numConvs, perConv int) ([]ConversationMessages, error) {
	convs, err := db.ListConversations(numConvs)
	if err != nil {
		return nil, err
	}
	var result []ConversationMessages
	for _, conv := range convs {
		msgs, err := db.GetMessages(conv.ID, perConv)
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			continue
		}
		result = append(result, ConversationMessages{Conversation: conv, Messages: msgs})
	}
	return result, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.MsgID, &m.ConversationID, &m.SenderName, &m.BodyPlain,
			&m.BodyRaw, &m.MessageType, &m.ComposeTime, &m.IsSelf, &m.RawPayload); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
