package store

// Search runs a full-text query over message bodies and sender names,
// newest first, joined with the owning conversation's display name. The
// LEFT JOIN keeps hits whose conversation row is missing (name comes back
// empty instead of the row being dropped).
func (db *DB) Search(query string, limit int) ([]SearchHit, error) {
	return db.searchFTS(query, "", limit)
}

// SearchInConversation is Search restricted to one conversation.
func (db *DB) SearchInConversation(query, conversationID string, limit int) ([]SearchHit, error) {
	return db.searchFTS(query, conversationID, limit)
}

func (db *DB) searchFTS(query, conversationID string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.msg_id, m.conversation_id, m.sender_name, m.body_plain,
			m.body_raw, m.message_type, m.compose_time, m.is_self, m.raw_payload,
			COALESCE(c.display_name, '') AS conversation_name
		FROM messages_fts fts
		JOIN messages m ON m.rowid = fts.rowid
		LEFT JOIN conversations c ON c.id = m.conversation_id
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if conversationID != "" {
		q += " AND m.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY m.compose_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, cacheErr("search", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(
			&h.Message.MsgID, &h.Message.ConversationID, &h.Message.SenderName,
			&h.Message.BodyPlain, &h.Message.BodyRaw, &h.Message.MessageType,
			&h.Message.ComposeTime, &h.Message.IsSelf, &h.Message.RawPayload,
			&h.ConversationName,
		); err != nil {
			return nil, cacheErr("search", err)
		}
		hits = append(hits, h)
	}
	return hits, cacheErr("search", rows.Err())
}
