package store

import (
	"database/sql"
	"time"
)

// UpsertConversation inserts or replaces a conversation by id. All
// denormalized fields are overwritten so no stale values survive a sync.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, display_name, kind, last_message_preview,
			last_message_from, last_activity, member_names, raw_payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			kind = excluded.kind,
			last_message_preview = excluded.last_message_preview,
			last_message_from = excluded.last_message_from,
			last_activity = excluded.last_activity,
			member_names = excluded.member_names,
			raw_payload = excluded.raw_payload,
			updated_at = excluded.updated_at`,
		c.ID, c.DisplayName, c.Kind, c.LastMessagePreview,
		c.LastMessageFrom, c.LastActivity, c.MemberNames, c.RawPayload, now)
	return cacheErr("upsert conversation", err)
}

// ListConversations returns conversations ordered by last activity descending.
func (db *DB) ListConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, display_name, kind, last_message_preview, last_message_from,
			last_activity, member_names, raw_payload
		FROM conversations
		ORDER BY last_activity DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, cacheErr("list conversations", err)
	}
	defer func() { _ = rows.Close() }()

	convs, err := scanConversations(rows)
	return convs, cacheErr("list conversations", err)
}

// FindConversation fuzzy-matches against display name, member names, or id
// (case-insensitive substring). Capped at 10 results, most recent first.
// An empty result is valid, not an error.
func (db *DB) FindConversation(query string) ([]Conversation, error) {
	pattern := "%" + query + "%"
	rows, err := db.Query(`
		SELECT id, display_name, kind, last_message_preview, last_message_from,
			last_activity, member_names, raw_payload
		FROM conversations
		WHERE display_name LIKE ?1 COLLATE NOCASE
			OR member_names LIKE ?1 COLLATE NOCASE
			OR id LIKE ?1 COLLATE NOCASE
		ORDER BY last_activity DESC
		LIMIT 10`, pattern)
	if err != nil {
		return nil, cacheErr("find conversation", err)
	}
	defer func() { _ = rows.Close() }()

	convs, err := scanConversations(rows)
	return convs, cacheErr("find conversation", err)
}

// GetConversation returns a single conversation by id, or nil if not cached.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, display_name, kind, last_message_preview, last_message_from,
			last_activity, member_names, raw_payload
		FROM conversations
		WHERE id = ?`, id).
		Scan(&c.ID, &c.DisplayName, &c.Kind, &c.LastMessagePreview,
			&c.LastMessageFrom, &c.LastActivity, &c.MemberNames, &c.RawPayload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cacheErr("get conversation", err)
	}
	return &c, nil
}

func scanConversations(rows *sql.Rows) ([]Conversation, error) {
	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.Kind, &c.LastMessagePreview,
			&c.LastMessageFrom, &c.LastActivity, &c.MemberNames, &c.RawPayload); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
