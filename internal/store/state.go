package store

import "database/sql"

// SetSyncState stores a key/value bookkeeping entry (last sync time,
// counters) for the daemon status surface.
func (db *DB) SetSyncState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return cacheErr("set sync state", err)
}

// GetSyncState returns the stored value for key, or "" when unset.
func (db *DB) GetSyncState(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", cacheErr("get sync state", err)
	}
	return value, nil
}

// Stats returns row counts for conversations, messages, and assets, plus
// the total asset byte size.
func (db *DB) Stats() (*Stats, error) {
	var s Stats
	if err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&s.Conversations); err != nil {
		return nil, cacheErr("stats", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&s.Messages); err != nil {
		return nil, cacheErr("stats", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM assets`).Scan(&s.Assets); err != nil {
		return nil, cacheErr("stats", err)
	}
	if err := db.QueryRow(`SELECT COALESCE(SUM(LENGTH(data)), 0) FROM assets`).Scan(&s.AssetBytes); err != nil {
		return nil, cacheErr("stats", err)
	}
	return &s, nil
}
