package store

import (
	"database/sql"
	"fmt"
)

// CacheAsset stores binary content keyed by source URL, replacing any
// previous entry for the same URL.
func (db *DB) CacheAsset(url string, data []byte, contentType string) error {
	_, err := db.Exec(`
		INSERT INTO assets (url, data, content_type, cached_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(url) DO UPDATE SET
			data = excluded.data,
			content_type = excluded.content_type,
			cached_at = excluded.cached_at`,
		url, data, contentType)
	return cacheErr("cache asset", err)
}

// GetAsset returns a cached asset's data and content type, or nil data if
// the URL is not cached.
func (db *DB) GetAsset(url string) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := db.QueryRow(`SELECT data, content_type FROM assets WHERE url = ?`, url).
		Scan(&data, &contentType)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", cacheErr("get asset", err)
	}
	return data, contentType, nil
}

// HasAsset reports whether the URL is already cached.
func (db *DB) HasAsset(url string) (bool, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM assets WHERE url = ?`, url).Scan(&count)
	if err != nil {
		return false, cacheErr("has asset", err)
	}
	return count > 0, nil
}

// PruneAssets deletes assets older than the given number of days and
// returns the number of rows removed.
func (db *DB) PruneAssets(olderThanDays int) (int64, error) {
	res, err := db.Exec(`DELETE FROM assets WHERE cached_at < datetime('now', ?)`,
		fmt.Sprintf("-%d days", olderThanDays))
	if err != nil {
		return 0, cacheErr("prune assets", err)
	}
	n, err := res.RowsAffected()
	return n, cacheErr("prune assets", err)
}
