package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func conv(id, name, activity string) *Conversation {
	return &Conversation{
		ID:           id,
		DisplayName:  name,
		Kind:         KindGroup,
		LastActivity: activity,
		RawPayload:   "{}",
	}
}

func msg(id, convID, sender, body, composeTime string) *Message {
	return &Message{
		MsgID:          id,
		ConversationID: convID,
		SenderName:     sender,
		BodyPlain:      body,
		BodyRaw:        "<p>" + body + "</p>",
		MessageType:    "RichText/Html",
		ComposeTime:    composeTime,
		RawPayload:     "{}",
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestConversationUpsertOverwrites(t *testing.T) {
	db := testDB(t)

	c := conv("19:abc", "Platform Team", "2026-01-02T10:00:00Z")
	c.LastMessagePreview = "hello"
	if err := db.UpsertConversation(c); err != nil {
		t.Fatal(err)
	}

	// Re-sync with changed fields must fully overwrite.
	c.DisplayName = "Platform Team (renamed)"
	c.LastMessagePreview = "newer"
	c.LastActivity = "2026-01-02T11:00:00Z"
	if err := db.UpsertConversation(c); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want 1", len(convs))
	}
	if convs[0].DisplayName != "Platform Team (renamed)" {
		t.Errorf("display name = %q, want renamed value", convs[0].DisplayName)
	}
	if convs[0].LastMessagePreview != "newer" {
		t.Errorf("preview = %q, want newer", convs[0].LastMessagePreview)
	}
}

func TestListConversationsOrdersByActivity(t *testing.T) {
	db := testDB(t)

	for _, c := range []*Conversation{
		conv("19:old", "Old", "2026-01-01T00:00:00Z"),
		conv("19:new", "New", "2026-03-01T00:00:00Z"),
		conv("19:mid", "Mid", "2026-02-01T00:00:00Z"),
	} {
		if err := db.UpsertConversation(c); err != nil {
			t.Fatal(err)
		}
	}

	convs, err := db.ListConversations(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != "19:new" || convs[1].ID != "19:mid" {
		t.Errorf("order = %s, %s; want 19:new, 19:mid", convs[0].ID, convs[1].ID)
	}
}

func TestFindConversationCaseInsensitive(t *testing.T) {
	db := testDB(t)

	c := conv("19:abc", "Platform Team", "2026-01-01T00:00:00Z")
	c.MemberNames = "Ana Silva, Bruno Costa"
	if err := db.UpsertConversation(c); err != nil {
		t.Fatal(err)
	}

	for _, query := range []string{"platform", "PLATFORM", "ana silva", "19:abc"} {
		matches, err := db.FindConversation(query)
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 1 {
			t.Errorf("FindConversation(%q) = %d matches, want 1", query, len(matches))
		}
	}

	matches, err := db.FindConversation("nomatch")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("FindConversation(nomatch) = %d matches, want 0", len(matches))
	}
}

func TestGetConversationMissing(t *testing.T) {
	db := testDB(t)

	c, err := db.GetConversation("19:missing")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("got %v, want nil", c)
	}
}

func TestMessageIdentityIsPerConversation(t *testing.T) {
	db := testDB(t)

	// Same msg id in two conversations must produce two rows.
	if err := db.UpsertMessage(msg("m1", "19:a", "Ana", "in a", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(msg("m1", "19:b", "Ana", "in b", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}

	msgsA, err := db.GetMessages("19:a", 10)
	if err != nil {
		t.Fatal(err)
	}
	msgsB, err := db.GetMessages("19:b", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgsA) != 1 || len(msgsB) != 1 {
		t.Fatalf("got %d/%d messages, want 1/1", len(msgsA), len(msgsB))
	}
	if msgsA[0].BodyPlain != "in a" || msgsB[0].BodyPlain != "in b" {
		t.Error("messages crossed conversations")
	}
}

func TestMessageUpsertOverwrites(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(msg("m1", "19:a", "Ana", "original", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(msg("m1", "19:a", "Ana", "edited", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.GetMessages("19:a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].BodyPlain != "edited" {
		t.Errorf("body = %q, want edited", msgs[0].BodyPlain)
	}
}

func TestGetMessagesChronologicalWindow(t *testing.T) {
	db := testDB(t)

	// Insert out of order; read back the 2 most recent, oldest first.
	for _, m := range []*Message{
		msg("m2", "19:a", "Ana", "second", "2026-01-01T10:02:00Z"),
		msg("m1", "19:a", "Ana", "first", "2026-01-01T10:01:00Z"),
		msg("m3", "19:a", "Ana", "third", "2026-01-01T10:03:00Z"),
	} {
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.GetMessages("19:a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].BodyPlain != "second" || msgs[1].BodyPlain != "third" {
		t.Errorf("window = %s, %s; want second, third", msgs[0].BodyPlain, msgs[1].BodyPlain)
	}
}

func TestLatestAcrossConversations(t *testing.T) {
	db := testDB(t)

	for _, c := range []*Conversation{
		conv("19:busy", "Busy", "2026-02-01T00:00:00Z"),
		conv("19:quiet", "Quiet", "2026-01-01T00:00:00Z"),
		conv("19:empty", "Empty", "2026-03-01T00:00:00Z"),
	} {
		if err := db.UpsertConversation(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpsertMessage(msg("m1", "19:busy", "Ana", "hi", "2026-02-01T00:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(msg("m1", "19:quiet", "Bia", "oi", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatal(err)
	}

	groups, err := db.LatestAcrossConversations(3, 5)
	if err != nil {
		t.Fatal(err)
	}
	// The empty conversation is skipped.
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Conversation.ID != "19:busy" {
		t.Errorf("first group = %s, want 19:busy", groups[0].Conversation.ID)
	}
}

func TestSearchFindsAndFollowsEdits(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(conv("19:a", "Platform", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(msg("m1", "19:a", "Ana", "deploy window tonight", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}

	hits, err := db.Search("deploy", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].ConversationName != "Platform" {
		t.Errorf("conversation name = %q, want Platform", hits[0].ConversationName)
	}

	// Rewriting the body must update the index: the old token stops matching.
	if err := db.UpsertMessage(msg("m1", "19:a", "Ana", "meeting moved", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}
	hits, err = db.Search("deploy", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits after edit, want 0", len(hits))
	}
	hits, err = db.Search("meeting", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits for new body, want 1", len(hits))
	}
}

func TestSearchInConversation(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(msg("m1", "19:a", "Ana", "standup notes", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(msg("m2", "19:b", "Bia", "standup notes", "2026-01-01T11:00:00Z")); err != nil {
		t.Fatal(err)
	}

	hits, err := db.SearchInConversation("standup", "19:a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Message.ConversationID != "19:a" {
		t.Errorf("hit from %s, want 19:a", hits[0].Message.ConversationID)
	}
}

func TestAssetsRoundTripAndPrune(t *testing.T) {
	db := testDB(t)

	if err := db.CacheAsset("https://example.com/img", []byte{1, 2, 3}, "image/png"); err != nil {
		t.Fatal(err)
	}

	data, ct, err := db.GetAsset("https://example.com/img")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 || ct != "image/png" {
		t.Errorf("got %d bytes / %q, want 3 / image/png", len(data), ct)
	}

	has, err := db.HasAsset("https://example.com/img")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("HasAsset = false, want true")
	}

	// Fresh asset survives pruning.
	removed, err := db.PruneAssets(7)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("pruned %d fresh assets, want 0", removed)
	}

	// Backdate and prune again.
	if _, err := db.Exec("UPDATE assets SET cached_at = datetime('now', '-30 days')"); err != nil {
		t.Fatal(err)
	}
	removed, err = db.PruneAssets(7)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("pruned %d backdated assets, want 1", removed)
	}
}

func TestSyncStateRoundTrip(t *testing.T) {
	db := testDB(t)

	v, err := db.GetSyncState("last_sync_at")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("unset key = %q, want empty", v)
	}

	if err := db.SetSyncState("last_sync_at", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSyncState("last_sync_at", "2026-01-02T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetSyncState("last_sync_at")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2026-01-02T00:00:00Z" {
		t.Errorf("value = %q, want overwritten value", v)
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(conv("19:a", "A", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(msg("m1", "19:a", "Ana", "hi", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := db.CacheAsset("u", []byte{1, 2}, "image/png"); err != nil {
		t.Fatal(err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Conversations != 1 || stats.Messages != 1 || stats.Assets != 1 {
		t.Errorf("stats = %+v, want 1/1/1", stats)
	}
	if stats.AssetBytes != 2 {
		t.Errorf("asset bytes = %d, want 2", stats.AssetBytes)
	}
}
