package resolve

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/tmzdev/tmz/internal/config"
	"github.com/tmzdev/tmz/internal/store"
)

func testResolver(t *testing.T, aliases map[string]string) *Resolver {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	seed := []store.Conversation{
		{ID: "19:platform", DisplayName: "Platform Team", Kind: store.KindGroup},
		{ID: "19:ana", DisplayName: "Ana Silva", Kind: store.KindOneToOne},
		{ID: "19:ana-standup", DisplayName: "Ana standup notes", Kind: store.KindChannel},
	}
	for i := range seed {
		if err := db.UpsertConversation(&seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	for k, v := range aliases {
		cfg.Aliases[k] = v
	}
	return New(cfg, db)
}

func TestResolveRawIDPassthrough(t *testing.T) {
	r := testResolver(t, nil)

	// Ids are used verbatim, even when not present in the cache.
	id, err := r.Resolve("19:something-not-cached", "")
	if err != nil {
		t.Fatal(err)
	}
	if id != "19:something-not-cached" {
		t.Errorf("id = %q, want passthrough", id)
	}
}

func TestResolveAliasToID(t *testing.T) {
	r := testResolver(t, map[string]string{"team": "19:platform"})

	id, err := r.Resolve("team", "")
	if err != nil {
		t.Fatal(err)
	}
	if id != "19:platform" {
		t.Errorf("id = %q, want 19:platform", id)
	}

	// Alias lookup is case-insensitive.
	id, err = r.Resolve("TEAM", "")
	if err != nil {
		t.Fatal(err)
	}
	if id != "19:platform" {
		t.Errorf("id = %q, want 19:platform", id)
	}
}

func TestResolveAliasToSearchTerm(t *testing.T) {
	r := testResolver(t, map[string]string{"team": "platform"})

	id, err := r.Resolve("team", "")
	if err != nil {
		t.Fatal(err)
	}
	if id != "19:platform" {
		t.Errorf("id = %q, want fuzzy match via alias value", id)
	}
}

func TestResolveFuzzySingleMatch(t *testing.T) {
	r := testResolver(t, nil)

	id, err := r.Resolve("platform", "")
	if err != nil {
		t.Fatal(err)
	}
	if id != "19:platform" {
		t.Errorf("id = %q, want 19:platform", id)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	r := testResolver(t, nil)

	_, err := r.Resolve("ana", "")
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("err = %v, want AmbiguousError", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(amb.Candidates))
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := testResolver(t, nil)

	_, err := r.Resolve("nobody", "")
	var nm *NoMatchError
	if !errors.As(err, &nm) {
		t.Fatalf("err = %v, want NoMatchError", err)
	}
}

func TestResolveKindFilterDisambiguates(t *testing.T) {
	r := testResolver(t, nil)

	// "ana" alone is ambiguous; restricting to oneToOne leaves one match.
	id, err := r.Resolve("ana", store.KindOneToOne)
	if err != nil {
		t.Fatal(err)
	}
	if id != "19:ana" {
		t.Errorf("id = %q, want 19:ana", id)
	}
}

func TestResolveKindFilterAppliesToAliasTerms(t *testing.T) {
	r := testResolver(t, map[string]string{"a": "ana"})

	id, err := r.Resolve("a", store.KindChannel)
	if err != nil {
		t.Fatal(err)
	}
	if id != "19:ana-standup" {
		t.Errorf("id = %q, want 19:ana-standup", id)
	}

	// Filtering away every match reports no match, naming the alias.
	_, err = r.Resolve("a", store.KindMeeting)
	var nm *NoMatchError
	if !errors.As(err, &nm) {
		t.Fatalf("err = %v, want NoMatchError", err)
	}
	if nm.Alias != "a" {
		t.Errorf("alias = %q, want a", nm.Alias)
	}
}
