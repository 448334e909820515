package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// testToken builds an unsigned JWT with the given claims. Claims are never
// verified here, only decoded, so the empty signature is fine.
func testToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func defaultClaims(exp int64) map[string]any {
	return map[string]any{
		"tid": "tenant-1",
		"oid": "user-1",
		"upn": "ana@example.com",
		"exp": exp,
	}
}

func TestStateAtBoundaries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	cases := []struct {
		name      string
		expiresAt int64
		want      State
	}{
		{"well before expiry", now.Unix() + 3600, Valid},
		{"just outside buffer", now.Unix() + 301, Valid},
		{"just inside buffer", now.Unix() + 299, ExpiringSoon},
		{"at expiry", now.Unix(), Expired},
		{"past expiry", now.Unix() - 10, Expired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &Bundle{ExpiresAt: tc.expiresAt}
			if got := b.StateAt(now); got != tc.want {
				t.Errorf("StateAt = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStateAtNilBundle(t *testing.T) {
	var b *Bundle
	if got := b.StateAt(time.Now()); got != Absent {
		t.Errorf("StateAt(nil) = %v, want Absent", got)
	}
}

func TestNewBundleExtractsClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	tok := testToken(t, defaultClaims(exp))

	b, err := NewBundle(tok, "chat", "graph", "presence")
	if err != nil {
		t.Fatal(err)
	}
	if b.TenantID != "tenant-1" {
		t.Errorf("tenant = %q, want tenant-1", b.TenantID)
	}
	if b.UserID != "user-1" {
		t.Errorf("user = %q, want user-1", b.UserID)
	}
	if b.UserPrincipalName != "ana@example.com" {
		t.Errorf("upn = %q, want ana@example.com", b.UserPrincipalName)
	}
	if b.ExpiresAt != exp {
		t.Errorf("expires = %d, want %d", b.ExpiresAt, exp)
	}
}

func TestNewBundleUPNFallbacks(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	claims := defaultClaims(exp)
	delete(claims, "upn")
	claims["unique_name"] = "legacy@example.com"
	b, err := NewBundle(testToken(t, claims), "c", "g", "p")
	if err != nil {
		t.Fatal(err)
	}
	if b.UserPrincipalName != "legacy@example.com" {
		t.Errorf("upn = %q, want unique_name fallback", b.UserPrincipalName)
	}

	delete(claims, "unique_name")
	b, err = NewBundle(testToken(t, claims), "c", "g", "p")
	if err != nil {
		t.Fatal(err)
	}
	if b.UserPrincipalName != "unknown" {
		t.Errorf("upn = %q, want unknown", b.UserPrincipalName)
	}
}

func TestNewBundleMissingToken(t *testing.T) {
	tok := testToken(t, defaultClaims(time.Now().Add(time.Hour).Unix()))
	if _, err := NewBundle(tok, "", "g", "p"); err == nil {
		t.Fatal("want error for missing chat token")
	}
}

func TestNewBundleMalformedToken(t *testing.T) {
	_, err := NewBundle("not-a-jwt", "c", "g", "p")
	var parseErr *TokenParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want TokenParseError", err)
	}
}

func TestNewBundleMissingClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	for _, claim := range []string{"tid", "oid", "exp"} {
		claims := defaultClaims(exp)
		delete(claims, claim)
		_, err := NewBundle(testToken(t, claims), "c", "g", "p")
		var claimErr *ClaimError
		if !errors.As(err, &claimErr) {
			t.Fatalf("missing %s: err = %v, want ClaimError", claim, err)
		}
		if claimErr.Claim != claim {
			t.Errorf("claim = %q, want %q", claimErr.Claim, claim)
		}
	}
}

func TestBundleFromLocalStorage(t *testing.T) {
	tok := testToken(t, defaultClaims(time.Now().Add(time.Hour).Unix()))

	entry := func(secret string) string {
		raw, _ := json.Marshal(msalToken{Secret: secret})
		return string(raw)
	}
	entries := map[string]string{
		"uid.tid-login.windows.net-accesstoken-cid-tid-api.spaces.skype.com/.default":          entry(tok),
		"uid.tid-login.windows.net-accesstoken-cid-tid-chatsvcagg.teams.microsoft.com/.default": entry("chat-secret"),
		"uid.tid-login.windows.net-accesstoken-cid-tid-graph.microsoft.com/.default":            entry("graph-secret"),
		"uid.tid-login.windows.net-accesstoken-cid-tid-presence.teams.microsoft.com/.default":   entry("presence-secret"),
		"uid.tid-login.windows.net-refreshtoken-cid":                                            entry("ignored"),
	}

	b, err := BundleFromLocalStorage(entries)
	if err != nil {
		t.Fatal(err)
	}
	if b.ChatToken != "chat-secret" {
		t.Errorf("chat token = %q, want chat-secret", b.ChatToken)
	}
	if b.TenantID != "tenant-1" {
		t.Errorf("tenant = %q, want tenant-1", b.TenantID)
	}
}

func TestBundleFromLocalStorageMissingResource(t *testing.T) {
	if _, err := BundleFromLocalStorage(map[string]string{}); err == nil {
		t.Fatal("want error for empty localStorage dump")
	}
}
