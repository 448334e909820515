package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshBuffer is the lead time before literal expiry at which a bundle is
// no longer considered safe for new long-running work.
const RefreshBuffer = 5 * time.Minute

// Bundle holds the scoped access tokens issued together by one login, plus
// identity claims extracted from the chat-service token. The bundle is
// refreshed atomically; individual tokens do not expire independently.
type Bundle struct {
	SkypeToken    string `json:"skype_token"`
	ChatToken     string `json:"chat_token"`
	GraphToken    string `json:"graph_token"`
	PresenceToken string `json:"presence_token"`

	TenantID          string `json:"tenant_id"`
	UserID            string `json:"user_id"`
	UserPrincipalName string `json:"user_principal_name"`
	ExpiresAt         int64  `json:"expires_at"` // unix seconds
}

// State classifies a bundle's position in its lifetime.
type State int

const (
	Absent State = iota
	Valid
	ExpiringSoon
	Expired
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Valid:
		return "valid"
	case ExpiringSoon:
		return "expiring soon"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// StateAt returns the lifecycle state of the bundle at the given instant.
// Safe on a nil receiver.
func (b *Bundle) StateAt(now time.Time) State {
	if b == nil {
		return Absent
	}
	remaining := time.Duration(b.ExpiresAt-now.Unix()) * time.Second
	switch {
	case remaining <= 0:
		return Expired
	case remaining <= RefreshBuffer:
		return ExpiringSoon
	default:
		return Valid
	}
}

// TokenParseError indicates a structurally malformed access token.
type TokenParseError struct {
	Err error
}

func (e *TokenParseError) Error() string { return fmt.Sprintf("malformed access token: %v", e.Err) }

func (e *TokenParseError) Unwrap() error { return e.Err }

// ClaimError indicates a required claim is missing from the token.
type ClaimError struct {
	Claim string
}

func (e *ClaimError) Error() string { return fmt.Sprintf("token missing required claim %q", e.Claim) }

// NewBundle builds a bundle from the four scoped tokens, extracting tenant,
// user, principal name, and expiry from the skype-scoped token's claims.
// All four tokens must be present.
func NewBundle(skypeToken, chatToken, graphToken, presenceToken string) (*Bundle, error) {
	for name, tok := range map[string]string{
		"skype":    skypeToken,
		"chat":     chatToken,
		"graph":    graphToken,
		"presence": presenceToken,
	} {
		if tok == "" {
			return nil, fmt.Errorf("missing %s token", name)
		}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(skypeToken, claims); err != nil {
		return nil, &TokenParseError{Err: err}
	}

	tenantID, _ := claims["tid"].(string)
	if tenantID == "" {
		return nil, &ClaimError{Claim: "tid"}
	}
	userID, _ := claims["oid"].(string)
	if userID == "" {
		return nil, &ClaimError{Claim: "oid"}
	}
	upn, _ := claims["upn"].(string)
	if upn == "" {
		upn, _ = claims["unique_name"].(string)
	}
	if upn == "" {
		upn = "unknown"
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, &ClaimError{Claim: "exp"}
	}

	return &Bundle{
		SkypeToken:        skypeToken,
		ChatToken:         chatToken,
		GraphToken:        graphToken,
		PresenceToken:     presenceToken,
		TenantID:          tenantID,
		UserID:            userID,
		UserPrincipalName: upn,
		ExpiresAt:         exp.Unix(),
	}, nil
}

// msalToken is the structure MSAL stores per access token in localStorage.
type msalToken struct {
	Secret string `json:"secret"`
}

// Token resource identifiers the login flow extracts from localStorage.
const (
	resourceSkype    = "api.spaces.skype.com"
	resourceChat     = "chatsvcagg.teams.microsoft.com"
	resourceGraph    = "graph.microsoft.com"
	resourcePresence = "presence.teams.microsoft.com"
)

// BundleFromLocalStorage extracts the four scoped tokens from a browser
// localStorage dump and builds a Bundle.
func BundleFromLocalStorage(entries map[string]string) (*Bundle, error) {
	secrets := make(map[string]string, 4)
	for _, resource := range []string{resourceSkype, resourceChat, resourceGraph, resourcePresence} {
		raw, ok := findToken(entries, resource)
		if !ok {
			return nil, fmt.Errorf("no token found for resource %s", resource)
		}
		var tok msalToken
		if err := json.Unmarshal([]byte(raw), &tok); err != nil {
			return nil, fmt.Errorf("parsing token for %s: %w", resource, err)
		}
		secrets[resource] = tok.Secret
	}
	return NewBundle(secrets[resourceSkype], secrets[resourceChat],
		secrets[resourceGraph], secrets[resourcePresence])
}

func findToken(entries map[string]string, resource string) (string, bool) {
	lower := strings.ToLower(resource)
	for k, v := range entries {
		if strings.Contains(k, "accesstoken") &&
			strings.Contains(k, "login.windows.net") &&
			strings.Contains(strings.ToLower(k), lower) {
			return v, true
		}
	}
	return "", false
}
