// Package resolve turns free-form conversation targets (aliases, name
// fragments, raw thread ids) into canonical conversation ids.
package resolve

import (
	"fmt"
	"strings"

	"github.com/tmzdev/tmz/internal/config"
	"github.com/tmzdev/tmz/internal/store"
)

// threadIDPrefix marks canonical conversation ids; anything carrying it is
// used verbatim without a cache lookup.
const threadIDPrefix = "19:"

// NoMatchError means no cached conversation matched the target.
type NoMatchError struct {
	Target string
	Alias  string
}

func (e *NoMatchError) Error() string {
	if e.Alias != "" {
		return fmt.Sprintf("alias %q maps to %q, but no cached conversation matches - run 'tmz sync' or fix the alias", e.Alias, e.Target)
	}
	return fmt.Sprintf("no cached conversation matches %q - run 'tmz sync', or try 'tmz find %s'", e.Target, e.Target)
}

// AmbiguousError means more than one cached conversation matched the
// target. Candidates carries the matches for the caller to display.
type AmbiguousError struct {
	Target     string
	Alias      string
	Candidates []store.Conversation
}

func (e *AmbiguousError) Error() string {
	if e.Alias != "" {
		return fmt.Sprintf("alias %q maps to %q, which matches %d conversations - point the alias at an exact id", e.Alias, e.Target, len(e.Candidates))
	}
	return fmt.Sprintf("%q matches %d conversations - use the full id or create an alias", e.Target, len(e.Candidates))
}

// Resolver resolves targets against the alias map and the local cache.
type Resolver struct {
	cfg *config.Config
	db  *store.DB
}

// New creates a resolver over the given config and cache.
func New(cfg *config.Config, db *store.DB) *Resolver {
	return &Resolver{cfg: cfg, db: db}
}

// Resolve maps a target to a conversation id. Precedence: alias lookup
// first (an alias value that is already an id short-circuits), then raw id
// passthrough, then fuzzy match against cached conversations. kind, when
// non-empty, restricts fuzzy matches to that conversation kind; it applies
// to alias-derived search terms the same as to direct ones.
func (r *Resolver) Resolve(target, kind string) (string, error) {
	if value, ok := r.cfg.ResolveAlias(target); ok {
		if strings.HasPrefix(value, threadIDPrefix) {
			return value, nil
		}
		return r.fuzzy(value, kind, target)
	}
	if strings.HasPrefix(target, threadIDPrefix) {
		return target, nil
	}
	return r.fuzzy(target, kind, "")
}

func (r *Resolver) fuzzy(query, kind, alias string) (string, error) {
	matches, err := r.db.FindConversation(query)
	if err != nil {
		return "", err
	}
	if kind != "" {
		kept := matches[:0]
		for _, m := range matches {
			if m.Kind == kind {
				kept = append(kept, m)
			}
		}
		matches = kept
	}
	switch len(matches) {
	case 0:
		return "", &NoMatchError{Target: query, Alias: alias}
	case 1:
		return matches[0].ID, nil
	default:
		return "", &AmbiguousError{Target: query, Alias: alias, Candidates: matches}
	}
}
