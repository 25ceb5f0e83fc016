// Package credstore persists the small set of key/value pairs that make up a
// karsaz session between runs. The flow package depends only on Store, so the
// backing mechanism (file, redis, memory) can be swapped without touching it.
package credstore

import "context"

// Keys used by karsaz. They match the keys the browser popup kept in
// extension storage so a migrated state file stays readable.
const (
	KeySessionToken   = "sessionId"
	KeyOrgContext     = "bizDomainId"
	KeyCachedAccounts = "cachedAccounts"
	KeyCurrentUser    = "currentUserId"
)

// Store is a get/set/remove key-value capability.
//
// Get returns only the keys that are present; absent keys are omitted from
// the map rather than reported as errors.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
	Remove(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}
