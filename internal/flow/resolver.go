package flow

import (
	"context"

	"github.com/kingrea/karsaz/internal/credstore"
)

// Resolution is where a run starts.
type Resolution struct {
	Screen  Screen
	Session Session
	// Contexts is set when Screen is ScreenContextSelection.
	Contexts []OrgContext
}

// Resolve decides the first screen from the persisted session. It makes at
// most one identity request and never retries.
//
// A rejected token clears the session and yields Login with a nil error.
// Any other identity failure yields Login with the session kept and the
// error returned, so the caller can offer to resolve again.
func (m *Manager) Resolve(ctx context.Context) (Resolution, error) {
	const op = "resolve session"
	sess, cached, err := loadSession(ctx, m.store)
	if err != nil {
		return Resolution{Screen: ScreenLogin}, &Error{Op: op, Kind: KindStorage, Err: err}
	}
	if !sess.HasToken() {
		return Resolution{Screen: ScreenLogin}, nil
	}

	identity, err := m.remote.Me(ctx, sess.scope())
	if err != nil {
		ferr := m.fail(ctx, op, err)
		if KindOf(ferr) == KindUnauthorized {
			return Resolution{Screen: ScreenLogin}, nil
		}
		return Resolution{Screen: ScreenLogin, Session: sess}, ferr
	}

	if sess.UserID == "" && identity.ID != "" {
		sess.UserID = identity.ID.String()
		_ = m.persist(ctx, op, map[string]string{credstore.KeyCurrentUser: sess.UserID})
	}

	if sess.OrgContextID == "" {
		contexts := cached
		if len(contexts) == 0 {
			contexts = ContextsFromAccounts(identity.Accounts)
		}
		m.logbook.Info("Session restored, choosing a company")
		return Resolution{Screen: ScreenContextSelection, Session: sess, Contexts: contexts}, nil
	}
	m.logbook.Info("Session restored for company %s", sess.OrgContextID)
	return Resolution{Screen: ScreenLoadingReferenceData, Session: sess}, nil
}
