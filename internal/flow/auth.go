package flow

import (
	"context"
	"strings"

	"github.com/kingrea/karsaz/internal/credstore"
	"github.com/kingrea/karsaz/internal/crm"
)

// LoginResult is a successful login. Contexts are returned unfiltered;
// VisibleContexts is applied where they are displayed.
type LoginResult struct {
	Token    string
	UserID   string
	Contexts []OrgContext
}

// Authenticate signs in once. The service is the judge of the credentials:
// the username is only trimmed and blank values are sent as they are.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (LoginResult, error) {
	const op = "login"
	username = strings.TrimSpace(username)

	resp, err := m.remote.Login(ctx, username, password)
	if err != nil {
		if KindOf(err) == KindUnauthorized {
			return LoginResult{}, m.rejectLogin(ctx, op, username)
		}
		return LoginResult{}, m.fail(ctx, op, err)
	}

	token := strings.TrimSpace(resp.SessionID)
	if token == "" || token == crm.LoginFailedSentinel {
		return LoginResult{}, m.rejectLogin(ctx, op, username)
	}

	result := LoginResult{Token: token}
	if resp.Response != nil {
		result.UserID = resp.Response.ID.String()
		result.Contexts = ContextsFromAccounts(resp.Response.Accounts)
	}
	cachedAccounts, err := encodeContexts(result.Contexts)
	if err != nil {
		return LoginResult{}, &Error{Op: op, Kind: KindUnknown, Err: err}
	}
	values := map[string]string{
		credstore.KeySessionToken:   token,
		credstore.KeyCachedAccounts: cachedAccounts,
	}
	remove := []string{credstore.KeyOrgContext}
	if result.UserID != "" {
		values[credstore.KeyCurrentUser] = result.UserID
	} else {
		remove = append(remove, credstore.KeyCurrentUser)
	}
	if err := m.persist(ctx, op, values, remove...); err != nil {
		return LoginResult{}, err
	}
	m.logbook.Info("Signed in as %s (%d companies)", username, len(result.Contexts))
	return result, nil
}

// rejectLogin makes sure no session survives a failed login.
func (m *Manager) rejectLogin(ctx context.Context, op, username string) error {
	m.logbook.Warn("Login rejected for %s", username)
	if err := m.persist(ctx, op, nil, sessionKeys...); err != nil {
		return err
	}
	return &Error{Op: op, Kind: KindInvalidCredentials, Err: ErrInvalidCredentials}
}
