package flow

import (
	"context"
	"sync"

	"github.com/kingrea/karsaz/internal/crm"
)

// fakeRemote records calls and answers from canned values.
type fakeRemote struct {
	mu sync.Mutex

	identity crm.Identity
	meErr    error

	login    crm.LoginResponse
	loginErr error

	users    []crm.User
	usersErr error

	types    []crm.ActivityType
	typesErr error

	saveErr error
	saved   []crm.SaveActivityRequest

	calls  []string
	scopes []crm.Scope
}

func (f *fakeRemote) record(name string, scope crm.Scope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.scopes = append(f.scopes, scope)
}

func (f *fakeRemote) Me(_ context.Context, scope crm.Scope) (crm.Identity, error) {
	f.record("me", scope)
	return f.identity, f.meErr
}

func (f *fakeRemote) Login(_ context.Context, username, password string) (crm.LoginResponse, error) {
	f.record("login", crm.Scope{})
	return f.login, f.loginErr
}

func (f *fakeRemote) ListUsers(_ context.Context, scope crm.Scope) ([]crm.User, error) {
	f.record("users", scope)
	return f.users, f.usersErr
}

func (f *fakeRemote) ListActivityTypes(_ context.Context, scope crm.Scope) ([]crm.ActivityType, error) {
	f.record("types", scope)
	return f.types, f.typesErr
}

func (f *fakeRemote) SaveActivity(_ context.Context, scope crm.Scope, req crm.SaveActivityRequest) error {
	f.record("save", scope)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, req)
	return f.saveErr
}

func (f *fakeRemote) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
