// Package flow holds the session-and-screen logic of karsaz: which screen a
// run starts on, and the login, company selection, reference data and
// submission steps that move it forward. It persists through a
// credstore.Store and talks to the CRM through Remote, so every step can be
// driven by fakes.
package flow

import (
	"context"
	"time"

	"github.com/kingrea/karsaz/internal/credstore"
	"github.com/kingrea/karsaz/internal/crm"
	"github.com/kingrea/karsaz/internal/logbook"
)

// Remote is the part of the CRM API the flows use. *crm.Client implements it.
type Remote interface {
	Me(ctx context.Context, scope crm.Scope) (crm.Identity, error)
	Login(ctx context.Context, username, password string) (crm.LoginResponse, error)
	ListUsers(ctx context.Context, scope crm.Scope) ([]crm.User, error)
	ListActivityTypes(ctx context.Context, scope crm.Scope) ([]crm.ActivityType, error)
	SaveActivity(ctx context.Context, scope crm.Scope, req crm.SaveActivityRequest) error
}

var _ Remote = (*crm.Client)(nil)

// Manager runs the flows against one store and one remote.
type Manager struct {
	store   credstore.Store
	remote  Remote
	clock   func() time.Time
	logbook *logbook.Logbook
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the submission timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogbook records flow outcomes in the journal.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(m *Manager) {
		m.logbook = lb
	}
}

// NewManager wires the flows to their collaborators.
func NewManager(store credstore.Store, remote Remote, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		remote: remote,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Session returns the persisted session.
func (m *Manager) Session(ctx context.Context) (Session, error) {
	sess, _, err := loadSession(ctx, m.store)
	if err != nil {
		return Session{}, &Error{Op: "load session", Kind: KindStorage, Err: err}
	}
	return sess, nil
}

// Logout forgets everything that was persisted.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return &Error{Op: "logout", Kind: KindStorage, Err: err}
	}
	m.logbook.Info("Signed out")
	return nil
}

// persist writes values unless ctx is already done, so a response that
// arrives after the UI closed never changes stored state.
func (m *Manager) persist(ctx context.Context, op string, values map[string]string, remove ...string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: op, Kind: KindCanceled, Err: err}
	}
	if len(remove) > 0 {
		if err := m.store.Remove(ctx, remove...); err != nil {
			return &Error{Op: op, Kind: KindStorage, Err: err}
		}
	}
	if len(values) > 0 {
		if err := m.store.Set(ctx, values); err != nil {
			return &Error{Op: op, Kind: KindStorage, Err: err}
		}
	}
	return nil
}

// fail wraps err for op. An unauthorized answer clears the stored session
// before returning; that is the only failure recovered automatically.
func (m *Manager) fail(ctx context.Context, op string, err error) error {
	kind := KindOf(err)
	if kind == KindUnauthorized {
		m.logbook.Warn("%s: session rejected by server, signing out", op)
		if ctx.Err() == nil {
			if clearErr := m.store.Remove(ctx, sessionKeys...); clearErr != nil {
				m.logbook.Error("%s: clear session: %v", op, clearErr)
			}
		}
	} else if kind != KindCanceled {
		m.logbook.Error("%s: %v", op, err)
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
