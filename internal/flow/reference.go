package flow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/karsaz/internal/crm"
)

// ReferenceData is what the submission form is built from. It is owned by
// the caller and passed to Submit explicitly.
type ReferenceData struct {
	Users         []crm.User
	ActivityTypes []crm.ActivityType
	// CurrentUserID preselects the owner when it is among Users.
	CurrentUserID string
}

// DefaultOwner returns the id the owner selector should start on.
func (r ReferenceData) DefaultOwner() string {
	for _, u := range r.Users {
		if u.UserID.String() == r.CurrentUserID {
			return r.CurrentUserID
		}
	}
	if len(r.Users) > 0 {
		return r.Users[0].UserID.String()
	}
	return ""
}

// FilterUsers drops disabled users, keeping order.
func FilterUsers(users []crm.User) []crm.User {
	out := make([]crm.User, 0, len(users))
	for _, u := range users {
		if !u.IsDisabled {
			out = append(out, u)
		}
	}
	return out
}

// FilterActivityTypes drops disabled activity types, keeping order.
func FilterActivityTypes(types []crm.ActivityType) []crm.ActivityType {
	out := make([]crm.ActivityType, 0, len(types))
	for _, a := range types {
		if !a.IsDisabled {
			out = append(out, a)
		}
	}
	return out
}

// LoadReferenceData fetches the user list and the activity-type catalog
// concurrently. Both must succeed; there is no partial result.
func (m *Manager) LoadReferenceData(ctx context.Context) (ReferenceData, error) {
	const op = "load reference data"
	sess, err := m.Session(ctx)
	if err != nil {
		return ReferenceData{}, err
	}
	if !sess.HasToken() {
		return ReferenceData{}, &Error{Op: op, Kind: KindNoSession, Err: ErrNoSession}
	}
	if !sess.Complete() {
		return ReferenceData{}, &Error{Op: op, Kind: KindNoSession, Err: ErrIncompleteSession}
	}

	var (
		users []crm.User
		types []crm.ActivityType
	)
	scope := sess.scope()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := m.remote.ListUsers(gctx, scope)
		if err != nil {
			return err
		}
		users = FilterUsers(list)
		return nil
	})
	g.Go(func() error {
		list, err := m.remote.ListActivityTypes(gctx, scope)
		if err != nil {
			return err
		}
		types = FilterActivityTypes(list)
		return nil
	})
	if err := g.Wait(); err != nil {
		return ReferenceData{}, m.fail(ctx, op, err)
	}
	if len(users) == 0 || len(types) == 0 {
		m.logbook.Warn("Reference data has %d usable users and %d activity types", len(users), len(types))
	}
	return ReferenceData{Users: users, ActivityTypes: types, CurrentUserID: sess.UserID}, nil
}
