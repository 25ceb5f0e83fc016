package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/karsaz/internal/crm"
)

// Fixed values the SaveActivity schema requires for a one-off, already
// logged activity.
const (
	dateTypeDue        = "NoTime"
	dateTypeDone       = "Notime"
	recurrenceOneTime  = "OneTime"
	recurrenceOnce     = 1
	timestampLayoutISO = "2006-01-02T15:04:05.000Z07:00"
)

var defaultLayout = crm.Layout{Top: 0, Height: 25, Width: 100, Right: 0}

// Form is what the user filled in. Duration is not part of it: it comes from
// the chosen activity type.
type Form struct {
	Title          string
	ActivityTypeID string
	OwnerID        string
	Note           string
}

// BuildActivity turns a form into a SaveActivity request. Due and done dates
// are both now; recurrence is one-time; notify and contact lists are empty.
func BuildActivity(form Form, refs ReferenceData, now time.Time) (crm.SaveActivityRequest, error) {
	typeID := strings.TrimSpace(form.ActivityTypeID)
	var activityType *crm.ActivityType
	for i := range refs.ActivityTypes {
		if refs.ActivityTypes[i].ID.String() == typeID {
			activityType = &refs.ActivityTypes[i]
			break
		}
	}
	if activityType == nil {
		return crm.SaveActivityRequest{}, fmt.Errorf("%w: %q", ErrUnknownActivityType, typeID)
	}

	ownerID := strings.TrimSpace(form.OwnerID)
	ownerKnown := false
	for _, u := range refs.Users {
		if u.UserID.String() == ownerID {
			ownerKnown = true
			break
		}
	}
	if !ownerKnown {
		return crm.SaveActivityRequest{}, fmt.Errorf("%w: %q", ErrUnknownOwner, ownerID)
	}

	stamp := now.UTC().Format(timestampLayoutISO)
	return crm.SaveActivityRequest{
		Activity: crm.Activity{
			ActivityTypeID:    activityType.ID,
			Title:             form.Title,
			Duration:          activityType.Duration,
			OwnerID:           crm.ID(ownerID),
			Note:              form.Note,
			DueDate:           stamp,
			DoneDate:          stamp,
			DueDateType:       dateTypeDue,
			DoneDateType:      dateTypeDone,
			RecurrenceEndDate: stamp,
			RecurrenceType:    recurrenceOneTime,
			RecurrenceData:    recurrenceOnce,
			RecurrenceCount:   recurrenceOnce,
			Notifies:          []string{},
			Contacts:          []string{},
			Loc:               defaultLayout,
		},
		NewAttachments: []string{},
		SetDone:        false,
	}, nil
}

// Submit sends one activity. Nothing is retried; on failure the caller keeps
// the form so the user can send it again.
func (m *Manager) Submit(ctx context.Context, form Form, refs ReferenceData) error {
	const op = "submit activity"
	sess, err := m.Session(ctx)
	if err != nil {
		return err
	}
	if !sess.Complete() {
		return &Error{Op: op, Kind: KindNoSession, Err: ErrIncompleteSession}
	}
	req, err := BuildActivity(form, refs, m.clock())
	if err != nil {
		return &Error{Op: op, Kind: KindValidation, Err: err}
	}
	if err := m.remote.SaveActivity(ctx, sess.scope(), req); err != nil {
		return m.fail(ctx, op, err)
	}
	m.logbook.Info("Activity %q created (%d min)", form.Title, req.Activity.Duration)
	return nil
}
