package flow

import (
	"context"
	"strings"

	"github.com/kingrea/karsaz/internal/credstore"
)

// SelectContext attaches the chosen company to the persisted session. It
// makes no request; the caller moves on to LoadReferenceData. Selecting the
// same company again leaves the stored session unchanged.
func (m *Manager) SelectContext(ctx context.Context, contextID string) error {
	const op = "select company"
	contextID = strings.TrimSpace(contextID)
	if contextID == "" {
		return &Error{Op: op, Kind: KindValidation, Err: ErrEmptyContextID}
	}
	sess, err := m.Session(ctx)
	if err != nil {
		return err
	}
	if !sess.HasToken() {
		return &Error{Op: op, Kind: KindNoSession, Err: ErrNoSession}
	}
	// The account list only lives until a company is picked.
	if err := m.persist(ctx, op, map[string]string{credstore.KeyOrgContext: contextID}, credstore.KeyCachedAccounts); err != nil {
		return err
	}
	m.logbook.Info("Company %s selected", contextID)
	return nil
}
