package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kingrea/karsaz/internal/credstore"
	"github.com/kingrea/karsaz/internal/crm"
)

var sessionKeys = []string{
	credstore.KeySessionToken,
	credstore.KeyOrgContext,
	credstore.KeyCachedAccounts,
	credstore.KeyCurrentUser,
}

// Session is the persisted login. OrgContextID is empty until a company is chosen.
type Session struct {
	Token        string
	OrgContextID string
	UserID       string
}

// HasToken reports whether a login token is present.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// Complete reports whether the session can make scoped requests.
func (s Session) Complete() bool {
	return s.Token != "" && s.OrgContextID != ""
}

func (s Session) scope() crm.Scope {
	return crm.Scope{Token: s.Token, OrgContextID: s.OrgContextID}
}

// OrgContext is one company the user can work in.
type OrgContext struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ContextsFromAccounts converts login accounts, keeping every entry.
func ContextsFromAccounts(accounts []crm.Account) []OrgContext {
	out := make([]OrgContext, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, OrgContext{
			ID:    strings.TrimSpace(account.Bizdomain.Name),
			Title: strings.TrimSpace(account.Bizdomain.Title),
		})
	}
	return out
}

// VisibleContexts drops entries missing an id or a title.
func VisibleContexts(contexts []OrgContext) []OrgContext {
	out := make([]OrgContext, 0, len(contexts))
	for _, c := range contexts {
		if c.ID == "" || c.Title == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func loadSession(ctx context.Context, store credstore.Store) (Session, []OrgContext, error) {
	values, err := store.Get(ctx, sessionKeys...)
	if err != nil {
		return Session{}, nil, err
	}
	sess := Session{
		Token:        strings.TrimSpace(values[credstore.KeySessionToken]),
		OrgContextID: strings.TrimSpace(values[credstore.KeyOrgContext]),
		UserID:       strings.TrimSpace(values[credstore.KeyCurrentUser]),
	}
	var cached []OrgContext
	if raw := values[credstore.KeyCachedAccounts]; raw != "" {
		// The cache is informational; a corrupt entry is ignored.
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			cached = nil
		}
	}
	return sess, cached, nil
}

func encodeContexts(contexts []OrgContext) (string, error) {
	if contexts == nil {
		contexts = []OrgContext{}
	}
	data, err := json.Marshal(contexts)
	if err != nil {
		return "", fmt.Errorf("encode cached accounts: %w", err)
	}
	return string(data), nil
}
