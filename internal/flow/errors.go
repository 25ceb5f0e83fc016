package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/kingrea/karsaz/internal/crm"
)

// Kind classifies flow failures by how the UI must react to them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport: no response from the service; stay on the screen.
	KindTransport
	// KindUnauthorized: token rejected; the session has been cleared, go to Login.
	KindUnauthorized
	// KindInvalidCredentials: login answered with the failure sentinel or no token.
	KindInvalidCredentials
	// KindRejected: the service refused the request; its message is shown verbatim.
	KindRejected
	// KindValidation: local input does not match the cached reference data.
	KindValidation
	// KindNoSession: the operation needs a session that is not persisted.
	KindNoSession
	// KindStorage: the credential store failed.
	KindStorage
	// KindCanceled: the caller went away; nothing was persisted.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindRejected:
		return "rejected"
	case KindValidation:
		return "validation"
	case KindNoSession:
		return "no_session"
	case KindStorage:
		return "storage"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidCredentials  = errors.New("login failed: wrong username or password")
	ErrNoSession           = errors.New("no active session")
	ErrIncompleteSession   = errors.New("session has no company selected")
	ErrUnknownActivityType = errors.New("activity type is not in the loaded catalog")
	ErrUnknownOwner        = errors.New("owner is not in the loaded user list")
	ErrEmptyContextID      = errors.New("company id is required")
)

// Error is returned by every Manager operation.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err. Errors that did not come from this package
// are classified by the crm sentinels they wrap.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return classify(err)
}

// UserMessage is the text shown in the blocking notice for err.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindTransport:
		return "Could not reach the server. Check your connection and try again."
	case KindUnauthorized:
		return "Your session has expired. Please sign in again."
	case KindInvalidCredentials:
		return "Login failed. Check your username and password."
	case KindRejected:
		var apiErr *crm.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return "The server rejected the request."
	case KindValidation:
		var fe *Error
		if errors.As(err, &fe) {
			return capitalize(fe.Err.Error())
		}
		return capitalize(err.Error())
	case KindNoSession:
		return "You are signed out. Please sign in again."
	case KindStorage:
		return "Could not read or write the saved session."
	case KindCanceled:
		return "Canceled."
	default:
		return err.Error()
	}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, crm.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, crm.ErrTransport):
		return KindTransport
	case errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, crm.ErrRejected), errors.Is(err, crm.ErrDecode):
		return KindRejected
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrIncompleteSession):
		return KindNoSession
	case errors.Is(err, ErrUnknownActivityType), errors.Is(err, ErrUnknownOwner), errors.Is(err, ErrEmptyContextID):
		return KindValidation
	}
	return KindUnknown
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
