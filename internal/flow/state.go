package flow

// Screen is the user-facing state of a karsaz run.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenContextSelection
	ScreenLoadingReferenceData
	ScreenSubmissionForm
	ScreenClosed
)

func (s Screen) String() string {
	switch s {
	case ScreenLogin:
		return "login"
	case ScreenContextSelection:
		return "context-selection"
	case ScreenLoadingReferenceData:
		return "loading-reference-data"
	case ScreenSubmissionForm:
		return "submission-form"
	case ScreenClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is something that happened which may move the run to another screen.
type Event int

const (
	EventAuthenticated Event = iota
	EventLoginFailed
	EventContextSelected
	EventContextFailed
	EventReferenceLoaded
	EventReferenceFailed
	EventSubmitted
	EventSubmitFailed
	EventUnauthorized
	EventLoggedOut
	EventClosed
)

func (e Event) String() string {
	switch e {
	case EventAuthenticated:
		return "authenticated"
	case EventLoginFailed:
		return "login-failed"
	case EventContextSelected:
		return "context-selected"
	case EventContextFailed:
		return "context-failed"
	case EventReferenceLoaded:
		return "reference-loaded"
	case EventReferenceFailed:
		return "reference-failed"
	case EventSubmitted:
		return "submitted"
	case EventSubmitFailed:
		return "submit-failed"
	case EventUnauthorized:
		return "unauthorized"
	case EventLoggedOut:
		return "logged-out"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transition returns the screen that follows from after ev. Events that do
// not apply to from leave it unchanged. Closed is terminal.
func Transition(from Screen, ev Event) Screen {
	if from == ScreenClosed {
		return ScreenClosed
	}
	switch ev {
	case EventUnauthorized, EventLoggedOut:
		return ScreenLogin
	case EventClosed:
		return ScreenClosed
	}
	switch from {
	case ScreenLogin:
		if ev == EventAuthenticated {
			return ScreenContextSelection
		}
	case ScreenContextSelection:
		if ev == EventContextSelected {
			return ScreenLoadingReferenceData
		}
	case ScreenLoadingReferenceData:
		if ev == EventReferenceLoaded {
			return ScreenSubmissionForm
		}
	case ScreenSubmissionForm:
		if ev == EventSubmitted {
			return ScreenClosed
		}
	}
	return from
}

// EventForError maps a failed operation to the event it produces. Only an
// unauthorized failure moves the run; everything else keeps the screen.
func EventForError(err error, otherwise Event) Event {
	switch KindOf(err) {
	case KindUnauthorized, KindNoSession:
		return EventUnauthorized
	}
	return otherwise
}
