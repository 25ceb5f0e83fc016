package tui

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/karsaz/internal/credstore"
	"github.com/kingrea/karsaz/internal/crm"
	"github.com/kingrea/karsaz/internal/flow"
	"github.com/kingrea/karsaz/internal/logbook"
)

func TestStartsOnLoginWithoutSession(t *testing.T) {
	remote := &stubRemote{}
	app, _ := newTestApp(t, nil, remote)
	app = runCommands(t, app, app.Init())
	if app.screen != flow.ScreenLogin {
		t.Fatalf("expected login screen, got %s", app.screen)
	}
	if app.busy {
		t.Fatalf("resolution should be finished")
	}
	if calls := remote.callNames(); len(calls) != 0 {
		t.Fatalf("expected no requests without a token, got %v", calls)
	}
	if !strings.Contains(app.View(), "Sign in to Didar") {
		t.Fatalf("login form not rendered:\n%s", app.View())
	}
}

func TestLoginSelectAndSubmit(t *testing.T) {
	remote := &stubRemote{
		login: crm.LoginResponse{
			SessionID: "T2",
			Response: &crm.LoginPayload{ID: "U1", Accounts: []crm.Account{
				{Bizdomain: crm.BizDomain{Title: "Acme", Name: "biz1"}},
				{Bizdomain: crm.BizDomain{Title: "", Name: "biz2"}},
			}},
		},
		users: []crm.User{{UserID: "U1", FirstName: "Sara"}, {UserID: "U7", IsDisabled: true}},
		types: []crm.ActivityType{{ID: "9", Title: "Call", Duration: 30}},
	}
	app, store := newTestApp(t, nil, remote)
	app = runCommands(t, app, app.Init())

	app = typeText(t, app, "sara")
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if app.login.focus != loginPassword {
		t.Fatalf("enter on username should focus password")
	}
	app = typeText(t, app, "secret")
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})

	if app.screen != flow.ScreenContextSelection {
		t.Fatalf("expected context selection after login, got %s (notice %q)", app.screen, app.notice)
	}
	if got := len(app.contextMenu.Items()); got != 1 {
		t.Fatalf("expected one visible company card, got %d", got)
	}
	if !strings.Contains(app.View(), "Acme") {
		t.Fatalf("company card missing from view")
	}
	if remote.lastPassword != "secret" || remote.lastUsername != "sara" {
		t.Fatalf("unexpected credentials sent: %q/%q", remote.lastUsername, remote.lastPassword)
	}

	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if app.screen != flow.ScreenSubmissionForm {
		t.Fatalf("expected submission form, got %s (notice %q)", app.screen, app.notice)
	}
	if got := len(app.form.owners.options); got != 1 {
		t.Fatalf("disabled users must not be offered, got %d owners", got)
	}

	app = typeText(t, app, "Call client")
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})

	if app.screen != flow.ScreenClosed {
		t.Fatalf("expected closed after submit, got %s (notice %q)", app.screen, app.notice)
	}
	title, ok := app.Created()
	if !ok || title != "Call client" {
		t.Fatalf("created = %q, %v", title, ok)
	}
	saved := remote.savedRequests()
	if len(saved) != 1 {
		t.Fatalf("expected one save request, got %d", len(saved))
	}
	activity := saved[0].Activity
	if activity.Duration != 30 || activity.ActivityTypeID != "9" || activity.OwnerID != "U1" {
		t.Fatalf("unexpected activity: %+v", activity)
	}
	if got := store.Snapshot()[credstore.KeyOrgContext]; got != "biz1" {
		t.Fatalf("org context = %q, want biz1", got)
	}
}

func TestResumesFullSessionIntoForm(t *testing.T) {
	remote := &stubRemote{
		identity: crm.Identity{ID: "U2"},
		users:    []crm.User{{UserID: "U1", FirstName: "Ali"}, {UserID: "U2", FirstName: "Sara"}},
		types:    []crm.ActivityType{{ID: "9", Title: "Call", Duration: 30}, {ID: "4", Title: "Visit", Duration: 60}},
	}
	app, _ := newTestApp(t, fullSession(), remote)
	app = runCommands(t, app, app.Init())
	if app.screen != flow.ScreenSubmissionForm {
		t.Fatalf("expected submission form, got %s", app.screen)
	}
	if got := app.form.owners.selectedID(); got != "U2" {
		t.Fatalf("owner should default to the current user, got %s", got)
	}

	app = press(t, app, tea.KeyMsg{Type: tea.KeyTab})
	app = press(t, app, tea.KeyMsg{Type: tea.KeyRight})
	if got := app.form.types.selectedID(); got != "4" {
		t.Fatalf("expected second activity type selected, got %s", got)
	}
}

func TestSessionExpiredAtStartup(t *testing.T) {
	remote := &stubRemote{meErr: &crm.APIError{StatusCode: http.StatusUnauthorized}}
	app, store := newTestApp(t, map[string]string{credstore.KeySessionToken: "T1"}, remote)
	app = runCommands(t, app, app.Init())
	if app.screen != flow.ScreenLogin {
		t.Fatalf("expected login, got %s", app.screen)
	}
	if len(store.Snapshot()) != 0 {
		t.Fatalf("expired session must be cleared, got %v", store.Snapshot())
	}
}

func TestResolveTransportFailureCanBeRetried(t *testing.T) {
	remote := &stubRemote{
		meErr: crm.ErrTransport,
		users: []crm.User{{UserID: "U1"}},
		types: []crm.ActivityType{{ID: "9", Duration: 30}},
	}
	app, store := newTestApp(t, fullSession(), remote)
	app = runCommands(t, app, app.Init())
	if app.screen != flow.ScreenLogin || app.notice == "" {
		t.Fatalf("expected login with a notice, got %s notice=%q", app.screen, app.notice)
	}
	if len(store.Snapshot()) == 0 {
		t.Fatalf("a transport failure must keep the session")
	}

	remote.setMeErr(nil)
	app = press(t, app, keyRunes("r"))
	if app.screen != flow.ScreenSubmissionForm {
		t.Fatalf("retry should resume the session, got %s", app.screen)
	}
	if app.login.username.Value() != "" {
		t.Fatalf("retry key must not be typed into the form")
	}
}

func TestReferenceFailureStaysAndRetries(t *testing.T) {
	remote := &stubRemote{
		identity: crm.Identity{ID: "U1"},
		users:    []crm.User{{UserID: "U1"}},
		typesErr: &crm.APIError{StatusCode: http.StatusInternalServerError, Message: "catalog unavailable"},
	}
	app, _ := newTestApp(t, fullSession(), remote)
	app = runCommands(t, app, app.Init())
	if app.screen != flow.ScreenLoadingReferenceData {
		t.Fatalf("expected to stay on loading, got %s", app.screen)
	}
	if app.notice != "catalog unavailable" {
		t.Fatalf("notice = %q", app.notice)
	}
	if !app.loadFailed {
		t.Fatalf("load should be marked failed")
	}

	// first key only dismisses the notice
	app = press(t, app, keyRunes("x"))
	if app.notice != "" || app.screen != flow.ScreenLoadingReferenceData {
		t.Fatalf("notice not dismissed cleanly")
	}
	remote.setTypes([]crm.ActivityType{{ID: "9", Duration: 30}}, nil)
	app = press(t, app, keyRunes("r"))
	if app.screen != flow.ScreenSubmissionForm {
		t.Fatalf("expected form after retry, got %s (notice %q)", app.screen, app.notice)
	}
}

func TestSubmitRejectionKeepsForm(t *testing.T) {
	remote := &stubRemote{
		identity: crm.Identity{ID: "U1"},
		users:    []crm.User{{UserID: "U1"}},
		types:    []crm.ActivityType{{ID: "9", Duration: 30}},
		saveErr:  &crm.APIError{StatusCode: http.StatusBadRequest, Message: "Title is required"},
	}
	app, store := newTestApp(t, fullSession(), remote)
	app = runCommands(t, app, app.Init())
	app = typeText(t, app, "Draft")
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})

	if app.screen != flow.ScreenSubmissionForm {
		t.Fatalf("expected form to stay, got %s", app.screen)
	}
	if app.notice != "Title is required" {
		t.Fatalf("service message must be shown verbatim, got %q", app.notice)
	}
	if !strings.Contains(app.View(), "Title is required") {
		t.Fatalf("notice not rendered")
	}
	app = press(t, app, keyRunes("z"))
	if got := app.form.title.Value(); got != "Draft" {
		t.Fatalf("form inputs must be kept, title %q", got)
	}
	if len(store.Snapshot()) != 3 {
		t.Fatalf("session must survive a rejected submit, got %v", store.Snapshot())
	}
	if _, ok := app.Created(); ok {
		t.Fatalf("nothing was created")
	}
}

func TestUnauthorizedSubmitReturnsToLogin(t *testing.T) {
	remote := &stubRemote{
		identity: crm.Identity{ID: "U1"},
		users:    []crm.User{{UserID: "U1"}},
		types:    []crm.ActivityType{{ID: "9", Duration: 30}},
		saveErr:  &crm.APIError{StatusCode: http.StatusUnauthorized},
	}
	app, store := newTestApp(t, fullSession(), remote)
	app = runCommands(t, app, app.Init())
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	if app.screen != flow.ScreenLogin {
		t.Fatalf("expected login after unauthorized, got %s", app.screen)
	}
	if app.notice == "" {
		t.Fatalf("expected expiry notice")
	}
	if len(store.Snapshot()) != 0 {
		t.Fatalf("session must be cleared, got %v", store.Snapshot())
	}
}

func TestLogoutClearsSession(t *testing.T) {
	remote := &stubRemote{identity: crm.Identity{ID: "U1"}}
	seed := map[string]string{
		credstore.KeySessionToken:   "T1",
		credstore.KeyCachedAccounts: `[{"id":"biz1","title":"Acme"}]`,
	}
	app, store := newTestApp(t, seed, remote)
	app = runCommands(t, app, app.Init())
	if app.screen != flow.ScreenContextSelection {
		t.Fatalf("expected context selection, got %s", app.screen)
	}
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlL})
	if app.screen != flow.ScreenLogin {
		t.Fatalf("expected login after logout, got %s", app.screen)
	}
	if len(store.Snapshot()) != 0 {
		t.Fatalf("logout must clear the store, got %v", store.Snapshot())
	}
}

func TestLateLoginResultAfterQuitIsDiscarded(t *testing.T) {
	remote := &stubRemote{login: crm.LoginResponse{SessionID: "T2", Response: &crm.LoginPayload{ID: "U1"}}}
	app, store := newTestApp(t, nil, remote)
	app = runCommands(t, app, app.Init())
	app = typeText(t, app, "sara")

	pending := app.submitLogin()
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = runCommands(t, model, cmd)
	if app.screen != flow.ScreenClosed {
		t.Fatalf("expected closed after esc, got %s", app.screen)
	}

	model, _ = app.Update(pending())
	app = model.(*App)
	if app.screen != flow.ScreenClosed {
		t.Fatalf("late result must not reopen the UI")
	}
	if len(store.Snapshot()) != 0 {
		t.Fatalf("late login must not persist a session, got %v", store.Snapshot())
	}
}

func TestStaleGenerationIsIgnored(t *testing.T) {
	remote := &stubRemote{
		identity: crm.Identity{ID: "U1"},
		users:    []crm.User{{UserID: "U1"}},
		types:    []crm.ActivityType{{ID: "9", Duration: 30}},
	}
	app, _ := newTestApp(t, fullSession(), remote)
	app = runCommands(t, app, app.Init())
	before := app.gen
	model, cmd := app.Update(referenceLoadedMsg{gen: before - 1, err: crm.ErrTransport})
	app = runCommands(t, model, cmd)
	if app.notice != "" || app.gen != before || app.screen != flow.ScreenSubmissionForm {
		t.Fatalf("stale result changed the model: screen=%s notice=%q", app.screen, app.notice)
	}
}

func newTestApp(t *testing.T, seed map[string]string, remote *stubRemote) (*App, *credstore.MemoryStore) {
	t.Helper()
	store := credstore.NewMemoryStore(seed)
	lb, err := logbook.New(filepath.Join(t.TempDir(), "logs", "journey.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	clock := func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }
	manager := flow.NewManager(store, remote, flow.WithLogbook(lb), flow.WithClock(clock))
	app, err := NewApp(context.Background(), manager, WithLogbook(lb), WithStaticCursor())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app, store
}

func fullSession() map[string]string {
	return map[string]string{
		credstore.KeySessionToken: "T1",
		credstore.KeyOrgContext:   "biz1",
		credstore.KeyCurrentUser:  "U2",
	}
}

// runCommands executes cmd and everything it leads to, feeding each message
// back into the app. Spinner ticks are dropped and a quit ends the run.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		switch msg := msg.(type) {
		case nil:
			continue
		case tea.BatchMsg:
			queue = append(queue, msg...)
			continue
		case tea.QuitMsg:
			return app
		case spinner.TickMsg:
			continue
		}
		nextModel, nextCmd := app.Update(msg)
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		queue = append(queue, nextCmd)
	}
	return app
}

func press(t *testing.T, app *App, keys ...tea.KeyMsg) *App {
	t.Helper()
	for _, key := range keys {
		model, cmd := app.Update(key)
		app = runCommands(t, model, cmd)
	}
	return app
}

func typeText(t *testing.T, app *App, text string) *App {
	t.Helper()
	for _, r := range text {
		app = press(t, app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return app
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// stubRemote answers flow requests from canned values.
type stubRemote struct {
	mu sync.Mutex

	identity crm.Identity
	meErr    error
	login    crm.LoginResponse
	loginErr error
	users    []crm.User
	usersErr error
	types    []crm.ActivityType
	typesErr error
	saveErr  error

	lastUsername string
	lastPassword string
	saved        []crm.SaveActivityRequest
	calls        []string
}

func (s *stubRemote) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stubRemote) callNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubRemote) setMeErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meErr = err
}

func (s *stubRemote) setTypes(types []crm.ActivityType, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types, s.typesErr = types, err
}

func (s *stubRemote) savedRequests() []crm.SaveActivityRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crm.SaveActivityRequest(nil), s.saved...)
}

func (s *stubRemote) Me(context.Context, crm.Scope) (crm.Identity, error) {
	s.record("me")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.meErr
}

func (s *stubRemote) Login(_ context.Context, username, password string) (crm.LoginResponse, error) {
	s.record("login")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsername, s.lastPassword = username, password
	return s.login, s.loginErr
}

func (s *stubRemote) ListUsers(context.Context, crm.Scope) ([]crm.User, error) {
	s.record("users")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users, s.usersErr
}

func (s *stubRemote) ListActivityTypes(context.Context, crm.Scope) ([]crm.ActivityType, error) {
	s.record("types")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types, s.typesErr
}

func (s *stubRemote) SaveActivity(_ context.Context, _ crm.Scope, req crm.SaveActivityRequest) error {
	s.record("save")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, req)
	return s.saveErr
}
