// internal/tui/app.go
//
// This is the terminal UI for karsaz. It uses bubbletea, which follows The
// Elm Architecture:
//
// 1. Model: the App struct below
// 2. Update: turns a message into the next model
// 3. View: renders the model to a string
//
// Screens follow flow.Screen and every move between them goes through
// flow.Transition. Network work runs inside tea.Cmds that report back with
// a *Msg carrying the screen generation they were started for.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/karsaz/internal/flow"
	"github.com/kingrea/karsaz/internal/logbook"
)

const logPanelLines = 6

// Flow is what the UI drives. *flow.Manager implements it.
type Flow interface {
	Resolve(ctx context.Context) (flow.Resolution, error)
	Authenticate(ctx context.Context, username, password string) (flow.LoginResult, error)
	SelectContext(ctx context.Context, contextID string) error
	LoadReferenceData(ctx context.Context) (flow.ReferenceData, error)
	Submit(ctx context.Context, form flow.Form, refs flow.ReferenceData) error
	Logout(ctx context.Context) error
}

var _ Flow = (*flow.Manager)(nil)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook shows the journal tail under the screens.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithLogger sends screen changes to a structured logger.
func WithLogger(logger *zap.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithStaticCursor stops input cursors from blinking, so focusing an input
// schedules no timer.
func WithStaticCursor() AppOption {
	return func(a *App) {
		a.staticCursor = true
	}
}

type resolvedMsg struct {
	gen int
	res flow.Resolution
	err error
}

type loginFinishedMsg struct {
	gen int
	res flow.LoginResult
	err error
}

type contextSelectedMsg struct {
	gen   int
	title string
	err   error
}

type referenceLoadedMsg struct {
	gen  int
	refs flow.ReferenceData
	err  error
}

type submitFinishedMsg struct {
	gen   int
	title string
	err   error
}

// loggedOutMsg is not tied to a generation: a sign-out always wins.
type loggedOutMsg struct {
	err error
}

// contextItem implements list.Item for one company card.
type contextItem struct {
	ctx flow.OrgContext
}

func (i contextItem) Title() string       { return i.ctx.Title }
func (i contextItem) Description() string { return i.ctx.ID }
func (i contextItem) FilterValue() string { return i.ctx.Title }

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	flows   Flow
	logbook *logbook.Logbook
	logger  *zap.Logger

	// ctx is cancelled when the UI closes so late responses persist nothing.
	ctx    context.Context
	cancel context.CancelFunc

	screen flow.Screen
	gen    int
	busy   bool

	statusMsg string
	notice    string
	retry     func() tea.Cmd

	staticCursor bool

	login       loginView
	contexts    []flow.OrgContext
	contextMenu list.Model
	orgTitle    string
	spinner     spinner.Model
	loadFailed  bool
	refs        flow.ReferenceData
	form        formView

	created    string
	hasCreated bool

	width  int
	height int
}

// NewApp creates the UI on top of flows. The run starts on Login until the
// saved session has been resolved.
func NewApp(ctx context.Context, flows Flow, opts ...AppOption) (*App, error) {
	if flows == nil {
		return nil, errors.New("tui: flow is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	appCtx, cancel := context.WithCancel(ctx)
	app := &App{
		flows:  flows,
		logger: zap.NewNop(),
		ctx:    appCtx,
		cancel: cancel,
		screen: flow.ScreenLogin,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}

	menu := list.New(nil, list.NewDefaultDelegate(), 60, 14)
	menu.Title = "Choose a company"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	menu.KeyMap.Quit.SetEnabled(false)
	menu.KeyMap.ForceQuit.SetEnabled(false)

	app.contextMenu = menu
	app.spinner = spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))),
	)
	app.login = newLoginView(app.staticCursor)
	app.form = newFormView(app.staticCursor)
	return app, nil
}

// Created reports the title of the activity saved in this run, if any.
func (a *App) Created() (string, bool) {
	return a.created, a.hasCreated
}

// Screen returns the current screen.
func (a *App) Screen() flow.Screen {
	return a.screen
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.login.focusField(loginUsername), a.startResolve())
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.contextMenu.SetSize(max(20, msg.Width-6), max(6, msg.Height-16))
		a.form.setWidth(msg.Width - 10)
		return a, nil

	case resolvedMsg:
		return a, a.handleResolved(msg)

	case loginFinishedMsg:
		return a, a.handleLoginFinished(msg)

	case contextSelectedMsg:
		return a, a.handleContextSelected(msg)

	case referenceLoadedMsg:
		return a, a.handleReferenceLoaded(msg)

	case submitFinishedMsg:
		return a, a.handleSubmitFinished(msg)

	case loggedOutMsg:
		return a, a.handleLoggedOut(msg)

	case spinner.TickMsg:
		if a.screen != flow.ScreenLoadingReferenceData || !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a, a.handleKey(msg)
	}

	// Cursor blinks and similar component messages.
	switch a.screen {
	case flow.ScreenLogin:
		return a, a.login.update(msg)
	case flow.ScreenSubmissionForm:
		return a, a.form.updateInputs(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "ctrl+c", "esc":
		return a.quit()
	}
	if a.screen == flow.ScreenClosed {
		return nil
	}
	if a.notice != "" {
		// The key that dismisses the notice is not passed on.
		a.notice = ""
		if key == "r" && a.retry != nil {
			return a.runRetry()
		}
		return nil
	}
	if key == "ctrl+l" && a.signedIn() {
		return a.logout()
	}
	if a.busy {
		return nil
	}

	switch a.screen {
	case flow.ScreenLogin:
		return a.handleLoginKey(msg)
	case flow.ScreenContextSelection:
		return a.handleContextKey(msg)
	case flow.ScreenLoadingReferenceData:
		if key == "r" && a.retry != nil {
			return a.runRetry()
		}
	case flow.ScreenSubmissionForm:
		return a.handleFormKey(msg)
	}
	return nil
}

func (a *App) handleLoginKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		if a.login.focus == loginUsername {
			return a.login.focusField(loginPassword)
		}
		return a.submitLogin()
	case "tab", "shift+tab", "up", "down":
		return a.login.focusField(a.login.focus.other())
	}
	return a.login.update(msg)
}

func (a *App) handleContextKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "enter" {
		item, ok := a.contextMenu.SelectedItem().(contextItem)
		if !ok {
			return nil
		}
		return a.selectContext(item.ctx)
	}
	var cmd tea.Cmd
	a.contextMenu, cmd = a.contextMenu.Update(msg)
	return cmd
}

func (a *App) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+s":
		return a.submitActivity()
	case "enter":
		if a.form.focus != fieldNote {
			return a.submitActivity()
		}
	case "tab":
		return a.form.focusField(a.form.focus.next())
	case "shift+tab":
		return a.form.focusField(a.form.focus.prev())
	}
	return a.form.update(msg)
}

// apply moves the run by ev. Every screen change goes through here.
func (a *App) apply(ev flow.Event) tea.Cmd {
	next := flow.Transition(a.screen, ev)
	if next == a.screen {
		return nil
	}
	a.logger.Debug("screen change",
		zap.Stringer("from", a.screen),
		zap.Stringer("to", next),
		zap.Stringer("event", ev),
	)
	return a.enter(next)
}

func (a *App) enter(screen flow.Screen) tea.Cmd {
	a.screen = screen
	a.gen++
	a.busy = false
	a.loadFailed = false
	a.retry = nil

	switch screen {
	case flow.ScreenLogin:
		a.login.reset()
		a.refs = flow.ReferenceData{}
		a.orgTitle = ""
		return a.login.focusField(loginUsername)
	case flow.ScreenContextSelection:
		return a.showContexts()
	case flow.ScreenLoadingReferenceData:
		return a.startLoad()
	case flow.ScreenSubmissionForm:
		a.statusMsg = ""
		a.form.load(a.refs)
		return a.form.focusField(fieldTitle)
	case flow.ScreenClosed:
		a.cancel()
		return tea.Quit
	}
	return nil
}

// fail reports err and, if it ended the session, moves to Login.
func (a *App) fail(err error, otherwise flow.Event) tea.Cmd {
	if flow.KindOf(err) == flow.KindCanceled {
		return nil
	}
	a.notice = flow.UserMessage(err)
	a.statusMsg = ""
	a.logger.Warn("operation failed",
		zap.Stringer("screen", a.screen),
		zap.Stringer("kind", flow.KindOf(err)),
		zap.Error(err),
	)
	return a.apply(flow.EventForError(err, otherwise))
}

// stale reports whether a result was started for a screen that is gone.
func (a *App) stale(gen int) bool {
	return gen != a.gen || a.screen == flow.ScreenClosed
}

func (a *App) signedIn() bool {
	switch a.screen {
	case flow.ScreenContextSelection, flow.ScreenLoadingReferenceData, flow.ScreenSubmissionForm:
		return true
	}
	return false
}

func (a *App) runRetry() tea.Cmd {
	retry := a.retry
	a.retry = nil
	return retry()
}

func (a *App) quit() tea.Cmd {
	if a.screen == flow.ScreenClosed {
		return tea.Quit
	}
	return a.apply(flow.EventClosed)
}

func (a *App) startResolve() tea.Cmd {
	a.busy = true
	a.statusMsg = "Checking saved session..."
	gen, ctx := a.gen, a.ctx
	return func() tea.Msg {
		res, err := a.flows.Resolve(ctx)
		return resolvedMsg{gen: gen, res: res, err: err}
	}
}

func (a *App) handleResolved(msg resolvedMsg) tea.Cmd {
	if a.stale(msg.gen) {
		return nil
	}
	a.busy = false
	a.statusMsg = ""
	if msg.err != nil {
		cmd := a.fail(msg.err, flow.EventLoginFailed)
		if a.notice != "" {
			a.notice += "  (r: retry)"
			a.retry = a.startResolve
		}
		return cmd
	}
	a.contexts = msg.res.Contexts
	if msg.res.Screen == a.screen {
		return nil
	}
	// The resolver picks the first screen; it is not an event.
	a.logger.Debug("session resolved", zap.Stringer("screen", msg.res.Screen))
	return a.enter(msg.res.Screen)
}

func (a *App) submitLogin() tea.Cmd {
	username, password := a.login.values()
	a.busy = true
	a.statusMsg = "Signing in..."
	gen, ctx := a.gen, a.ctx
	return func() tea.Msg {
		res, err := a.flows.Authenticate(ctx, username, password)
		return loginFinishedMsg{gen: gen, res: res, err: err}
	}
}

func (a *App) handleLoginFinished(msg loginFinishedMsg) tea.Cmd {
	if a.stale(msg.gen) {
		return nil
	}
	a.busy = false
	a.statusMsg = ""
	if msg.err != nil {
		return a.fail(msg.err, flow.EventLoginFailed)
	}
	a.contexts = msg.res.Contexts
	return a.apply(flow.EventAuthenticated)
}

func (a *App) showContexts() tea.Cmd {
	visible := flow.VisibleContexts(a.contexts)
	items := make([]list.Item, len(visible))
	for i := range visible {
		items[i] = contextItem{ctx: visible[i]}
	}
	cmd := a.contextMenu.SetItems(items)
	a.contextMenu.Select(0)
	if len(items) == 0 {
		a.statusMsg = "This account has no companies to choose from"
	} else {
		a.statusMsg = ""
	}
	return cmd
}

func (a *App) selectContext(choice flow.OrgContext) tea.Cmd {
	a.busy = true
	a.statusMsg = fmt.Sprintf("Opening %s...", choice.Title)
	gen, ctx := a.gen, a.ctx
	return func() tea.Msg {
		err := a.flows.SelectContext(ctx, choice.ID)
		return contextSelectedMsg{gen: gen, title: choice.Title, err: err}
	}
}

func (a *App) handleContextSelected(msg contextSelectedMsg) tea.Cmd {
	if a.stale(msg.gen) {
		return nil
	}
	a.busy = false
	if msg.err != nil {
		return a.fail(msg.err, flow.EventContextFailed)
	}
	a.orgTitle = msg.title
	a.contexts = nil
	return a.apply(flow.EventContextSelected)
}

func (a *App) startLoad() tea.Cmd {
	a.busy = true
	a.loadFailed = false
	a.statusMsg = "Loading users and activity types..."
	gen, ctx := a.gen, a.ctx
	load := func() tea.Msg {
		refs, err := a.flows.LoadReferenceData(ctx)
		return referenceLoadedMsg{gen: gen, refs: refs, err: err}
	}
	return tea.Batch(a.spinner.Tick, load)
}

func (a *App) handleReferenceLoaded(msg referenceLoadedMsg) tea.Cmd {
	if a.stale(msg.gen) {
		return nil
	}
	a.busy = false
	if msg.err != nil {
		cmd := a.fail(msg.err, flow.EventReferenceFailed)
		if a.screen == flow.ScreenLoadingReferenceData {
			a.loadFailed = true
			a.retry = a.startLoad
		}
		return cmd
	}
	a.refs = msg.refs
	return a.apply(flow.EventReferenceLoaded)
}

func (a *App) submitActivity() tea.Cmd {
	form := a.form.values()
	refs := a.refs
	a.busy = true
	a.statusMsg = "Saving activity..."
	gen, ctx := a.gen, a.ctx
	return func() tea.Msg {
		err := a.flows.Submit(ctx, form, refs)
		return submitFinishedMsg{gen: gen, title: form.Title, err: err}
	}
}

func (a *App) handleSubmitFinished(msg submitFinishedMsg) tea.Cmd {
	if a.stale(msg.gen) {
		return nil
	}
	a.busy = false
	if msg.err != nil {
		return a.fail(msg.err, flow.EventSubmitFailed)
	}
	a.created = msg.title
	a.hasCreated = true
	a.statusMsg = "Activity created"
	return a.apply(flow.EventSubmitted)
}

func (a *App) logout() tea.Cmd {
	ctx := a.ctx
	a.statusMsg = "Signing out..."
	return func() tea.Msg {
		return loggedOutMsg{err: a.flows.Logout(ctx)}
	}
}

func (a *App) handleLoggedOut(msg loggedOutMsg) tea.Cmd {
	if a.screen == flow.ScreenClosed {
		return nil
	}
	if msg.err != nil {
		a.statusMsg = ""
		a.notice = flow.UserMessage(msg.err)
		return nil
	}
	a.contexts = nil
	cmd := a.apply(flow.EventLoggedOut)
	a.statusMsg = "Signed out"
	return cmd
}

// View renders the current state to a string.
func (a *App) View() string {
	if a.screen == flow.ScreenClosed {
		if !a.hasCreated {
			return ""
		}
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4CAF50")).
			Render(fmt.Sprintf("✓ Activity created: %s", a.created)) + "\n"
	}
	width := a.width
	if width <= 0 {
		width = 80
	}

	var content string
	switch a.screen {
	case flow.ScreenLogin:
		content = a.login.view()
	case flow.ScreenContextSelection:
		content = a.renderContexts()
	case flow.ScreenLoadingReferenceData:
		content = a.renderLoading()
	case flow.ScreenSubmissionForm:
		content = a.form.view(a.orgTitle)
	}
	return a.renderFrame(content, width)
}

func (a *App) renderFrame(content string, width int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ KARSAZ · Didar activity logger")
	mainBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, width-4)).
		Render(content)
	sections := []string{header, mainBox}
	if a.notice != "" {
		sections = append(sections, a.renderNotice(width))
	}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(strings.TrimSpace(a.statusMsg + "\n" + a.hints()))
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderNotice(width int) string {
	return lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(lipgloss.Color("#FF4D4D")).
		Foreground(lipgloss.Color("#FF4D4D")).
		Bold(true).
		Padding(0, 1).
		Width(max(20, width-4)).
		Render(a.notice + "\n(press any key)")
}

func (a *App) renderContexts() string {
	if len(a.contextMenu.Items()) == 0 {
		return "No companies available."
	}
	return a.contextMenu.View()
}

func (a *App) renderLoading() string {
	if a.loadFailed {
		return "Could not load users and activity types."
	}
	return fmt.Sprintf("%s Loading users and activity types...", a.spinner.View())
}

func (a *App) hints() string {
	switch a.screen {
	case flow.ScreenLogin:
		return "Enter → next / sign in    Tab → switch field    Esc → quit"
	case flow.ScreenContextSelection:
		return "↑/↓ → choose    Enter → select    Ctrl+L → sign out    Esc → quit"
	case flow.ScreenLoadingReferenceData:
		if a.loadFailed {
			return "r → retry    Ctrl+L → sign out    Esc → quit"
		}
		return "Ctrl+L → sign out    Esc → quit"
	case flow.ScreenSubmissionForm:
		return "Tab → next field    ←/→ → change choice    Ctrl+S → save    Ctrl+L → sign out    Esc → quit"
	}
	return ""
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}
