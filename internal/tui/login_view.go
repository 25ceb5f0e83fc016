package tui

import (
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type loginField int

const (
	loginUsername loginField = iota
	loginPassword
)

func (f loginField) other() loginField {
	if f == loginUsername {
		return loginPassword
	}
	return loginUsername
}

// loginView is the username/password form.
type loginView struct {
	username textinput.Model
	password textinput.Model
	focus    loginField
}

func newLoginView(staticCursor bool) loginView {
	username := newInput("username or email", staticCursor)
	password := newInput("password", staticCursor)
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	return loginView{username: username, password: password}
}

func newInput(placeholder string, staticCursor bool) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 256
	in.Width = 40
	in.Prompt = "› "
	if staticCursor {
		in.Cursor.SetMode(cursor.CursorStatic)
	}
	return in
}

func (v *loginView) focusField(field loginField) tea.Cmd {
	v.focus = field
	if field == loginUsername {
		v.password.Blur()
		return v.username.Focus()
	}
	v.username.Blur()
	return v.password.Focus()
}

// reset clears the password; the username is kept for the next attempt.
func (v *loginView) reset() {
	v.password.Reset()
}

func (v *loginView) values() (string, string) {
	return v.username.Value(), v.password.Value()
}

func (v *loginView) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if v.focus == loginUsername {
		v.username, cmd = v.username.Update(msg)
	} else {
		v.password, cmd = v.password.Update(msg)
	}
	return cmd
}

func (v loginView) view() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("Sign in to Didar")
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		fieldLabel("Username", v.focus == loginUsername)+v.username.View(),
		fieldLabel("Password", v.focus == loginPassword)+v.password.View(),
	)
}

func fieldLabel(label string, focused bool) string {
	style := lipgloss.NewStyle().Width(10)
	if focused {
		style = style.Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	} else {
		style = style.Foreground(lipgloss.Color("#888888"))
	}
	return style.Render(label)
}
