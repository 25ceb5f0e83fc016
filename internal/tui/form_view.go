package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/karsaz/internal/crm"
	"github.com/kingrea/karsaz/internal/flow"
)

type formField int

const (
	fieldTitle formField = iota
	fieldType
	fieldOwner
	fieldNote
	fieldCount
)

func (f formField) next() formField { return (f + 1) % fieldCount }
func (f formField) prev() formField { return (f + fieldCount - 1) % fieldCount }

type option struct {
	id    string
	label string
}

// picker cycles through a fixed set of options.
type picker struct {
	options []option
	index   int
}

func (p *picker) next() {
	if len(p.options) > 0 {
		p.index = (p.index + 1) % len(p.options)
	}
}

func (p *picker) prev() {
	if len(p.options) > 0 {
		p.index = (p.index + len(p.options) - 1) % len(p.options)
	}
}

func (p *picker) selectID(id string) {
	for i, opt := range p.options {
		if opt.id == id {
			p.index = i
			return
		}
	}
}

func (p picker) selectedID() string {
	if len(p.options) == 0 {
		return ""
	}
	return p.options[p.index].id
}

func (p picker) view(focused bool) string {
	if len(p.options) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("(none available)")
	}
	label := p.options[p.index].label
	if !focused {
		return label
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("‹ %s ›  %d/%d", label, p.index+1, len(p.options)))
}

// formView is the activity submission form.
type formView struct {
	title  textinput.Model
	note   textarea.Model
	types  picker
	owners picker
	focus  formField
}

func newFormView(staticCursor bool) formView {
	title := newInput("what was done", staticCursor)
	title.Width = 50
	note := textarea.New()
	note.Placeholder = "optional note"
	note.ShowLineNumbers = false
	note.SetWidth(60)
	note.SetHeight(4)
	if staticCursor {
		note.Cursor.SetMode(cursor.CursorStatic)
	}
	return formView{title: title, note: note}
}

func (f *formView) setWidth(width int) {
	if width < 30 {
		return
	}
	f.title.Width = width - 12
	f.note.SetWidth(width - 12)
}

// load rebuilds the form from freshly loaded reference data.
func (f *formView) load(refs flow.ReferenceData) {
	f.title.Reset()
	f.note.Reset()

	f.types = picker{options: make([]option, 0, len(refs.ActivityTypes))}
	for _, t := range refs.ActivityTypes {
		f.types.options = append(f.types.options, option{
			id:    t.ID.String(),
			label: fmt.Sprintf("%s (%d min)", t.Title, t.Duration),
		})
	}

	f.owners = picker{options: make([]option, 0, len(refs.Users))}
	for _, u := range refs.Users {
		f.owners.options = append(f.owners.options, option{id: u.UserID.String(), label: userLabel(u)})
	}
	f.owners.selectID(refs.DefaultOwner())
}

func userLabel(u crm.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.UserID.String()
	}
	return name
}

func (f *formView) focusField(field formField) tea.Cmd {
	f.focus = field
	f.title.Blur()
	f.note.Blur()
	switch field {
	case fieldTitle:
		return f.title.Focus()
	case fieldNote:
		return f.note.Focus()
	}
	return nil
}

func (f *formView) values() flow.Form {
	return flow.Form{
		Title:          strings.TrimSpace(f.title.Value()),
		ActivityTypeID: f.types.selectedID(),
		OwnerID:        f.owners.selectedID(),
		Note:           f.note.Value(),
	}
}

// update handles a key for the focused field.
func (f *formView) update(msg tea.KeyMsg) tea.Cmd {
	switch f.focus {
	case fieldType, fieldOwner:
		p := &f.types
		if f.focus == fieldOwner {
			p = &f.owners
		}
		switch msg.String() {
		case "right", "l", "down", "j", " ":
			p.next()
		case "left", "h", "up", "k":
			p.prev()
		}
		return nil
	}
	return f.updateInputs(msg)
}

func (f *formView) updateInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldNote:
		f.note, cmd = f.note.Update(msg)
	}
	return cmd
}

func (f formView) view(company string) string {
	heading := "New activity"
	if company != "" {
		heading = fmt.Sprintf("New activity · %s", company)
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(heading)
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		fieldLabel("Title", f.focus == fieldTitle)+f.title.View(),
		fieldLabel("Type", f.focus == fieldType)+f.types.view(f.focus == fieldType),
		fieldLabel("Owner", f.focus == fieldOwner)+f.owners.view(f.focus == fieldOwner),
		fieldLabel("Note", f.focus == fieldNote),
		f.note.View(),
	)
}
