package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillcheck-dev/skillcheck/internal/tui/styles"
)

// field is one labelled text input of a form.
type field struct {
	label string
	input textinput.Model
}

// form is a vertical list of inputs with tab/shift+tab focus cycling.
type form struct {
	fields []field
	focus  int
	keys   formKeys
}

type formKeys struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
}

func newFormKeys() formKeys {
	return formKeys{
		Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	}
}

func newInput(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.CharLimit = 256
	ti.Width = 40
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

func newForm(fields ...field) form {
	f := form{fields: fields, keys: newFormKeys()}
	if len(f.fields) > 0 {
		f.fields[0].input.Focus()
	}
	return f
}

func (f *form) value(i int) string {
	return strings.TrimSpace(f.fields[i].input.Value())
}

// raw returns the value untrimmed, for passwords.
func (f *form) raw(i int) string {
	return f.fields[i].input.Value()
}

func (f *form) setFocus(i int) tea.Cmd {
	n := len(f.fields)
	f.fields[f.focus].input.Blur()
	f.focus = ((i % n) + n) % n
	return f.fields[f.focus].input.Focus()
}

// update moves focus or forwards msg to the focused input. submit reports
// that enter was pressed.
func (f *form) update(msg tea.Msg) (cmd tea.Cmd, submit bool) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, f.keys.Submit):
			return nil, true
		case key.Matches(k, f.keys.Next):
			return f.setFocus(f.focus + 1), false
		case key.Matches(k, f.keys.Prev):
			return f.setFocus(f.focus - 1), false
		}
	}
	var c tea.Cmd
	f.fields[f.focus].input, c = f.fields[f.focus].input.Update(msg)
	return c, false
}

func (f *form) view(s *styles.Styles) string {
	var b strings.Builder
	for i, fl := range f.fields {
		label := s.Label
		if i == f.focus {
			label = s.LabelFocused
		}
		b.WriteString(label.Render(fl.label))
		b.WriteString("\n")
		b.WriteString(fl.input.View())
		b.WriteString("\n\n")
	}
	return b.String()
}

func (f *form) bindings() []key.Binding {
	return []key.Binding{f.keys.Next, f.keys.Submit}
}
