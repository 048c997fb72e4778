package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// globalKeys are handled by the root model before the screen sees a key.
// The single-letter ones are skipped while a screen is capturing text.
type globalKeys struct {
	ForceQuit key.Binding
	Quit      key.Binding
	Back      key.Binding
	Theme     key.Binding
	Logout    key.Binding
	Help      key.Binding
}

func newGlobalKeys() globalKeys {
	return globalKeys{
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Theme:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		Logout:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "log out")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	}
}

// bindings returns the global keys that apply in the current state.
func (k globalKeys) bindings(loggedIn, capturing bool) []key.Binding {
	if capturing {
		return []key.Binding{k.Back, k.ForceQuit}
	}
	out := []key.Binding{k.Back, k.Theme}
	if loggedIn {
		out = append(out, k.Logout)
	}
	return append(out, k.Help, k.Quit)
}

// cursorKeys move a selection through a list.
type cursorKeys struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Refresh key.Binding
}

func newCursorKeys() cursorKeys {
	return cursorKeys{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

// move applies an up/down key to cursor within n rows and reports whether
// the key was a cursor key.
func (k cursorKeys) move(msg tea.KeyMsg, cursor *int, n int) bool {
	switch {
	case key.Matches(msg, k.Up):
		if *cursor > 0 {
			*cursor--
		}
		return true
	case key.Matches(msg, k.Down):
		if *cursor < n-1 {
			*cursor++
		}
		return true
	}
	return false
}

// keyHelp implements help.KeyMap over a flat list of bindings.
type keyHelp struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k keyHelp) ShortHelp() []key.Binding  { return k.short }
func (k keyHelp) FullHelp() [][]key.Binding { return k.full }
