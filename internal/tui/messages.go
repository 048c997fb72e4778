package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// sessionReadyMsg is sent once the session manager finished restoring.
type sessionReadyMsg struct{}

// authChangedMsg reports a change of the current user (nil on logout or
// invalidation).
type authChangedMsg struct {
	user *model.User
}

// navigateMsg asks the root model to push path through the guard.
type navigateMsg struct {
	path string
}

// replaceMsg swaps the current history entry for path.
type replaceMsg struct {
	path string
}

// resetMsg starts the history over at path, so back cannot return to the
// view that sent it.
type resetMsg struct {
	path   string
	notice string
}

// backMsg pops the history.
type backMsg struct{}

// errMsg shows err in the banner.
type errMsg struct {
	err error
}

// noticeMsg shows a transient success message.
type noticeMsg struct {
	text string
}

// configChangedMsg carries the re-read tui.theme after the config file
// changed on disk.
type configChangedMsg struct {
	theme string
}

func navigate(path string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{path: path} }
}

func replace(path string) tea.Cmd {
	return func() tea.Msg { return replaceMsg{path: path} }
}

func reset(path, notice string) tea.Cmd {
	return func() tea.Msg { return resetMsg{path: path, notice: notice} }
}

func back() tea.Msg { return backMsg{} }

func fail(err error) tea.Cmd {
	return func() tea.Msg { return errMsg{err: err} }
}

func notify(text string) tea.Cmd {
	return func() tea.Msg { return noticeMsg{text: text} }
}
