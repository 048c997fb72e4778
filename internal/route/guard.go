package route

import (
	"sync"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// Sessioner is the view of the session manager the guard needs.
type Sessioner interface {
	Current() (*model.User, bool)
	Loading() bool
}

// Decision is the guard's verdict on a navigation.
type Decision struct {
	// Allow renders the requested view unchanged.
	Allow bool
	// Wait means the session is still loading; nothing protected may render.
	Wait bool
	// Redirect is the path to show instead.
	Redirect string
	// Replace means the redirect replaces the history entry, so going back
	// does not return to the refused view.
	Replace bool
}

// Guard gates protected routes on the presence of a current user. It never
// checks roles and never calls the backend.
type Guard struct {
	session Sessioner
}

// NewGuard creates a Guard over session.
func NewGuard(session Sessioner) *Guard {
	return &Guard{session: session}
}

// Check decides whether path may render.
func (g *Guard) Check(path string) Decision {
	r, _, _ := Match(path)
	if r.Access == Public {
		return Decision{Allow: true}
	}
	if g.session.Loading() {
		return Decision{Wait: true}
	}
	if _, ok := g.session.Current(); !ok {
		return Decision{Redirect: PathLogin, Replace: true}
	}
	return Decision{Allow: true}
}

// Navigator is the in-process history stack. Every navigation that goes
// through Navigate or Back is checked by the guard.
type Navigator struct {
	guard *Guard

	mu      sync.Mutex
	history []string
	pending string
}

// NewNavigator creates a Navigator whose history starts at start. The start
// path is not guarded until Resume or Navigate is called.
func NewNavigator(guard *Guard, start string) *Navigator {
	if start == "" {
		start = PathHome
	}
	return &Navigator{guard: guard, history: []string{start}}
}

// Current returns the path on top of the history.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history[len(n.history)-1]
}

// History returns a copy of the history, oldest first.
func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}

// Push appends path without consulting the guard.
func (n *Navigator) Push(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history, path)
}

// Replace swaps the current entry for path without consulting the guard.
func (n *Navigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history[len(n.history)-1] = path
}

// Navigate pushes path if the guard allows it. A redirect replaces the
// refused entry. While the session is loading the path is remembered and
// nothing changes until Resume.
func (n *Navigator) Navigate(path string) Decision {
	d := n.guard.Check(path)

	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case d.Wait:
		n.pending = path
	case d.Allow:
		n.history = append(n.history, path)
	default:
		n.history = append(n.history, path)
		n.apply(d)
	}
	return d
}

// Resume re-runs the guard for the navigation deferred while loading, or
// for the current entry when nothing is pending.
func (n *Navigator) Resume() Decision {
	n.mu.Lock()
	pending := n.pending
	n.pending = ""
	n.mu.Unlock()

	if pending != "" {
		if pending == n.Current() {
			return n.recheck()
		}
		return n.Navigate(pending)
	}
	return n.recheck()
}

// Back pops the current entry and re-checks the one below it, so a logout
// followed by back does not reveal a protected view.
func (n *Navigator) Back() (string, bool) {
	n.mu.Lock()
	if len(n.history) < 2 {
		n.mu.Unlock()
		return n.Current(), false
	}
	n.history = n.history[:len(n.history)-1]
	n.mu.Unlock()

	n.recheck()
	return n.Current(), true
}

// ForceLogin discards the whole history and shows login.
func (n *Navigator) ForceLogin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = []string{PathLogin}
	n.pending = ""
}

// Reset discards the history and starts over at path, guarded.
func (n *Navigator) Reset(path string) Decision {
	n.mu.Lock()
	n.history = []string{PathHome}
	n.pending = ""
	n.mu.Unlock()

	d := n.Navigate(path)
	if !d.Wait {
		n.mu.Lock()
		if len(n.history) > 1 {
			n.history = n.history[1:]
		}
		n.mu.Unlock()
	}
	return d
}

func (n *Navigator) recheck() Decision {
	d := n.guard.Check(n.Current())
	if d.Redirect != "" {
		n.mu.Lock()
		n.apply(d)
		n.mu.Unlock()
	}
	return d
}

// apply must be called with mu held.
func (n *Navigator) apply(d Decision) {
	if d.Replace {
		n.history[len(n.history)-1] = d.Redirect
		return
	}
	n.history = append(n.history, d.Redirect)
}
