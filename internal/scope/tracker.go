// Package scope implements the Scope Tracker (§4.4): a stack of name
// components with a language-dependent separator, pushed on entry and
// popped on exit of scope-defining nodes during the extractor's tree
// walk. Grounded on the teacher's scope-manager pattern in
// internal/symbollinker (ScopeManager pushed/popped around
// module/class/namespace/impl nodes), generalized to the language
// capability table in internal/langcap.
package scope

import "strings"

// Tracker is the single shared mutable state owned by one extraction
// walk (§4.4, §9 "Scope tracking during tree walks").
type Tracker struct {
	separator  string
	components []string
}

// New creates a Tracker using separator to join FQN components.
func New(separator string) *Tracker {
	return &Tracker{separator: separator}
}

// Push enters a new scope named name.
func (t *Tracker) Push(name string) {
	t.components = append(t.components, name)
}

// Pop exits the innermost scope. No-op if the stack is already empty.
func (t *Tracker) Pop() {
	if len(t.components) == 0 {
		return
	}
	t.components = t.components[:len(t.components)-1]
}

// Depth reports the current scope nesting depth.
func (t *Tracker) Depth() int { return len(t.components) }

// FQNFor joins the current scope stack with name using the tracker's
// separator. An empty name yields the parent FQN alone, used for
// anonymous scopes (§4.4).
func (t *Tracker) FQNFor(name string) string {
	if name == "" {
		return strings.Join(t.components, t.separator)
	}
	if len(t.components) == 0 {
		return name
	}
	return strings.Join(t.components, t.separator) + t.separator + name
}

// ParentFQN returns the FQN of the enclosing scope without entering it.
func (t *Tracker) ParentFQN() string {
	return strings.Join(t.components, t.separator)
}
