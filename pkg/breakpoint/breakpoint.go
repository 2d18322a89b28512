// Package breakpoint provides the breakpoint registry of the debugger core.
package breakpoint

import (
	"sync"
	"time"
)

// Target is the requested breakpoint location. Either ScriptID or ScriptName
// identifies the script; a name target stays provisional until a script with
// that name compiles, and re-resolves on every later compile of the name.
type Target struct {
	ScriptID   int64
	ScriptName string
	Line       int
	Column     int
}

// ByName reports whether the target resolves by script name.
func (t Target) ByName() bool { return t.ScriptID == 0 && t.ScriptName != "" }

// TargetByID targets a loaded script by compile identity.
func TargetByID(scriptID int64, line, column int) Target {
	return Target{ScriptID: scriptID, Line: line, Column: column}
}

// TargetByName targets a script by origin name; the breakpoint re-resolves
// on every compilation of that name.
func TargetByName(name string, line, column int) Target {
	return Target{ScriptName: name, Line: line, Column: column}
}

// Breakpoint is a registered breakpoint. It is owned exclusively by the
// Registry; callers mutate it only through Registry methods. Accessors may
// run on the execution thread while a control thread mutates the breakpoint
// through the Registry, so the mutable fields sit behind their own lock.
type Breakpoint struct {
	id        int
	target    Target
	createdAt time.Time

	mu        sync.RWMutex
	condition string
	enabled   bool
	ignore    int // remaining hits to consume silently
	hits      int
}

// ID returns the breakpoint id. Ids are monotonically increasing and never
// reused within a registry's lifetime.
func (b *Breakpoint) ID() int { return b.id }

// Target returns the requested location.
func (b *Breakpoint) Target() Target { return b.target }

// Condition returns the condition expression, empty when unconditional.
func (b *Breakpoint) Condition() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.condition
}

// Enabled reports whether the breakpoint is live.
func (b *Breakpoint) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// IgnoreCount returns the number of genuine hits still consumed silently.
func (b *Breakpoint) IgnoreCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ignore
}

// HitCount returns how many genuine hits the breakpoint has seen, including
// ones consumed by the ignore count.
func (b *Breakpoint) HitCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hits
}

// CreatedAt returns the registration time.
func (b *Breakpoint) CreatedAt() time.Time { return b.createdAt }
