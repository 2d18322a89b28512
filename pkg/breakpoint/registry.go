package breakpoint

import (
	"log"
	"sync"
	"time"

	"github.com/quarkscript/debug-go/pkg/script"
)

type binding struct {
	scriptID int64
	line     int
}

// Registry owns every breakpoint of a debugger session. Breakpoints are keyed
// by id; a location index maps resolved (script, line) pairs back to ids for
// the interceptor's hot path.
//
// The registry is safe for concurrent use: control threads may set and clear
// breakpoints while the execution thread resolves them.
type Registry struct {
	debug bool

	mu       sync.RWMutex
	nextID   int
	byID     map[int]*Breakpoint
	resolved map[int64]map[int]map[int]struct{} // scriptID -> line -> bp ids
	bound    map[int][]binding                  // bp id -> resolved entries
}

// NewRegistry creates an empty registry.
func NewRegistry(debug bool) *Registry {
	return &Registry{
		debug:    debug,
		nextID:   1,
		byID:     make(map[int]*Breakpoint),
		resolved: make(map[int64]map[int]map[int]struct{}),
		bound:    make(map[int][]binding),
	}
}

// Set registers a breakpoint and returns its id. When rec is the already
// compiled script matching the target, the breakpoint resolves immediately;
// otherwise it stays provisional until a matching script compiles.
func (r *Registry) Set(target Target, condition string, rec *script.Record) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp := &Breakpoint{
		id:        r.nextID,
		target:    target,
		condition: condition,
		enabled:   true,
		createdAt: time.Now(),
	}
	r.nextID++
	r.byID[bp.id] = bp

	if rec != nil {
		r.bindLocked(bp, rec)
	}

	if r.debug {
		log.Printf("[QuarkScript Debug] Breakpoint #%d set at %s:%d (script %d)",
			bp.id, target.ScriptName, target.Line, target.ScriptID)
	}
	return bp.id
}

// Clear removes a breakpoint. Clearing an unknown or already cleared id is a
// no-op.
func (r *Registry) Clear(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return
	}
	r.unbindLocked(id)
	delete(r.byID, id)

	if r.debug {
		log.Printf("[QuarkScript Debug] Breakpoint #%d cleared", id)
	}
}

// SetCondition replaces the condition expression. Takes effect on the next
// hit evaluation.
func (r *Registry) SetCondition(id int, expr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	bp, ok := r.byID[id]
	if !ok {
		return false
	}
	bp.mu.Lock()
	bp.condition = expr
	bp.mu.Unlock()
	return true
}

// SetIgnoreCount arms the breakpoint to consume the next n genuine hits
// without dispatching.
func (r *Registry) SetIgnoreCount(id, n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	bp, ok := r.byID[id]
	if !ok {
		return false
	}
	if n < 0 {
		n = 0
	}
	bp.mu.Lock()
	bp.ignore = n
	bp.mu.Unlock()
	return true
}

// SetEnabled enables or disables a breakpoint in place.
func (r *Registry) SetEnabled(id int, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	bp, ok := r.byID[id]
	if !ok {
		return false
	}
	bp.mu.Lock()
	bp.enabled = enabled
	bp.mu.Unlock()
	return true
}

// Get returns the breakpoint with the given id.
func (r *Registry) Get(id int) (*Breakpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bp, ok := r.byID[id]
	return bp, ok
}

// All returns every registered breakpoint.
func (r *Registry) All() []*Breakpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Breakpoint, 0, len(r.byID))
	for _, bp := range r.byID {
		out = append(out, bp)
	}
	return out
}

// ResolveForLocation returns the ids of breakpoints resolved at the given
// runtime location. A breakpoint registered without a column matches any
// breakable column on its line.
func (r *Registry) ResolveForLocation(loc script.Location) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lines, ok := r.resolved[loc.ScriptID]
	if !ok {
		return nil
	}
	ids, ok := lines[loc.Line]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(ids))
	for id := range ids {
		bp := r.byID[id]
		if bp == nil {
			continue
		}
		if c := bp.target.Column; c != 0 && loc.Column != 0 && c != loc.Column {
			continue
		}
		out = append(out, id)
	}
	return out
}

// ConsumeHit records a genuine (enabled, condition-true) hit. It returns
// false while the ignore count swallows hits; the hit count advances either
// way.
func (r *Registry) ConsumeHit(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	bp, ok := r.byID[id]
	if !ok {
		return false
	}
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.hits++
	if bp.ignore > 0 {
		bp.ignore--
		if r.debug {
			log.Printf("[QuarkScript Debug] Breakpoint #%d hit ignored (%d left)", id, bp.ignore)
		}
		return false
	}
	return true
}

// BindScript resolves breakpoints against a freshly compiled script. Name
// targets matching the script's origin rebind from any earlier compilation
// to this one; stale compilations stop matching. Called before the
// after-compile event fires.
func (r *Registry) BindScript(rec *script.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, bp := range r.byID {
		switch {
		case bp.target.ByName() && bp.target.ScriptName == rec.Name():
			r.unbindLocked(bp.id)
			r.bindLocked(bp, rec)
		case !bp.target.ByName() && bp.target.ScriptID == rec.ID() && len(r.bound[bp.id]) == 0:
			r.bindLocked(bp, rec)
		}
	}
}

// bindLocked resolves one breakpoint against a record. A request on a line
// with no breakable location slides forward to the next breakable line; when
// the script has none at or after the line, the breakpoint stays provisional.
func (r *Registry) bindLocked(bp *Breakpoint, rec *script.Record) {
	line, ok := rec.NextBreakableLine(bp.target.Line)
	if !ok {
		if r.debug {
			log.Printf("[QuarkScript Debug] Breakpoint #%d provisional: no breakable location at %s:%d",
				bp.id, rec.Name(), bp.target.Line)
		}
		return
	}
	lines, ok := r.resolved[rec.ID()]
	if !ok {
		lines = make(map[int]map[int]struct{})
		r.resolved[rec.ID()] = lines
	}
	ids, ok := lines[line]
	if !ok {
		ids = make(map[int]struct{})
		lines[line] = ids
	}
	ids[bp.id] = struct{}{}
	r.bound[bp.id] = append(r.bound[bp.id], binding{scriptID: rec.ID(), line: line})
	if r.debug {
		log.Printf("[QuarkScript Debug] Breakpoint #%d resolved to %s:%d (script %d)",
			bp.id, rec.Name(), line, rec.ID())
	}
}

func (r *Registry) unbindLocked(id int) {
	for _, b := range r.bound[id] {
		if lines, ok := r.resolved[b.scriptID]; ok {
			if ids, ok := lines[b.line]; ok {
				delete(ids, id)
				if len(ids) == 0 {
					delete(lines, b.line)
				}
			}
			if len(lines) == 0 {
				delete(r.resolved, b.scriptID)
			}
		}
	}
	delete(r.bound, id)
}
