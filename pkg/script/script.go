// Package script models compiled script units and their breakable locations.
package script

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-sourcemap/sourcemap"
)

// Location identifies a breakable position inside a compiled script.
// Column 0 means "any column on that line".
type Location struct {
	ScriptID int64
	Line     int
	Column   int
}

// String returns a printable form used in logs and protocol bodies.
func (l Location) String() string {
	return fmt.Sprintf("script-%d:%d:%d", l.ScriptID, l.Line, l.Column)
}

// FunctionRange describes the source span of one function literal inside a
// script. Nested function literals have nested ranges.
type FunctionRange struct {
	Name      string
	StartLine int
	EndLine   int
}

// Contains reports whether the given line falls inside the range.
func (f FunctionRange) Contains(line int) bool {
	return line >= f.StartLine && line <= f.EndLine
}

// Record is one compiled script unit. A Record is created on compilation and
// is immutable once sealed; breakpoints attach to it only through the
// breakpoint registry, which holds the location index by id.
type Record struct {
	id         int64
	name       string
	source     string
	lineOffset int

	mu        sync.RWMutex
	sealed    bool
	breakable map[int][]int // line -> sorted columns
	lines     []int         // sorted breakable lines
	functions []FunctionRange
	smap      *sourcemap.Consumer
}

// ID returns the compile identity of the script. Identity is per
// compilation: recompiling identical source yields a new id.
func (r *Record) ID() int64 { return r.id }

// Name returns the script origin name.
func (r *Record) Name() string { return r.name }

// Source returns the script source text.
func (r *Record) Source() string { return r.source }

// LineOffset returns the resource line of the script's first source line.
func (r *Record) LineOffset() int { return r.lineOffset }

// MarkBreakable records a breakable location. Only valid before Seal.
func (r *Record) MarkBreakable(line, column int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	cols := r.breakable[line]
	for _, c := range cols {
		if c == column {
			return
		}
	}
	r.breakable[line] = append(cols, column)
	sort.Ints(r.breakable[line])
}

// AddFunction records a function literal range. Only valid before Seal.
func (r *Record) AddFunction(fn FunctionRange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	r.functions = append(r.functions, fn)
}

// Seal freezes the record. The host calls this when compilation finishes,
// before the record is announced to the debugger.
func (r *Record) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	r.sealed = true
	r.lines = make([]int, 0, len(r.breakable))
	for line := range r.breakable {
		r.lines = append(r.lines, line)
	}
	sort.Ints(r.lines)
}

// HasBreakable reports whether the line carries at least one breakable
// location.
func (r *Record) HasBreakable(line int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakable[line]) > 0
}

// BreakableColumns returns the breakable columns on a line, sorted.
func (r *Record) BreakableColumns(line int) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cols := r.breakable[line]
	out := make([]int, len(cols))
	copy(out, cols)
	return out
}

// NextBreakableLine returns the first line >= the requested line carrying a
// breakable location. Breakpoints requested on a non-breakable line slide
// forward to it.
func (r *Record) NextBreakableLine(line int) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := sort.SearchInts(r.lines, line)
	if i >= len(r.lines) {
		return 0, false
	}
	return r.lines[i], true
}

// Function returns the range of the named function literal.
func (r *Record) Function(name string) (FunctionRange, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return FunctionRange{}, false
}

// InnermostFunction returns the innermost function literal whose range
// contains the line. When several functions are compiled from one line the
// narrowest enclosing range wins.
func (r *Record) InnermostFunction(line int) (FunctionRange, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best FunctionRange
	found := false
	for _, fn := range r.functions {
		if !fn.Contains(line) {
			continue
		}
		if !found || fn.EndLine-fn.StartLine < best.EndLine-best.StartLine {
			best = fn
			found = true
		}
	}
	return best, found
}

// AttachSourceMap attaches a source map to the record. Reported positions in
// break events translate through it when present.
func (r *Record) AttachSourceMap(url string, data []byte) error {
	consumer, err := sourcemap.Parse(url, data)
	if err != nil {
		return fmt.Errorf("script %q: parsing source map: %w", r.name, err)
	}
	r.mu.Lock()
	r.smap = consumer
	r.mu.Unlock()
	return nil
}

// OriginalPosition maps a generated position back to the authored source via
// the attached source map. ok is false when no map is attached or the map has
// no entry for the position.
func (r *Record) OriginalPosition(line, column int) (source string, origLine, origColumn int, ok bool) {
	r.mu.RLock()
	smap := r.smap
	r.mu.RUnlock()
	if smap == nil {
		return "", 0, 0, false
	}
	source, _, origLine, origColumn, ok = smap.Source(line, column)
	return source, origLine, origColumn, ok
}

// Table tracks every live compiled script, keyed by compile identity and by
// origin name. A fresh compilation under an existing name replaces the name
// binding; the old record keeps its identity until removed.
type Table struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Record
	byName map[string]*Record
}

// NewTable creates an empty script table.
func NewTable() *Table {
	return &Table{
		nextID: 1,
		byID:   make(map[int64]*Record),
		byName: make(map[string]*Record),
	}
}

// Compile allocates a new Record for a compilation unit. The host marks
// breakable locations and function ranges on it, then seals it.
func (t *Table) Compile(name, source string, lineOffset int) *Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := &Record{
		id:         t.nextID,
		name:       name,
		source:     source,
		lineOffset: lineOffset,
		breakable:  make(map[int][]int),
	}
	t.nextID++
	t.byID[rec.id] = rec
	if name != "" {
		t.byName[name] = rec
	}
	return rec
}

// Lookup returns the record with the given compile identity.
func (t *Table) Lookup(id int64) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.byID[id]
	return rec, ok
}

// ByName returns the latest compilation registered under a name.
func (t *Table) ByName(name string) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.byName[name]
	return rec, ok
}

// Remove drops a record, typically when the owning compiled unit is
// collected by the host. The name binding is only dropped if it still points
// at this record.
func (t *Table) Remove(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)
	if cur, ok := t.byName[rec.name]; ok && cur.id == id {
		delete(t.byName, rec.name)
	}
}

// All returns every loaded script, ordered by compile identity.
func (t *Table) All() []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Record, 0, len(t.byID))
	for _, rec := range t.byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
