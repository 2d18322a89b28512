package debug

// StepAction is the requested stepping policy. It persists across
// interceptions until changed or cleared.
type StepAction int

const (
	// StepNone resumes normally: no interception until the next
	// breakpoint, exception or break request.
	StepNone StepAction = iota
	// StepNext stops at the next breakable location in the current or a
	// shallower frame; deeper calls run through.
	StepNext
	// StepIn stops at the next breakable location at any depth. Native
	// functions run atomically: the host never reports locations inside
	// them.
	StepIn
	// StepOut stops only once control returns to a frame strictly
	// shallower than the one that requested the step.
	StepOut
)

// String returns the protocol name of the action.
func (a StepAction) String() string {
	switch a {
	case StepNext:
		return "next"
	case StepIn:
		return "in"
	case StepOut:
		return "out"
	default:
		return "none"
	}
}

// ParseStepAction maps a protocol step action name. Unknown names mean no
// stepping.
func ParseStepAction(s string) StepAction {
	switch s {
	case "next":
		return StepNext
	case "in":
		return StepIn
	case "out":
		return StepOut
	default:
		return StepNone
	}
}

// stepState is the single per-session stepping state: the armed action, the
// stack depth it was armed at, and how many times the action repeats before
// intercepting. A new top-level entry invalidates any armed step.
type stepState struct {
	action      StepAction
	targetDepth int
	count       int
	armedAt     int64 // break id at arm time, 0 when armed outside a break
}

func (s *stepState) arm(action StepAction, depth, count int, breakID int64) {
	if count < 1 {
		count = 1
	}
	s.action = action
	s.targetDepth = depth
	s.count = count
	s.armedAt = breakID
}

func (s *stepState) clear() {
	s.action = StepNone
	s.targetDepth = 0
	s.count = 0
	s.armedAt = 0
}

// shouldStop decides whether a location at the given frame depth intercepts
// under the armed action.
func (s *stepState) shouldStop(depth int) bool {
	switch s.action {
	case StepIn:
		return true
	case StepNext:
		return depth <= s.targetDepth
	case StepOut:
		return depth < s.targetDepth
	default:
		return false
	}
}
