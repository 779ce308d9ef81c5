package entity

// ActionResult is what every primitive returns. Primitives never return Go
// errors for page failures.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Succeeded(data any) ActionResult {
	return ActionResult{Success: true, Data: data}
}

func Failed(err error) ActionResult {
	return ActionResult{Success: false, Error: err.Error()}
}

const (
	MethodClick          = "click"
	MethodFill           = "fill"
	MethodType           = "type"
	MethodPress          = "press"
	MethodHover          = "hover"
	MethodScrollIntoView = "scrollIntoView"
)

// CandidateAction is a concrete, selector-bound action proposed by observe.
type CandidateAction struct {
	Selector    string   `json:"selector"`
	Description string   `json:"description"`
	Method      string   `json:"method"`
	Arguments   []string `json:"arguments,omitempty"`
}

// IsSimpleClick reports whether the candidate can go through the DOM click fast path.
func (c CandidateAction) IsSimpleClick() bool {
	return c.Method == MethodClick && c.Selector != ""
}

// ActRequest carries either a raw instruction or an observed candidate.
type ActRequest struct {
	Instruction string
	Candidate   *CandidateAction
}

type ActOutcome struct {
	Success     bool
	Message     string
	Description string
}

type ActResult struct {
	Success           bool              `json:"success"`
	Message           string            `json:"message"`
	ActionDescription string            `json:"actionDescription"`
	Actions           []CandidateAction `json:"actions"`
	Error             string            `json:"error,omitempty"`
}
