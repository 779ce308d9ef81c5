package entity

// BackendAction is one sub-action the reasoning backend reports after a run.
type BackendAction struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Selector    string         `json:"selector,omitempty"`
	Reasoning   string         `json:"reasoning,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Success     *bool          `json:"success,omitempty"`
	Skipped     bool           `json:"skipped,omitempty"`
}

type BackendResult struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Completed bool            `json:"completed"`
	Actions   []BackendAction `json:"actions"`
}
