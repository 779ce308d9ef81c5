package entity

import "time"

type TaskState string

const (
	TaskStateIdle      TaskState = "IDLE"
	TaskStateRunning   TaskState = "RUNNING"
	TaskStatePaused    TaskState = "PAUSED"
	TaskStateCompleted TaskState = "COMPLETED"
	TaskStateError     TaskState = "ERROR"
)

type ActionStatus string

const (
	ActionStatusPending ActionStatus = "PENDING"
	ActionStatusSuccess ActionStatus = "SUCCESS"
	ActionStatusFailed  ActionStatus = "FAILED"
	ActionStatusSkipped ActionStatus = "SKIPPED"
)

// FunctionCall is the action taken or attempted, as reported by the backend.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type AgentAction struct {
	ID           string       `json:"id"`
	Timestamp    time.Time    `json:"timestamp"`
	FunctionCall FunctionCall `json:"functionCall"`
	Status       ActionStatus `json:"status"`
	Reasoning    string       `json:"reasoning,omitempty"`
	Result       string       `json:"result,omitempty"`
	Error        string       `json:"error,omitempty"`
	Screenshot   string       `json:"screenshot,omitempty"`
	URL          string       `json:"url,omitempty"`
}

// TaskSnapshot is a read-only copy of a task context handed to external collaborators.
type TaskSnapshot struct {
	ID            string        `json:"id"`
	Goal          string        `json:"goal"`
	State         TaskState     `json:"state"`
	Turn          int           `json:"turn"`
	Actions       []AgentAction `json:"actions"`
	CurrentURL    string        `json:"currentUrl,omitempty"`
	StartTime     time.Time     `json:"startTime,omitempty"`
	EndTime       *time.Time    `json:"endTime,omitempty"`
	Error         string        `json:"error,omitempty"`
	FinalResponse string        `json:"finalResponse,omitempty"`
}

const (
	DefaultMaxTurns    = 30
	DefaultMaxRetries  = 3
	DefaultTaskTimeout = 5 * time.Minute
)

// TaskConfig is copied into every task context and never changed afterwards.
type TaskConfig struct {
	MaxTurns   int
	MaxRetries int
	Timeout    time.Duration
}

func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		MaxTurns:   DefaultMaxTurns,
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTaskTimeout,
	}
}

// WithDefaults fills zero fields from DefaultTaskConfig.
func (c TaskConfig) WithDefaults() TaskConfig {
	def := DefaultTaskConfig()
	if c.MaxTurns <= 0 {
		c.MaxTurns = def.MaxTurns
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
