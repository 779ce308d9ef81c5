// Package taskcontext holds the lifecycle state machine of a single task.
package taskcontext

import (
	"strings"
	"sync"
	"time"

	"browser-pilot/internal/domain/entity"

	"github.com/google/uuid"
)

// Listener receives one payload per state transition or action change.
// It runs synchronously after the change and must not call back into
// mutating methods of the same context.
type Listener func(entity.EventPayload)

type Option func(*TaskContext)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *TaskContext) { c.now = now }
}

// WithIDGenerator replaces the uuid-based id source for tasks and actions.
func WithIDGenerator(gen func() string) Option {
	return func(c *TaskContext) { c.newID = gen }
}

type TaskContext struct {
	cfg      entity.TaskConfig
	listener Listener
	now      func() time.Time
	newID    func() string

	// notifyMu serializes mutations together with their notifications so
	// listeners observe transitions in the order they happened.
	notifyMu sync.Mutex
	mu       sync.RWMutex

	id            string
	goal          string
	state         entity.TaskState
	actions       []entity.AgentAction
	currentURL    string
	startTime     time.Time
	endTime       *time.Time
	errText       string
	finalResponse string
	conversation  []entity.Message
}

func New(cfg entity.TaskConfig, listener Listener, opts ...Option) *TaskContext {
	c := &TaskContext{
		cfg:      cfg.WithDefaults(),
		listener: listener,
		now:      time.Now,
		newID:    uuid.NewString,
		state:    entity.TaskStateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TaskContext) Config() entity.TaskConfig { return c.cfg }

func (c *TaskContext) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *TaskContext) Goal() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.goal
}

func (c *TaskContext) State() entity.TaskState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Start moves IDLE to RUNNING and stamps the task id and start time.
func (c *TaskContext) Start(goal string) error {
	const op = "TaskContext.Start"
	if strings.TrimSpace(goal) == "" {
		return entity.Errorf(entity.ErrorKindInvalidState, op, "goal is empty")
	}
	return c.transition(op, entity.TaskStateRunning, func() {
		c.id = c.newID()
		c.goal = goal
		c.startTime = c.now()
	}, entity.TaskStateIdle)
}

func (c *TaskContext) Pause() error {
	return c.transition("TaskContext.Pause", entity.TaskStatePaused, nil, entity.TaskStateRunning)
}

func (c *TaskContext) Resume() error {
	return c.transition("TaskContext.Resume", entity.TaskStateRunning, nil, entity.TaskStatePaused)
}

// Cancel returns to IDLE with a fresh, empty context.
func (c *TaskContext) Cancel() error {
	return c.transition("TaskContext.Cancel", entity.TaskStateIdle, c.reset,
		entity.TaskStateRunning, entity.TaskStatePaused)
}

func (c *TaskContext) Complete(finalResponse string) error {
	return c.transition("TaskContext.Complete", entity.TaskStateCompleted, func() {
		end := c.now()
		c.endTime = &end
		c.finalResponse = finalResponse
		c.errText = ""
	}, entity.TaskStateRunning)
}

// Fail moves to ERROR. Repeated failures accumulate newline-joined.
func (c *TaskContext) Fail(err error) error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return c.transition("TaskContext.Fail", entity.TaskStateError, func() {
		end := c.now()
		c.endTime = &end
		if c.errText == "" {
			c.errText = msg
		} else {
			c.errText += "\n" + msg
		}
	}, entity.TaskStateRunning, entity.TaskStatePaused)
}

func (c *TaskContext) transition(op string, to entity.TaskState, apply func(), from ...entity.TaskState) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	old := c.state
	allowed := false
	for _, s := range from {
		if s == old {
			allowed = true
			break
		}
	}
	if !allowed {
		c.mu.Unlock()
		return entity.Errorf(entity.ErrorKindInvalidState, op, "cannot move from %s to %s", old, to)
	}
	if apply != nil {
		apply()
	}
	c.state = to
	c.mu.Unlock()

	c.notify(entity.StateChangePayload{State: to, OldState: old})
	return nil
}

// reset clears everything but the configuration. Called with mu held.
func (c *TaskContext) reset() {
	c.id = ""
	c.goal = ""
	c.actions = nil
	c.currentURL = ""
	c.startTime = time.Time{}
	c.endTime = nil
	c.errText = ""
	c.finalResponse = ""
	c.conversation = nil
}

// AddAction appends a PENDING action. Only allowed while the task is active.
func (c *TaskContext) AddAction(call entity.FunctionCall, reasoning string) (entity.AgentAction, error) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.state != entity.TaskStateRunning && c.state != entity.TaskStatePaused {
		state := c.state
		c.mu.Unlock()
		return entity.AgentAction{}, entity.Errorf(entity.ErrorKindInvalidState, "TaskContext.AddAction",
			"task is %s", state)
	}
	action := entity.AgentAction{
		ID:           c.newID(),
		Timestamp:    c.now(),
		FunctionCall: copyCall(call),
		Status:       entity.ActionStatusPending,
		Reasoning:    reasoning,
	}
	c.actions = append(c.actions, action)
	c.mu.Unlock()

	c.notify(entity.ActionAddedPayload{Action: copyAction(action)})
	return copyAction(action), nil
}

// ActionUpdate carries the fields that may change on the most recent action.
// Empty strings leave the existing value in place.
type ActionUpdate struct {
	Status     entity.ActionStatus
	Result     string
	Error      string
	Screenshot string
	URL        string
}

// UpdateLastAction changes the most recent action. Older entries are immutable.
func (c *TaskContext) UpdateLastAction(u ActionUpdate) (entity.AgentAction, error) {
	const op = "TaskContext.UpdateLastAction"

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if len(c.actions) == 0 {
		c.mu.Unlock()
		return entity.AgentAction{}, entity.Errorf(entity.ErrorKindInvalidState, op, "no actions recorded")
	}
	last := &c.actions[len(c.actions)-1]
	if u.Status != "" {
		last.Status = u.Status
	}
	if u.Result != "" {
		last.Result = u.Result
	}
	if u.Error != "" {
		last.Error = u.Error
	}
	if u.Screenshot != "" {
		last.Screenshot = u.Screenshot
	}
	if u.URL != "" {
		last.URL = u.URL
	}
	updated := copyAction(*last)
	c.mu.Unlock()

	c.notify(entity.ActionUpdatedPayload{Action: copyAction(updated)})
	return updated, nil
}

func (c *TaskContext) SetCurrentURL(url string) {
	c.mu.Lock()
	c.currentURL = url
	c.mu.Unlock()
}

func (c *TaskContext) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

func (c *TaskContext) AppendConversation(msgs ...entity.Message) {
	c.mu.Lock()
	c.conversation = append(c.conversation, msgs...)
	c.mu.Unlock()
}

func (c *TaskContext) Conversation() []entity.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.Message, len(c.conversation))
	copy(out, c.conversation)
	return out
}

// CurrentTurn is the number of successful actions plus one.
func (c *TaskContext) CurrentTurn() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTurnLocked()
}

func (c *TaskContext) currentTurnLocked() int {
	turn := 1
	for _, a := range c.actions {
		if a.Status == entity.ActionStatusSuccess {
			turn++
		}
	}
	return turn
}

func (c *TaskContext) HasReachedMaxTurns() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.actions) >= c.cfg.MaxTurns
}

func (c *TaskContext) HasTimedOut() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.startTime.IsZero() {
		return false
	}
	return c.now().Sub(c.startTime) > c.cfg.Timeout
}

func (c *TaskContext) ShouldContinue() bool {
	return c.State() == entity.TaskStateRunning && !c.HasReachedMaxTurns() && !c.HasTimedOut()
}

// Elapsed is the time since start, frozen at the end time once terminal.
func (c *TaskContext) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.startTime.IsZero() {
		return 0
	}
	if c.endTime != nil {
		return c.endTime.Sub(c.startTime)
	}
	return c.now().Sub(c.startTime)
}

func (c *TaskContext) Snapshot() entity.TaskSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	actions := make([]entity.AgentAction, len(c.actions))
	for i, a := range c.actions {
		actions[i] = copyAction(a)
	}
	var end *time.Time
	if c.endTime != nil {
		t := *c.endTime
		end = &t
	}
	return entity.TaskSnapshot{
		ID:            c.id,
		Goal:          c.goal,
		State:         c.state,
		Turn:          c.currentTurnLocked(),
		Actions:       actions,
		CurrentURL:    c.currentURL,
		StartTime:     c.startTime,
		EndTime:       end,
		Error:         c.errText,
		FinalResponse: c.finalResponse,
	}
}

func (c *TaskContext) notify(p entity.EventPayload) {
	if c.listener != nil {
		c.listener(p)
	}
}

func copyCall(call entity.FunctionCall) entity.FunctionCall {
	out := entity.FunctionCall{Name: call.Name}
	if call.Args != nil {
		out.Args = make(map[string]any, len(call.Args))
		for k, v := range call.Args {
			out.Args[k] = v
		}
	}
	return out
}

func copyAction(a entity.AgentAction) entity.AgentAction {
	a.FunctionCall = copyCall(a.FunctionCall)
	return a
}
