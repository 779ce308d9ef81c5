package entity

import "time"

type EventType string

const (
	EventStart          EventType = "start"
	EventTurn           EventType = "turn"
	EventScreenshot     EventType = "screenshot"
	EventAction         EventType = "action"
	EventActionComplete EventType = "actionComplete"
	EventReasoning      EventType = "reasoning"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
	EventCancelled      EventType = "cancelled"
	EventPaused         EventType = "paused"
	EventResumed        EventType = "resumed"
	EventStateChange    EventType = "stateChange"
	EventActionAdded    EventType = "actionAdded"
	EventActionUpdated  EventType = "actionUpdated"
)

// EventPayload is implemented by exactly one payload type per EventType.
type EventPayload interface {
	EventType() EventType
}

type Event struct {
	Type    EventType    `json:"type"`
	TaskID  string       `json:"taskId,omitempty"`
	Seq     uint64       `json:"seq"`
	Time    time.Time    `json:"time"`
	Payload EventPayload `json:"payload"`
}

func NewEvent(taskID string, payload EventPayload) Event {
	return Event{
		Type:    payload.EventType(),
		TaskID:  taskID,
		Time:    time.Now(),
		Payload: payload,
	}
}

type StartPayload struct {
	Goal string `json:"goal"`
}

type TurnPayload struct {
	Turn int `json:"turn"`
}

type ScreenshotPayload struct {
	Turn       int    `json:"turn"`
	Screenshot string `json:"screenshot"`
	URL        string `json:"url,omitempty"`
}

type ActionPayload struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type ActionCompletePayload struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
}

type ReasoningPayload struct {
	Text string `json:"text"`
}

type CompletePayload struct {
	FinalResponse string        `json:"finalResponse"`
	Duration      time.Duration `json:"duration"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	Turn  int    `json:"turn"`
}

type CancelledPayload struct{}

type PausedPayload struct{}

type ResumedPayload struct{}

type StateChangePayload struct {
	State    TaskState `json:"state"`
	OldState TaskState `json:"oldState"`
}

type ActionAddedPayload struct {
	Action AgentAction `json:"action"`
}

type ActionUpdatedPayload struct {
	Action AgentAction `json:"action"`
}

func (StartPayload) EventType() EventType          { return EventStart }
func (TurnPayload) EventType() EventType           { return EventTurn }
func (ScreenshotPayload) EventType() EventType     { return EventScreenshot }
func (ActionPayload) EventType() EventType         { return EventAction }
func (ActionCompletePayload) EventType() EventType { return EventActionComplete }
func (ReasoningPayload) EventType() EventType      { return EventReasoning }
func (CompletePayload) EventType() EventType       { return EventComplete }
func (ErrorPayload) EventType() EventType          { return EventError }
func (CancelledPayload) EventType() EventType      { return EventCancelled }
func (PausedPayload) EventType() EventType         { return EventPaused }
func (ResumedPayload) EventType() EventType        { return EventResumed }
func (StateChangePayload) EventType() EventType    { return EventStateChange }
func (ActionAddedPayload) EventType() EventType    { return EventActionAdded }
func (ActionUpdatedPayload) EventType() EventType  { return EventActionUpdated }
