package output

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

type BackendRequest struct {
	Instruction string
	MaxSteps    int
	Page        Page
	Observer    BackendObserver
}

// BackendObserver receives progress while a backend call is in flight.
// Returning an error from OnTurn stops the run before the next step.
type BackendObserver interface {
	OnTurn(turn int) error
	OnScreenshot(turn int, shot *entity.Screenshot)
	OnReasoning(text string)
	OnAction(name string, args map[string]any)
	OnActionComplete(success bool, result string)
}

type ReasoningBackend interface {
	Execute(ctx context.Context, req BackendRequest) (*entity.BackendResult, error)
	// Interrupt asks an in-flight Execute to stop. Best-effort.
	Interrupt() error
}
