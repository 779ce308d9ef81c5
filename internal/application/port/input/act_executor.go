package input

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

// ActExecutor turns a natural-language instruction into one executed page action.
type ActExecutor interface {
	Observe(ctx context.Context, instruction string) ([]entity.CandidateAction, error)
	Act(ctx context.Context, req entity.ActRequest) *entity.ActResult
	ActAfterObserve(ctx context.Context, instruction string) *entity.ActResult
	ClearCache()
}
