package output

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

// Observer is the engine-level observe/act capability.
type Observer interface {
	Observe(ctx context.Context, page Page, instruction string) ([]entity.CandidateAction, error)
	Act(ctx context.Context, page Page, req entity.ActRequest) (*entity.ActOutcome, error)
}
