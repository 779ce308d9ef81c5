package output

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

// UserInteractionPort is the interactive front end: it reads goals from the
// user and renders task events back.
type UserInteractionPort interface {
	ReadGoal(ctx context.Context) (string, error)
	Render(event entity.Event)
}
