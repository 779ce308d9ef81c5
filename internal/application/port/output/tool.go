package output

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

type ToolPort interface {
	Name() entity.ActionName
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, action entity.Action) entity.ActionResult
}

type ToolRegistry interface {
	Register(tool ToolPort)
	Get(name entity.ActionName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}
