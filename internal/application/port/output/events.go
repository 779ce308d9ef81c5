package output

import "browser-pilot/internal/domain/entity"

type EventPublisher interface {
	Publish(event entity.Event)
}
