package execution

import (
	"time"

	"github.com/google/uuid"
)

type CompletedEvent struct {
	ActorID    uuid.UUID
	Result     Execution
	Previous   Result
	OccurredAt time.Time
}

func NewCompletedEvent(actorID uuid.UUID, e Execution, previous Result) *CompletedEvent {
	return &CompletedEvent{ActorID: actorID, Result: e, Previous: previous, OccurredAt: time.Now()}
}
