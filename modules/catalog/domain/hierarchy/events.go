package hierarchy

import (
	"time"

	"github.com/google/uuid"
)

type TestCaseCreatedEvent struct {
	ActorID    uuid.UUID
	Result     TestCase
	OccurredAt time.Time
}

type TestCaseDeletedEvent struct {
	ActorID    uuid.UUID
	Data       TestCase
	OccurredAt time.Time
}

func NewTestCaseCreatedEvent(actorID uuid.UUID, tc TestCase) *TestCaseCreatedEvent {
	return &TestCaseCreatedEvent{ActorID: actorID, Result: tc, OccurredAt: time.Now()}
}

func NewTestCaseDeletedEvent(actorID uuid.UUID, tc TestCase) *TestCaseDeletedEvent {
	return &TestCaseDeletedEvent{ActorID: actorID, Data: tc, OccurredAt: time.Now()}
}
