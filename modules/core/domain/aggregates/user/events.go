package user

import "time"

type CreatedEvent struct {
	Result     User
	OccurredAt time.Time
}

func NewCreatedEvent(u User) *CreatedEvent {
	return &CreatedEvent{Result: u, OccurredAt: time.Now()}
}
