package domain

import "time"

// OutboxMessage is a committed event waiting to be relayed to the broker.
type OutboxMessage struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	Subject   string    `json:"subject"`
	Payload   []byte    `json:"payload"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}
