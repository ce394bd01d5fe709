package mail

import (
	"context"
	"time"
)

// Message is one fetched mailbox message, reduced to the fields the
// extraction pipeline consumes.
type Message struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	Sender  string    `json:"sender"`
	Date    time.Time `json:"date"`
	Body    string    `json:"body"`
}

// Source abstracts the mailbox transport. Implementations map their
// failures onto the connection/authentication error classes so the sync
// loop can decide between retrying and aborting.
type Source interface {
	// FetchMessages returns messages received within [since, until].
	FetchMessages(ctx context.Context, since, until time.Time) ([]Message, error)
	// MarkRead flags the given messages as seen. Best effort.
	MarkRead(ctx context.Context, ids []string) error
	// Ping verifies connectivity and credentials without fetching.
	Ping(ctx context.Context) error
}
