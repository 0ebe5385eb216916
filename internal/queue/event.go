// Package queue defines message payloads exchanged over the message broker.
package queue

// Movie lifecycle actions carried in MovieEvent.Action.
const (
    MovieCreated = "created"
    MovieUpdated = "updated"
    MovieDeleted = "deleted"
)

// MovieEvent is published whenever a catalog entry changes. It contains
// enough information for downstream consumers to log, notify, or feed
// analytics without querying the primary database.
type MovieEvent struct {
    Action         string `json:"action"`
    MovieID        uint64 `json:"movie_id"`
    UserID         uint64 `json:"user_id"`
    Title          string `json:"title"`
    PublishingYear int    `json:"publishing_year"`
    Poster         string `json:"poster,omitempty"`
    OccurredAt     string `json:"occurred_at"`
}
