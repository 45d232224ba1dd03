package model

import "time"

// Meta is embedded in every stored document.  Version is bumped on each
// replace and used for optimistic concurrency checks.
type Meta struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int       `json:"version"`
}
