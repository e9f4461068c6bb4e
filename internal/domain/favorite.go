package domain

import "time"

// Favorite is a user's bookmark of a container. A user favorites a given
// container at most once; the mutation layer searches for an existing row
// before inserting rather than relying on a structural constraint.
type Favorite struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ContainerID string    `json:"container_id"`
	CreatedAt   time.Time `json:"created_at"`
}
