package domain

// Tag is a name attached to exactly one container. Tags have no lifecycle
// of their own: deleting the container deletes its tags. Names are
// free to repeat across different containers.
type Tag struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContainerID string `json:"container_id"`
}
