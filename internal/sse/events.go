// Package sse implements Server-Sent Events for real-time inventory updates.
package sse

import (
	"time"

	"github.com/stowawayapp/stowaway-server/internal/domain"
)

// Stowaway uses SSE for server-to-client change notification only.
// Clients mutate through the regular HTTP API and receive the resulting
// row changes here, so every open tab converges on the same graph.

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventContainerCreated represents a container creation event.
	EventContainerCreated EventType = "container.created"
	// EventContainerUpdated represents a container update event.
	EventContainerUpdated EventType = "container.updated"
	// EventContainerMoved represents a container reparent event.
	EventContainerMoved EventType = "container.moved"
	// EventContainerDeleted represents a container deletion event.
	EventContainerDeleted EventType = "container.deleted"

	// EventTagCreated represents a tag creation event.
	EventTagCreated EventType = "tag.created"
	// EventTagDeleted represents a tag deletion event.
	EventTagDeleted EventType = "tag.deleted"

	// EventImageCreated represents an image upload event.
	EventImageCreated EventType = "image.created"
	// EventImageDeleted represents an image deletion event.
	EventImageDeleted EventType = "image.deleted"

	// EventFavoriteCreated represents a container being favorited.
	EventFavoriteCreated EventType = "favorite.created"
	// EventFavoriteDeleted represents a favorite being removed.
	EventFavoriteDeleted EventType = "favorite.deleted"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"` // Event-specific data as JSON object
	Type      EventType `json:"type"`

	// UserID filters delivery to the owning user's clients.
	// Empty string means "broadcast to all" (heartbeats only).
	UserID string `json:"-"`
}

// ContainerEventData is the data payload for container events.
type ContainerEventData struct {
	Container *domain.Container `json:"container"`
}

// ContainerDeletedEventData is the data payload for container delete events.
// ChildIDs lists descendants removed by the same cascade, if any.
type ContainerDeletedEventData struct {
	ContainerID string   `json:"container_id"`
	ChildIDs    []string `json:"child_ids,omitempty"`
}

// TagEventData is the data payload for tag events.
type TagEventData struct {
	Tag *domain.Tag `json:"tag"`
}

// ImageEventData is the data payload for image events.
type ImageEventData struct {
	Image *domain.Image `json:"image"`
}

// FavoriteEventData is the data payload for favorite events.
type FavoriteEventData struct {
	Favorite *domain.Favorite `json:"favorite"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewContainerCreatedEvent creates a container.created event.
func NewContainerCreatedEvent(container *domain.Container) Event {
	return Event{
		Type:      EventContainerCreated,
		Data:      ContainerEventData{Container: container},
		Timestamp: time.Now(),
		UserID:    container.UserID,
	}
}

// NewContainerUpdatedEvent creates a container.updated event.
func NewContainerUpdatedEvent(container *domain.Container) Event {
	return Event{
		Type:      EventContainerUpdated,
		Data:      ContainerEventData{Container: container},
		Timestamp: time.Now(),
		UserID:    container.UserID,
	}
}

// NewContainerMovedEvent creates a container.moved event.
func NewContainerMovedEvent(container *domain.Container) Event {
	return Event{
		Type:      EventContainerMoved,
		Data:      ContainerEventData{Container: container},
		Timestamp: time.Now(),
		UserID:    container.UserID,
	}
}

// NewContainerDeletedEvent creates a container.deleted event.
func NewContainerDeletedEvent(userID, containerID string, childIDs []string) Event {
	return Event{
		Type: EventContainerDeleted,
		Data: ContainerDeletedEventData{
			ContainerID: containerID,
			ChildIDs:    childIDs,
		},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewTagCreatedEvent creates a tag.created event.
func NewTagCreatedEvent(userID string, tag *domain.Tag) Event {
	return Event{
		Type:      EventTagCreated,
		Data:      TagEventData{Tag: tag},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewTagDeletedEvent creates a tag.deleted event.
func NewTagDeletedEvent(userID string, tag *domain.Tag) Event {
	return Event{
		Type:      EventTagDeleted,
		Data:      TagEventData{Tag: tag},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewImageCreatedEvent creates an image.created event.
func NewImageCreatedEvent(userID string, image *domain.Image) Event {
	return Event{
		Type:      EventImageCreated,
		Data:      ImageEventData{Image: image},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewImageDeletedEvent creates an image.deleted event.
func NewImageDeletedEvent(userID string, image *domain.Image) Event {
	return Event{
		Type:      EventImageDeleted,
		Data:      ImageEventData{Image: image},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewFavoriteCreatedEvent creates a favorite.created event.
func NewFavoriteCreatedEvent(favorite *domain.Favorite) Event {
	return Event{
		Type:      EventFavoriteCreated,
		Data:      FavoriteEventData{Favorite: favorite},
		Timestamp: time.Now(),
		UserID:    favorite.UserID,
	}
}

// NewFavoriteDeletedEvent creates a favorite.deleted event.
func NewFavoriteDeletedEvent(favorite *domain.Favorite) Event {
	return Event{
		Type:      EventFavoriteDeleted,
		Data:      FavoriteEventData{Favorite: favorite},
		Timestamp: time.Now(),
		UserID:    favorite.UserID,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
