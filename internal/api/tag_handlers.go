package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/containers/{id}/tags",
		Summary:     "Create tag",
		Description: "Adds a tag to a container",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Delete tag",
		Description: "Removes a single tag",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteTag)
}

// === DTOs ===

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100" doc:"Tag name"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container ID"`
	Body          CreateTagRequest
}

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID          string `json:"id" doc:"Tag ID"`
	Name        string `json:"name" doc:"Tag name"`
	ContainerID string `json:"container_id" doc:"Owning container ID"`
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// DeleteTagInput contains parameters for deleting a tag.
type DeleteTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Tag ID"`
}

// === Handlers ===

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	tag, err := session.Mutate().CreateTag(ctx, input.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}

	return &TagOutput{
		Body: TagResponse{
			ID:          tag.ID,
			Name:        tag.Name,
			ContainerID: tag.ContainerID,
		},
	}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *DeleteTagInput) (*MessageOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := session.Mutate().DeleteTag(ctx, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Tag deleted"}}, nil
}
