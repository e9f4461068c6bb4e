package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stowawayapp/stowaway-server/internal/cache"
)

func (s *Server) registerContainerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listRootContainers",
		Method:      http.MethodGet,
		Path:        "/api/v1/containers",
		Summary:     "List root containers",
		Description: "Returns the top-level hoards (containers without a parent, items excluded)",
		Tags:        []string{"Containers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListRootContainers)

	huma.Register(s.api, huma.Operation{
		OperationID: "createContainer",
		Method:      http.MethodPost,
		Path:        "/api/v1/containers",
		Summary:     "Create container",
		Description: "Creates a container or item, optionally with initial tags",
		Tags:        []string{"Containers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateContainer)

	huma.Register(s.api, huma.Operation{
		OperationID: "getContainer",
		Method:      http.MethodGet,
		Path:        "/api/v1/containers/{id}",
		Summary:     "Get container",
		Description: "Returns a container with its tags, children, and breadcrumb trail",
		Tags:        []string{"Containers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetContainer)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateContainer",
		Method:      http.MethodPatch,
		Path:        "/api/v1/containers/{id}",
		Summary:     "Update container",
		Description: "Patches the provided fields of a container",
		Tags:        []string{"Containers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateContainer)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteContainer",
		Method:      http.MethodDelete,
		Path:        "/api/v1/containers/{id}",
		Summary:     "Delete container",
		Description: "Deletes a container, either cascading into its contents or promoting them to the parent",
		Tags:        []string{"Containers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteContainer)

	huma.Register(s.api, huma.Operation{
		OperationID: "moveContainer",
		Method:      http.MethodPost,
		Path:        "/api/v1/containers/{id}/move",
		Summary:     "Move container",
		Description: "Reparents a container. An empty parent_id moves it to the root level.",
		Tags:        []string{"Containers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMoveContainer)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMoveDestinations",
		Method:      http.MethodGet,
		Path:        "/api/v1/containers/{id}/move-destinations",
		Summary:     "List move destinations",
		Description: "Returns the container forest filtered to valid move targets for this container",
		Tags:        []string{"Containers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMoveDestinations)

	huma.Register(s.api, huma.Operation{
		OperationID: "replaceContainerTags",
		Method:      http.MethodPut,
		Path:        "/api/v1/containers/{id}/tags",
		Summary:     "Replace container tags",
		Description: "Replaces the container's tag set with the given names",
		Tags:        []string{"Containers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReplaceContainerTags)
}

// === DTOs ===

// ContainerResponse contains container data in API responses.
type ContainerResponse struct {
	ID          string    `json:"id" doc:"Container ID"`
	Name        string    `json:"name" doc:"Container name"`
	Description string    `json:"description,omitempty" doc:"Free-form description"`
	Code        string    `json:"code,omitempty" doc:"Scan code printed on the label"`
	IsItem      bool      `json:"is_item" doc:"True for leaf items, false for containers"`
	ParentID    string    `json:"parent_id,omitempty" doc:"Parent container ID, empty at root level"`
	Tags        []string  `json:"tags" doc:"Tag names in creation order"`
	ChildCount  int       `json:"child_count" doc:"Number of direct children"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update time"`
}

// BreadcrumbResponse is one step of the path from root to a container.
type BreadcrumbResponse struct {
	ID     string `json:"id" doc:"Container ID"`
	Name   string `json:"name" doc:"Container name"`
	IsItem bool   `json:"is_item" doc:"True for leaf items"`
}

// ContainerDetailResponse contains a container with its relations.
type ContainerDetailResponse struct {
	ContainerResponse
	Children    []ContainerResponse  `json:"children" doc:"Direct children in creation order"`
	Breadcrumbs []BreadcrumbResponse `json:"breadcrumbs" doc:"Path from root to this container, inclusive"`
	IsFavorite  bool                 `json:"is_favorite" doc:"Whether the user favorited this container"`
}

// ContainerListResponse contains a list of containers.
type ContainerListResponse struct {
	Containers []ContainerResponse `json:"containers" doc:"Containers in creation order"`
}

// ContainerListOutput wraps the container list for Huma.
type ContainerListOutput struct {
	Body ContainerListResponse
}

// ContainerOutput wraps a single container for Huma.
type ContainerOutput struct {
	Body ContainerResponse
}

// ContainerDetailOutput wraps the container detail for Huma.
type ContainerDetailOutput struct {
	Body ContainerDetailResponse
}

// CreateContainerRequest is the request body for creating a container.
type CreateContainerRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=200" doc:"Container name"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=2000" doc:"Free-form description"`
	Code        string   `json:"code,omitempty" validate:"omitempty,max=100" doc:"Scan code, unique per user"`
	IsItem      bool     `json:"is_item,omitempty" doc:"Create as a leaf item"`
	ParentID    string   `json:"parent_id,omitempty" doc:"Parent container ID, empty for root level"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,max=50,dive,max=100" doc:"Initial tag names"`
}

// CreateContainerInput wraps the create request for Huma.
type CreateContainerInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateContainerRequest
}

// ListRootContainersInput contains parameters for listing roots.
type ListRootContainersInput struct {
	Authorization string `header:"Authorization"`
}

// GetContainerInput contains parameters for getting a container.
type GetContainerInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container ID"`
}

// UpdateContainerRequest is the request body for updating a container.
type UpdateContainerRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200" doc:"Container name"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000" doc:"Free-form description"`
	Code        *string `json:"code,omitempty" validate:"omitempty,max=100" doc:"Scan code, unique per user"`
}

// UpdateContainerInput wraps the update request for Huma.
type UpdateContainerInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container ID"`
	Body          UpdateContainerRequest
}

// DeleteContainerInput contains parameters for deleting a container.
type DeleteContainerInput struct {
	Authorization  string `header:"Authorization"`
	ID             string `path:"id" doc:"Container ID"`
	DeleteContents bool   `query:"delete_contents" doc:"Cascade into the subtree instead of promoting children"`
}

// MoveContainerRequest is the request body for moving a container.
type MoveContainerRequest struct {
	ParentID string `json:"parent_id" doc:"New parent container ID, empty for root level"`
}

// MoveContainerInput wraps the move request for Huma.
type MoveContainerInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container ID"`
	Body          MoveContainerRequest
}

// MoveDestinationsInput contains parameters for listing move targets.
type MoveDestinationsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container being moved"`
}

// DestinationResponse is one node of the filtered destination forest.
type DestinationResponse struct {
	ID       string                `json:"id" doc:"Container ID"`
	Name     string                `json:"name" doc:"Container name"`
	Children []DestinationResponse `json:"children" doc:"Valid nested destinations"`
}

// MoveDestinationsResponse contains the destination forest.
type MoveDestinationsResponse struct {
	Destinations []DestinationResponse `json:"destinations" doc:"Valid move targets, roots first"`
}

// MoveDestinationsOutput wraps the destinations for Huma.
type MoveDestinationsOutput struct {
	Body MoveDestinationsResponse
}

// ReplaceTagsRequest is the request body for replacing a container's tags.
type ReplaceTagsRequest struct {
	Tags []string `json:"tags" validate:"max=50,dive,max=100" doc:"Replacement tag names"`
}

// ReplaceTagsInput wraps the replace-tags request for Huma.
type ReplaceTagsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container ID"`
	Body          ReplaceTagsRequest
}

func mapContainerNode(n *cache.Node) ContainerResponse {
	return ContainerResponse{
		ID:          n.Container.ID,
		Name:        n.Container.Name,
		Description: n.Container.Description,
		Code:        n.Container.Code,
		IsItem:      n.Container.IsItem,
		ParentID:    n.Container.ParentID,
		Tags:        n.Tags,
		ChildCount:  len(n.Children),
		CreatedAt:   n.Container.CreatedAt,
		UpdatedAt:   n.Container.UpdatedAt,
	}
}

func mapContainerNodes(nodes []*cache.Node) []ContainerResponse {
	resp := make([]ContainerResponse, len(nodes))
	for i, n := range nodes {
		resp[i] = mapContainerNode(n)
	}
	return resp
}

func mapDestinations(dests []*cache.Destination) []DestinationResponse {
	resp := make([]DestinationResponse, len(dests))
	for i, d := range dests {
		resp[i] = DestinationResponse{
			ID:       d.Container.ID,
			Name:     d.Container.Name,
			Children: mapDestinations(d.Children),
		}
	}
	return resp
}

// === Handlers ===

func (s *Server) handleListRootContainers(ctx context.Context, input *ListRootContainersInput) (*ContainerListOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	return &ContainerListOutput{
		Body: ContainerListResponse{Containers: mapContainerNodes(session.RootContainers())},
	}, nil
}

func (s *Server) handleCreateContainer(ctx context.Context, input *CreateContainerInput) (*ContainerDetailOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	container, err := session.Mutate().CreateContainer(ctx, cache.CreateContainerInput{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Code:        input.Body.Code,
		IsItem:      input.Body.IsItem,
		ParentID:    input.Body.ParentID,
		Tags:        input.Body.Tags,
	})
	if err != nil {
		return nil, err
	}

	return s.containerDetail(session, container.ID)
}

func (s *Server) handleGetContainer(ctx context.Context, input *GetContainerInput) (*ContainerDetailOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	return s.containerDetail(session, input.ID)
}

func (s *Server) handleUpdateContainer(ctx context.Context, input *UpdateContainerInput) (*ContainerDetailOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	container, err := session.Mutate().UpdateContainer(ctx, input.ID, cache.UpdateContainerInput{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Code:        input.Body.Code,
	})
	if err != nil {
		return nil, err
	}

	return s.containerDetail(session, container.ID)
}

func (s *Server) handleDeleteContainer(ctx context.Context, input *DeleteContainerInput) (*MessageOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	// Collect the stored image rows before the delete so the files can
	// be cleaned up afterwards. A cascade removes the whole subtree's
	// galleries; a promote only removes the container's own gallery.
	var doomed []string
	if input.DeleteContents {
		for _, id := range session.Graph().Subtree(input.ID) {
			for _, img := range session.Images(id) {
				doomed = append(doomed, img.Filepath)
			}
		}
	} else {
		for _, img := range session.Images(input.ID) {
			doomed = append(doomed, img.Filepath)
		}
	}

	if err := session.Mutate().DeleteContainer(ctx, input.ID, input.DeleteContents); err != nil {
		return nil, err
	}

	for _, filepath := range doomed {
		if err := s.storage.Delete(filepath); err != nil {
			s.logger.Warn("failed to delete image file", "filepath", filepath, "error", err)
		}
	}

	return &MessageOutput{Body: MessageResponse{Message: "Container deleted"}}, nil
}

func (s *Server) handleMoveContainer(ctx context.Context, input *MoveContainerInput) (*ContainerDetailOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	container, err := session.Mutate().MoveContainer(ctx, input.ID, input.Body.ParentID)
	if err != nil {
		return nil, err
	}

	return s.containerDetail(session, container.ID)
}

func (s *Server) handleListMoveDestinations(ctx context.Context, input *MoveDestinationsInput) (*MoveDestinationsOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if session.ContainerByID(input.ID) == nil {
		return nil, huma.Error404NotFound("Container not found")
	}

	return &MoveDestinationsOutput{
		Body: MoveDestinationsResponse{Destinations: mapDestinations(session.MoveDestinations(input.ID))},
	}, nil
}

func (s *Server) handleReplaceContainerTags(ctx context.Context, input *ReplaceTagsInput) (*ContainerDetailOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	if err := session.Mutate().UpdateContainerTags(ctx, input.ID, input.Body.Tags); err != nil {
		return nil, err
	}

	return s.containerDetail(session, input.ID)
}

// containerDetail assembles the detail response from the session graph.
func (s *Server) containerDetail(session *cache.Session, id string) (*ContainerDetailOutput, error) {
	node := session.ContainerByID(id)
	if node == nil {
		return nil, huma.Error404NotFound("Container not found")
	}

	crumbs := session.Breadcrumbs(id)
	breadcrumbs := make([]BreadcrumbResponse, len(crumbs))
	for i, c := range crumbs {
		breadcrumbs[i] = BreadcrumbResponse{
			ID:     c.Container.ID,
			Name:   c.Container.Name,
			IsItem: c.Container.IsItem,
		}
	}

	isFavorite := false
	for _, fav := range session.Favorites() {
		if fav.ContainerID == id {
			isFavorite = true
			break
		}
	}

	return &ContainerDetailOutput{
		Body: ContainerDetailResponse{
			ContainerResponse: mapContainerNode(node),
			Children:          mapContainerNodes(node.Children),
			Breadcrumbs:       breadcrumbs,
			IsFavorite:        isFavorite,
		},
	}, nil
}
