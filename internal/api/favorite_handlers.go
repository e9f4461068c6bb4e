package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerFavoriteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listFavorites",
		Method:      http.MethodGet,
		Path:        "/api/v1/favorites",
		Summary:     "List favorites",
		Description: "Returns the user's favorited containers. Favorites whose container was deleted are dropped.",
		Tags:        []string{"Favorites"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListFavorites)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleFavorite",
		Method:      http.MethodPost,
		Path:        "/api/v1/containers/{id}/favorite",
		Summary:     "Toggle favorite",
		Description: "Favorites the container, or unfavorites it if already favorited",
		Tags:        []string{"Favorites"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleToggleFavorite)
}

// === DTOs ===

// ListFavoritesInput contains parameters for listing favorites.
type ListFavoritesInput struct {
	Authorization string `header:"Authorization"`
}

// ToggleFavoriteInput contains parameters for toggling a favorite.
type ToggleFavoriteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container ID"`
}

// ToggleFavoriteResponse reports the resulting favorite state.
type ToggleFavoriteResponse struct {
	ContainerID string `json:"container_id" doc:"Container ID"`
	Favorited   bool   `json:"favorited" doc:"True if the container is now favorited"`
}

// ToggleFavoriteOutput wraps the toggle response for Huma.
type ToggleFavoriteOutput struct {
	Body ToggleFavoriteResponse
}

// === Handlers ===

func (s *Server) handleListFavorites(ctx context.Context, input *ListFavoritesInput) (*ContainerListOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	return &ContainerListOutput{
		Body: ContainerListResponse{Containers: mapContainerNodes(session.FavoriteContainers())},
	}, nil
}

func (s *Server) handleToggleFavorite(ctx context.Context, input *ToggleFavoriteInput) (*ToggleFavoriteOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	favorited, err := session.Mutate().ToggleFavorite(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &ToggleFavoriteOutput{
		Body: ToggleFavoriteResponse{
			ContainerID: input.ID,
			Favorited:   favorited,
		},
	}, nil
}
