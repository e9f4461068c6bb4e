package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stowawayapp/stowaway-server/internal/cache"
	"github.com/stowawayapp/stowaway-server/internal/domain"
	"github.com/stowawayapp/stowaway-server/internal/id"
)

func (s *Server) registerImageRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listContainerImages",
		Method:      http.MethodGet,
		Path:        "/api/v1/containers/{id}/images",
		Summary:     "List container images",
		Description: "Returns the container's photo gallery in sort order",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListContainerImages)

	huma.Register(s.api, huma.Operation{
		OperationID: "uploadContainerImage",
		Method:      http.MethodPost,
		Path:        "/api/v1/containers/{id}/images",
		Summary:     "Upload container image",
		Description: "Stores a photo for a container, appended at the end of the gallery",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUploadContainerImage)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteImage",
		Method:      http.MethodDelete,
		Path:        "/api/v1/images/{id}",
		Summary:     "Delete image",
		Description: "Removes a photo and its stored file",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteImage)

	// Direct chi route for file streaming; huma buffers bodies.
	s.router.Get("/images/{filename}", s.handleServeImage)
}

// === DTOs ===

// ImageResponse contains image metadata in API responses.
type ImageResponse struct {
	ID          string    `json:"id" doc:"Image ID"`
	Filename    string    `json:"filename" doc:"Original upload name"`
	URL         string    `json:"url" doc:"Download path for the stored file"`
	MimeType    string    `json:"mime_type" doc:"Content type"`
	Size        int64     `json:"size" doc:"File size in bytes"`
	Width       int       `json:"width,omitempty" doc:"Pixel width"`
	Height      int       `json:"height,omitempty" doc:"Pixel height"`
	BlurHash    string    `json:"blur_hash,omitempty" doc:"Compact placeholder for progressive loading"`
	ContainerID string    `json:"container_id" doc:"Owning container ID"`
	SortOrder   int       `json:"sort_order" doc:"Position within the gallery"`
	CreatedAt   time.Time `json:"created_at" doc:"Upload time"`
}

// ImageListResponse contains a container's gallery.
type ImageListResponse struct {
	Images []ImageResponse `json:"images" doc:"Images in sort order"`
}

// ImageListOutput wraps the image list for Huma.
type ImageListOutput struct {
	Body ImageListResponse
}

// ImageOutput wraps a single image for Huma.
type ImageOutput struct {
	Body ImageResponse
}

// ListContainerImagesInput contains parameters for listing a gallery.
type ListContainerImagesInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container ID"`
}

// UploadContainerImageInput wraps a raw image upload for Huma.
type UploadContainerImageInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Container ID"`
	Filename      string `header:"X-Filename" doc:"Original filename of the upload"`
	RawBody       []byte
}

// DeleteImageInput contains parameters for deleting an image.
type DeleteImageInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Image ID"`
}

func mapImageResponse(img *domain.Image) ImageResponse {
	return ImageResponse{
		ID:          img.ID,
		Filename:    img.Filename,
		URL:         "/images/" + img.Filepath,
		MimeType:    img.MimeType,
		Size:        img.Size,
		Width:       img.Width,
		Height:      img.Height,
		BlurHash:    img.BlurHash,
		ContainerID: img.ContainerID,
		SortOrder:   img.SortOrder,
		CreatedAt:   img.CreatedAt,
	}
}

// === Handlers ===

func (s *Server) handleListContainerImages(ctx context.Context, input *ListContainerImagesInput) (*ImageListOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if session.ContainerByID(input.ID) == nil {
		return nil, huma.Error404NotFound("Container not found")
	}

	images := session.Images(input.ID)
	resp := make([]ImageResponse, len(images))
	for i, img := range images {
		resp[i] = mapImageResponse(img)
	}

	return &ImageListOutput{Body: ImageListResponse{Images: resp}}, nil
}

func (s *Server) handleUploadContainerImage(ctx context.Context, input *UploadContainerImageInput) (*ImageOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if len(input.RawBody) > MaxUploadSize {
		return nil, huma.NewError(http.StatusRequestEntityTooLarge, "Image exceeds maximum upload size")
	}

	imageID, err := id.Generate(id.PrefixImage)
	if err != nil {
		return nil, err
	}

	processed, err := s.processor.Process(imageID, input.Filename, input.RawBody)
	if err != nil {
		return nil, err
	}

	img, err := session.Mutate().CreateImage(ctx, cache.CreateImageInput{
		ContainerID: input.ID,
		Filename:    processed.Filename,
		Filepath:    processed.Filepath,
		MimeType:    processed.MimeType,
		Size:        processed.Size,
		Width:       processed.Width,
		Height:      processed.Height,
		BlurHash:    processed.BlurHash,
	})
	if err != nil {
		// The row never landed; drop the stored file again.
		if cleanupErr := s.storage.Delete(processed.Filepath); cleanupErr != nil {
			s.logger.Warn("failed to clean up orphaned upload", "filepath", processed.Filepath, "error", cleanupErr)
		}
		return nil, err
	}

	return &ImageOutput{Body: mapImageResponse(img)}, nil
}

func (s *Server) handleDeleteImage(ctx context.Context, input *DeleteImageInput) (*MessageOutput, error) {
	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	img, err := session.Mutate().DeleteImage(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if err := s.storage.Delete(img.Filepath); err != nil {
		s.logger.Warn("failed to delete image file", "filepath", img.Filepath, "error", err)
	}

	return &MessageOutput{Body: MessageResponse{Message: "Image deleted"}}, nil
}

// handleServeImage streams a stored file. Content type comes from the
// file extension via ServeContent's sniffing.
func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		http.NotFound(w, r)
		return
	}
	if !s.storage.Exists(filename) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", CacheOneWeek)
	http.ServeFile(w, r, s.storage.Path(filename))
}
