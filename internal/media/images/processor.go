package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"

	_ "golang.org/x/image/webp" // Register WebP decoder

	apperrors "github.com/stowawayapp/stowaway-server/internal/errors"
)

// extByMime maps accepted upload types to storage extensions.
var extByMime = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Processed carries the derived metadata for a stored photo, ready to
// insert as an image row.
type Processed struct {
	Filename string // original upload name
	Filepath string // stored filename, relative to the upload dir
	MimeType string
	Size     int64
	Width    int
	Height   int
	BlurHash string
}

// Processor turns raw upload bytes into a stored file plus metadata.
type Processor struct {
	storage *Storage
	logger  *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(storage *Storage, logger *slog.Logger) *Processor {
	return &Processor{
		storage: storage,
		logger:  logger,
	}
}

// Process sniffs the content type, decodes the image for dimensions and
// a BlurHash placeholder, and writes the bytes under imageID. The
// original bytes are stored as-is; no re-encoding.
func (p *Processor) Process(imageID, originalFilename string, data []byte) (*Processed, error) {
	if len(data) == 0 {
		return nil, apperrors.Validation("image data is empty")
	}

	mimeType := http.DetectContentType(data)
	ext, ok := extByMime[mimeType]
	if !ok {
		return nil, apperrors.Validationf("unsupported image type: %s", mimeType)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Validation("could not decode image")
	}
	bounds := img.Bounds()

	hash, err := ComputeBlurHash(img)
	if err != nil {
		// A photo without a placeholder is still usable.
		p.logger.Warn("failed to compute blurhash",
			slog.String("image_id", imageID),
			slog.String("error", err.Error()))
		hash = ""
	}

	storedName := imageID + ext
	if err := p.storage.Save(storedName, data); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	p.logger.Debug("processed upload",
		slog.String("image_id", imageID),
		slog.String("mime_type", mimeType),
		slog.Int("width", bounds.Dx()),
		slog.Int("height", bounds.Dy()),
		slog.Int("bytes", len(data)))

	return &Processed{
		Filename: originalFilename,
		Filepath: storedName,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		BlurHash: hash,
	}, nil
}
