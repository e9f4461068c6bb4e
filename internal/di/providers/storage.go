package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/stowawayapp/stowaway-server/internal/config"
	"github.com/stowawayapp/stowaway-server/internal/logger"
	"github.com/stowawayapp/stowaway-server/internal/media/images"
)

// ProvideImageStorage provides the photo upload storage.
func ProvideImageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := images.NewStorage(cfg.Data.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("upload storage: %w", err)
	}

	log.Info("Upload storage initialized", "path", cfg.Data.UploadPath)

	return storage, nil
}

// ProvideImageProcessor provides the photo processor.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	storage := do.MustInvoke[*images.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)

	return images.NewProcessor(storage, log.Logger), nil
}
