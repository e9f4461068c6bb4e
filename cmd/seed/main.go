// Package main seeds a development dataset: one demo user with a small
// container tree to exercise the app against.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stowawayapp/stowaway-server/internal/auth"
	"github.com/stowawayapp/stowaway-server/internal/cache"
	"github.com/stowawayapp/stowaway-server/internal/config"
	"github.com/stowawayapp/stowaway-server/internal/logger"
	"github.com/stowawayapp/stowaway-server/internal/service"
	"github.com/stowawayapp/stowaway-server/internal/store"
	"github.com/stowawayapp/stowaway-server/internal/sync"
	"github.com/stowawayapp/stowaway-server/internal/validation"
)

const (
	demoEmail    = "demo@stowaway.local"
	demoPassword = "demo-password"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	st, err := store.New(filepath.Join(cfg.Data.BasePath, "db"), log.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	keyHex, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return err
	}
	tokenService, err := auth.NewTokenService(keyHex, cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(st, tokenService, validation.New(), log.Logger)

	ctx := context.Background()

	configured, err := authService.IsConfigured(ctx)
	if err != nil {
		return err
	}
	if configured {
		return fmt.Errorf("server already has users, refusing to seed")
	}

	resp, err := authService.Setup(ctx, service.SetupRequest{
		Email:       demoEmail,
		Password:    demoPassword,
		DisplayName: "Demo",
	})
	if err != nil {
		return err
	}
	log.Info("Demo user created", "email", demoEmail, "user_id", resp.User.ID)

	engine := sync.NewEngine(st, log.Logger)
	session, err := cache.NewSession(ctx, resp.User.ID, engine)
	if err != nil {
		return err
	}
	defer session.Close()

	mutate := session.Mutate()

	garage, err := mutate.CreateContainer(ctx, cache.CreateContainerInput{
		Name:        "Garage",
		Description: "Everything that does not fit in the house",
		Code:        "GARAGE-1",
	})
	if err != nil {
		return err
	}

	toolbox, err := mutate.CreateContainer(ctx, cache.CreateContainerInput{
		Name:     "Toolbox",
		ParentID: garage.ID,
		Tags:     []string{"tools", "metal"},
	})
	if err != nil {
		return err
	}

	hammer, err := mutate.CreateContainer(ctx, cache.CreateContainerInput{
		Name:     "Hammer",
		IsItem:   true,
		ParentID: toolbox.ID,
	})
	if err != nil {
		return err
	}

	if _, err := mutate.ToggleFavorite(ctx, toolbox.ID); err != nil {
		return err
	}

	log.Info("Seed data created",
		"garage", garage.ID,
		"toolbox", toolbox.ID,
		"hammer", hammer.ID,
	)
	fmt.Printf("Seeded demo inventory. Log in as %s / %s\n", demoEmail, demoPassword)

	return nil
}
