package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stowawayapp/stowaway-server/internal/auth"
	domainerrors "github.com/stowawayapp/stowaway-server/internal/errors"
	"github.com/stowawayapp/stowaway-server/internal/store"
	"github.com/stowawayapp/stowaway-server/internal/validation"
)

// setupAuthTest creates an AuthService with temporary storage.
func setupAuthTest(t *testing.T) (*AuthService, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "stowaway-auth-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)

	keyHex, err := auth.LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)

	tokenService, err := auth.NewTokenService(keyHex, 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	svc := NewAuthService(s, tokenService, validation.New(), slog.New(slog.DiscardHandler))

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return svc, cleanup
}

func validSetup() SetupRequest {
	return SetupRequest{
		Email:       "owner@example.com",
		Password:    "a-long-password",
		DisplayName: "Owner",
	}
}

func TestSetup_CreatesFirstUser(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	ctx := context.Background()
	resp, err := svc.Setup(ctx, validSetup())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "owner@example.com", resp.User.Email)

	configured, err := svc.IsConfigured(ctx)
	require.NoError(t, err)
	assert.True(t, configured)
}

func TestSetup_OnlyOnce(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.Setup(ctx, validSetup())
	require.NoError(t, err)

	req := validSetup()
	req.Email = "second@example.com"
	_, err = svc.Setup(ctx, req)
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyConfigured)
}

func TestSetup_RejectsInvalidRequest(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	_, err := svc.Setup(context.Background(), SetupRequest{
		Email:       "not-an-email",
		Password:    "short",
		DisplayName: "",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestLogin_Succeeds(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.Setup(ctx, validSetup())
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{
		Email:    "owner@example.com",
		Password: "a-long-password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	claims, err := svc.VerifyAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.Setup(ctx, validSetup())
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{
		Email:    "Owner@Example.COM",
		Password: "a-long-password",
	})
	assert.NoError(t, err)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.Setup(ctx, validSetup())
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{
		Email:    "owner@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestLogin_UnknownEmailDoesNotLeak(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-password",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestRegister_RequiresSetupFirst(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "second@example.com",
		Password:    "a-long-password",
		DisplayName: "Second",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.Setup(ctx, validSetup())
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{
		Email:       "owner@example.com",
		Password:    "a-long-password",
		DisplayName: "Copycat",
	})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	ctx := context.Background()
	setup, err := svc.Setup(ctx, validSetup())
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, RefreshRequest{RefreshToken: setup.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, setup.RefreshToken, refreshed.RefreshToken)

	// The old token no longer matches the rotated hash.
	_, err = svc.Refresh(ctx, RefreshRequest{RefreshToken: setup.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestVerifyAccessToken_RejectsGarbage(t *testing.T) {
	svc, cleanup := setupAuthTest(t)
	defer cleanup()

	_, err := svc.VerifyAccessToken("v4.local.not-a-real-token")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}
