package api

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"
	"github.com/stowawayapp/stowaway-server/internal/auth"
	"github.com/stowawayapp/stowaway-server/internal/cache"
	"github.com/stowawayapp/stowaway-server/internal/media/images"
	"github.com/stowawayapp/stowaway-server/internal/service"
	"github.com/stowawayapp/stowaway-server/internal/sse"
	"github.com/stowawayapp/stowaway-server/internal/store"
	"github.com/stowawayapp/stowaway-server/internal/sync"
	"github.com/stowawayapp/stowaway-server/internal/validation"
)

// testEnvelope mirrors the wire envelope for unmarshaling in tests.
type testEnvelope[T any] struct {
	V       int            `json:"v"`
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *EnvelopeError `json:"error"`
}

type testServer struct {
	*Server
	api   humatest.TestAPI
	store *store.Store
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "stowaway-api-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	logger := slog.New(slog.DiscardHandler)

	st, err := store.New(filepath.Join(tmpDir, "db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	keyHex, err := auth.LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)

	tokenService, err := auth.NewTokenService(keyHex, 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	authService := service.NewAuthService(st, tokenService, validation.New(), logger)

	sseManager := sse.NewManager(logger)
	engine := sync.NewEngine(st, logger)
	engine.SetEmitter(sseManager)
	sessions := cache.NewRegistry(engine, logger)
	t.Cleanup(sessions.Close)

	storage, err := images.NewStorage(filepath.Join(tmpDir, "uploads"))
	require.NoError(t, err)
	processor := images.NewProcessor(storage, logger)

	s := NewServer(st, authService, sessions, sseManager, storage, processor, logger)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.api),
		store:  st,
	}
}

// createTestUser runs setup and returns a bearer token for the new user.
func (ts *testServer) createTestUser(t *testing.T) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/setup", map[string]any{
		"email":        "owner@test.com",
		"password":     "TestPassword123!",
		"display_name": "Owner",
	})
	require.Equal(t, http.StatusOK, resp.Code, "Setup failed: %s", resp.Body.String())

	var envelope testEnvelope[AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)

	return envelope.Data.AccessToken
}

// createContainer creates a container through the API and returns its ID.
func (ts *testServer) createContainer(t *testing.T, token string, body map[string]any) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/containers", "Authorization: Bearer "+token, body)
	require.Equal(t, http.StatusOK, resp.Code, "Create failed: %s", resp.Body.String())

	var envelope testEnvelope[ContainerDetailResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.ID)

	return envelope.Data.ID
}
