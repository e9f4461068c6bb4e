package api

import (
	"encoding/json/v2"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_CreatesFirstUserAndReturnsTokens(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/setup", map[string]any{
		"email":        "owner@test.com",
		"password":     "TestPassword123!",
		"display_name": "Owner",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.True(t, envelope.Success)
	assert.Equal(t, 1, envelope.V)
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.NotEmpty(t, envelope.Data.RefreshToken)
	assert.Equal(t, "Bearer", envelope.Data.TokenType)
	assert.Equal(t, "owner@test.com", envelope.Data.User.Email)
	assert.Equal(t, "Owner", envelope.Data.User.DisplayName)
}

func TestSetup_SecondCallRejected(t *testing.T) {
	ts := setupTestServer(t)
	ts.createTestUser(t)

	resp := ts.api.Post("/api/v1/auth/setup", map[string]any{
		"email":        "second@test.com",
		"password":     "TestPassword123!",
		"display_name": "Second",
	})
	assert.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
}

func TestLogin_WrongPasswordUnauthorized(t *testing.T) {
	ts := setupTestServer(t)
	ts.createTestUser(t)

	resp := ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "owner@test.com",
		"password": "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.Code, resp.Body.String())

	var envelope testEnvelope[struct{}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.False(t, envelope.Success)
	assert.Equal(t, "INVALID_CREDENTIALS", envelope.Error.Code)
}

func TestRegister_CreatesSecondUser(t *testing.T) {
	ts := setupTestServer(t)
	ts.createTestUser(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":        "second@test.com",
		"password":     "TestPassword123!",
		"display_name": "Second",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "second@test.com", envelope.Data.User.Email)
}

func TestGetCurrentUser_ReturnsProfile(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.createTestUser(t)

	resp := ts.api.Get("/api/v1/users/me", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[UserResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "owner@test.com", envelope.Data.Email)
}

func TestGetCurrentUser_MissingTokenUnauthorized(t *testing.T) {
	ts := setupTestServer(t)
	ts.createTestUser(t)

	resp := ts.api.Get("/api/v1/users/me")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRefresh_RotatesTokenPair(t *testing.T) {
	ts := setupTestServer(t)

	setupResp := ts.api.Post("/api/v1/auth/setup", map[string]any{
		"email":        "owner@test.com",
		"password":     "TestPassword123!",
		"display_name": "Owner",
	})
	require.Equal(t, http.StatusOK, setupResp.Code)

	var setupEnvelope testEnvelope[AuthResponse]
	require.NoError(t, json.Unmarshal(setupResp.Body.Bytes(), &setupEnvelope))

	resp := ts.api.Post("/api/v1/auth/refresh", map[string]any{
		"refresh_token": setupEnvelope.Data.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.RefreshToken)
	assert.NotEqual(t, setupEnvelope.Data.RefreshToken, envelope.Data.RefreshToken)

	// The consumed refresh token no longer works.
	replay := ts.api.Post("/api/v1/auth/refresh", map[string]any{
		"refresh_token": setupEnvelope.Data.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, replay.Code, replay.Body.String())
}
