package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stowawayapp/stowaway-server/internal/cache"
)

// authenticateRequest validates the Authorization header and returns the user ID.
func (s *Server) authenticateRequest(_ context.Context, authHeader string) (string, error) {
	if authHeader == "" {
		return "", huma.Error401Unauthorized("Missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", huma.Error401Unauthorized("Invalid authorization header format")
	}

	claims, err := s.authService.VerifyAccessToken(parts[1])
	if err != nil {
		return "", huma.Error401Unauthorized("Invalid or expired token")
	}

	return claims.UserID, nil
}

// authenticatedSession authenticates the request and returns the user's
// live cache session. Every read endpoint serves from this session;
// every mutation goes through its Mutator.
func (s *Server) authenticatedSession(ctx context.Context, authHeader string) (*cache.Session, error) {
	userID, err := s.authenticateRequest(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Session(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to open session", err)
	}

	return session, nil
}

// extractIP picks the client IP from proxy headers, preferring
// X-Forwarded-For's first hop.
func extractIP(xForwardedFor, xRealIP string) string {
	if xForwardedFor != "" {
		if i := strings.IndexByte(xForwardedFor, ','); i >= 0 {
			return strings.TrimSpace(xForwardedFor[:i])
		}
		return strings.TrimSpace(xForwardedFor)
	}
	return xRealIP
}

// checkAuthRateLimit throttles credential-guessing endpoints per client address.
func (s *Server) checkAuthRateLimit(key string) error {
	if key == "" {
		key = "unknown"
	}
	if !s.authLimiter.Allow(key) {
		s.logger.Warn("rate limit exceeded", "ip", key)
		return huma.NewError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
	}
	return nil
}
