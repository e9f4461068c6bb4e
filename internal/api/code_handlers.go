package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stowawayapp/stowaway-server/internal/store"
)

func (s *Server) registerCodeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "resolveCode",
		Method:      http.MethodGet,
		Path:        "/api/v1/codes/{code}",
		Summary:     "Resolve scan code",
		Description: "Resolves a scanned label code to the container it is printed on",
		Tags:        []string{"Codes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleResolveCode)
}

// ResolveCodeInput contains parameters for resolving a scan code.
type ResolveCodeInput struct {
	Authorization string `header:"Authorization"`
	Code          string `path:"code" doc:"Scanned label code"`
	XForwardedFor string `header:"X-Forwarded-For"`
	XRealIP       string `header:"X-Real-IP"`
}

// handleResolveCode is the scan-to-navigate flow: the mobile client
// scans a QR or DataMatrix label and jumps straight to the container.
// Codes are unique per user, so lookup goes through the composite key.
func (s *Server) handleResolveCode(ctx context.Context, input *ResolveCodeInput) (*ContainerDetailOutput, error) {
	if err := s.checkAuthRateLimit(extractIP(input.XForwardedFor, input.XRealIP)); err != nil {
		return nil, err
	}

	session, err := s.authenticatedSession(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	container, err := s.store.Containers.GetByUniqueIndex(ctx, "code", store.CodeKey(session.UserID(), input.Code))
	if err != nil {
		return nil, huma.Error404NotFound("No container with that code")
	}

	return s.containerDetail(session, container.ID)
}
