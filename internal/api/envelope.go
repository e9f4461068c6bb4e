package api

import (
	"github.com/danielgtaylor/huma/v2"
	domainerrors "github.com/stowawayapp/stowaway-server/internal/errors"
)

// envelopeVersion is bumped whenever the wire shape changes. Clients
// pin against it in their parsing contract tests.
const envelopeVersion = 1

// Envelope is the uniform response wrapper for every JSON endpoint.
type Envelope struct {
	V       int            `json:"v"`
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError carries error details inside an envelope.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps every huma response body in an Envelope.
// Status strings beginning with 4 or 5 produce error envelopes.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		env := Envelope{V: envelopeVersion}

		switch e := v.(type) {
		case *APIError:
			env.Error = &EnvelopeError{
				Code:    e.Code,
				Message: e.Message,
				Details: e.Details,
			}
		case error:
			env.Error = &EnvelopeError{
				Code:    string(domainerrors.CodeInternal),
				Message: e.Error(),
			}
		default:
			env.Error = &EnvelopeError{
				Code:    string(domainerrors.CodeInternal),
				Message: "request failed",
			}
		}

		return env, nil
	}

	return Envelope{V: envelopeVersion, Success: true, Data: v}, nil
}
