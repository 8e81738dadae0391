package http

import (
	"errors"
	"net/http"

	"expenses/internal/core"
	"expenses/internal/log"
)

// writeError maps a parse or service error to its status and body. Storage
// and unexpected failures are logged; client mistakes are not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(verr).Write(w)
	case errors.Is(err, errBodyTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large").Write(w)
	case errors.Is(err, errMalformedBody):
		BadRequestError("malformed request body").Write(w)
	case errors.Is(err, core.ErrStorageUnavailable):
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Storage unavailable", err,
			log.ErrorTypeDatabase, op, nil)
		InternalServerError("storage unavailable").Write(w)
	default:
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Request failed", err,
			log.ErrorTypeInternal, op, nil)
		InternalServerError("internal error").Write(w)
	}
}
