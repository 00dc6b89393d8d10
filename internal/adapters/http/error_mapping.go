package httpadapter

import (
	"net/http"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrRejectedInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrConfiguration),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrGenerationFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps upstream detail out of responses. Rejections are
// user-correctable and keep their message; everything else gets a fixed
// phrase while the full chain goes to the log.
func publicErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrRejectedInput):
		return err.Error()
	case domain.IsKind(err, domain.ErrConfiguration):
		return "provider is not configured"
	case domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return "retrieval backend is unavailable"
	case domain.IsKind(err, domain.ErrGenerationFailure):
		return "generation provider failed"
	default:
		return "internal error"
	}
}

func (rt *Router) writeError(w http.ResponseWriter, endpoint string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusBadRequest && rt.metrics != nil {
		rt.metrics.RecordGuardRejection(serviceName, endpoint)
	}
	writeJSON(w, status, map[string]string{"error": publicErrorMessage(err)})
}
