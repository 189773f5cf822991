package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kubesage/kubesage-backend/internal/auth"
	"github.com/kubesage/kubesage-backend/internal/cmdexec"
	"github.com/kubesage/kubesage-backend/internal/repository"
	"github.com/kubesage/kubesage-backend/internal/service"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// respondServiceError maps typed service errors to HTTP statuses. Not-found
// answers are deliberately generic: a resource owned by someone else looks
// identical to one that does not exist. Command stderr reaches the client
// only through *CommandError, whose text is already redacted.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var cmdErr *cmdexec.CommandError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, service.ErrNoActiveKubeconfig):
		respondError(w, http.StatusNotFound, "NO_ACTIVE_KUBECONFIG", "no active kubeconfig found")
	case errors.Is(err, service.ErrKubeconfigFileMissing):
		respondError(w, http.StatusNotFound, "KUBECONFIG_FILE_MISSING", "active kubeconfig file not found on disk")
	case errors.Is(err, cmdexec.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "COMMAND_TIMEOUT", "external command timed out")
	case errors.As(err, &cmdErr):
		respondError(w, http.StatusInternalServerError, "COMMAND_FAILED", cmdErr.Error())
	case errors.Is(err, auth.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "a required service is unavailable")
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

// principal pulls the authenticated caller off the request context. The auth
// middleware guarantees it is set on protected routes.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authentication")
		return nil, false
	}
	return p, true
}
