package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kubesage/kubesage-backend/internal/models"
)

// upsertBackendRequest is the body of POST /k8sgpt/backends.
type upsertBackendRequest struct {
	Name      string         `json:"backend_name"`
	Config    map[string]any `json:"config"`
	IsDefault bool           `json:"is_default"`
}

// backendResponse exposes the stored config as structured JSON rather than
// the serialized column.
type backendResponse struct {
	Name      string         `json:"backend_name"`
	IsDefault bool           `json:"is_default"`
	Config    map[string]any `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toBackendResponse(b *models.AIBackend) backendResponse {
	var cfg map[string]any
	_ = json.Unmarshal([]byte(b.ConfigJSON), &cfg)
	return backendResponse{
		Name:      b.Name,
		IsDefault: b.IsDefault,
		Config:    cfg,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// UpsertBackend creates or overwrites the named backend configuration.
func (h *Handler) UpsertBackend(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req upsertBackendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "backend_name is required")
		return
	}
	if req.Config == nil {
		req.Config = map[string]any{}
	}

	b, err := h.backends.Upsert(r.Context(), p.ID, req.Name, req.Config, req.IsDefault)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toBackendResponse(b))
}

func (h *Handler) ListBackends(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.backends.List(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]backendResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBackendResponse(b))
	}
	respondJSON(w, http.StatusOK, map[string]any{"backends": out})
}

func (h *Handler) GetBackend(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	b, err := h.backends.Get(r.Context(), p.ID, mux.Vars(r)["name"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toBackendResponse(b))
}

func (h *Handler) DeleteBackend(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]
	if err := h.backends.Delete(r.Context(), p.ID, name); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":      "backend deleted",
		"backend_name": name,
	})
}

func (h *Handler) SetDefaultBackend(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]
	if err := h.backends.SetDefault(r.Context(), p.ID, name); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":      "default backend updated",
		"backend_name": name,
	})
}
