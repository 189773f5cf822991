package rest

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// maxKubeconfigBytes caps uploaded file size.
const maxKubeconfigBytes = 5 << 20 // 5 MiB

// UploadKubeconfig accepts a multipart "file" field, stores it and returns
// the created record. Uploads never arrive active.
func (h *Handler) UploadKubeconfig(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxKubeconfigBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read uploaded file")
		return
	}
	if len(content) == 0 {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "uploaded file is empty")
		return
	}

	kc, err := h.kubeconfigs.Upload(r.Context(), p.ID, content, header.Filename)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, kc)
}

func (h *Handler) ActivateKubeconfig(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	filename := mux.Vars(r)["filename"]

	if err := h.kubeconfigs.Activate(r.Context(), p.ID, filename); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":  "kubeconfig activated",
		"filename": filename,
	})
}

func (h *Handler) ListKubeconfigs(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	kcs, err := h.kubeconfigs.List(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"kubeconfigs": kcs})
}

// ListClusters returns cluster names per kubeconfig plus per-item probe
// errors. Probe failures never fail the listing.
func (h *Handler) ListClusters(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	names, probeErrs, err := h.kubeconfigs.ClusterNames(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"clusters": names,
		"errors":   probeErrs,
	})
}

func (h *Handler) RemoveKubeconfig(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "query parameter 'filename' is required")
		return
	}

	fileWasMissing, err := h.kubeconfigs.Remove(r.Context(), p.ID, filename)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":          "kubeconfig removed",
		"filename":         filename,
		"file_was_missing": fileWasMissing,
	})
}

func (h *Handler) InstallOperator(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	steps, success, err := h.kubeconfigs.InstallOperator(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"steps":   steps,
		"success": success,
	})
}

func (h *Handler) ListNamespaces(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	namespaces, err := h.kubeconfigs.Namespaces(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"namespaces": namespaces})
}
