package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kubesage/kubesage-backend/internal/models"
	"github.com/kubesage/kubesage-backend/internal/service"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// analysisResponse is the wire shape of one analysis: structured findings
// plus the echoed request parameters.
type analysisResponse struct {
	ResultID    string                `json:"result_id"`
	ClusterName string                `json:"cluster_name"`
	Namespace   *string               `json:"namespace"`
	Items       []models.AnalysisItem `json:"items"`
	Raw         json.RawMessage       `json:"raw"`
	Parameters  json.RawMessage       `json:"parameters"`
	CreatedAt   time.Time             `json:"created_at"`
}

func (h *Handler) toAnalysisResponse(ar *models.AnalysisResult) analysisResponse {
	items := h.analyses.Items(ar)
	if items == nil {
		items = []models.AnalysisItem{}
	}
	return analysisResponse{
		ResultID:    ar.ResultID,
		ClusterName: ar.ClusterName,
		Namespace:   ar.Namespace,
		Items:       items,
		Raw:         json.RawMessage(ar.ResultJSON),
		Parameters:  json.RawMessage(ar.Parameters),
		CreatedAt:   ar.CreatedAt,
	}
}

// RunAnalysis executes k8sgpt against the caller's active cluster.
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req service.AnalysisRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
			return
		}
	}

	ar, err := h.analyses.Run(r.Context(), p.ID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toAnalysisResponse(ar))
}

func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	resultID := mux.Vars(r)["result_id"]

	ar, err := h.analyses.Get(r.Context(), p.ID, resultID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toAnalysisResponse(ar))
}

// analysisSummary is the listing shape: metadata only, no payload.
type analysisSummary struct {
	ResultID    string    `json:"result_id"`
	ClusterName string    `json:"cluster_name"`
	Namespace   *string   `json:"namespace"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	list, err := h.analyses.List(r.Context(), p.ID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	summaries := make([]analysisSummary, 0, len(list))
	for _, ar := range list {
		summaries = append(summaries, analysisSummary{
			ResultID:    ar.ResultID,
			ClusterName: ar.ClusterName,
			Namespace:   ar.Namespace,
			CreatedAt:   ar.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results": summaries,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *Handler) ListAnalyzers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	analyzers, err := h.analyses.Analyzers(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if analyzers == nil {
		analyzers = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"analyzers": analyzers})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
