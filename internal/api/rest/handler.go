// Package rest exposes the HTTP surface: kubeconfig lifecycle under
// /kubeconfig and analysis plus backend management under /k8sgpt.
package rest

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubesage/kubesage-backend/internal/api/middleware"
	"github.com/kubesage/kubesage-backend/internal/auth"
	"github.com/kubesage/kubesage-backend/internal/service"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	kubeconfigs *service.KubeconfigService
	analyses    *service.AnalysisService
	backends    *service.BackendService
	log         *slog.Logger
}

func NewHandler(kubeconfigs *service.KubeconfigService, analyses *service.AnalysisService, backends *service.BackendService, log *slog.Logger) *Handler {
	return &Handler{kubeconfigs: kubeconfigs, analyses: analyses, backends: backends, log: log}
}

// SetupRoutes mounts all routes on a new router. /health and /metrics are
// unauthenticated; everything else sits behind the bearer-token middleware.
func (h *Handler) SetupRoutes(validator auth.Validator) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(h.log))
	r.Use(middleware.Recovery(h.log))
	r.Use(middleware.Metrics)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.Auth(validator, h.log))

	kc := api.PathPrefix("/kubeconfig").Subrouter()
	kc.HandleFunc("/upload", h.UploadKubeconfig).Methods(http.MethodPost)
	kc.HandleFunc("/activate/{filename}", h.ActivateKubeconfig).Methods(http.MethodPut)
	kc.HandleFunc("/list", h.ListKubeconfigs).Methods(http.MethodGet)
	kc.HandleFunc("/clusters", h.ListClusters).Methods(http.MethodGet)
	kc.HandleFunc("/remove", h.RemoveKubeconfig).Methods(http.MethodDelete)
	kc.HandleFunc("/install-operator", h.InstallOperator).Methods(http.MethodPost)
	kc.HandleFunc("/namespaces", h.ListNamespaces).Methods(http.MethodGet)

	kg := api.PathPrefix("/k8sgpt").Subrouter()
	kg.HandleFunc("/analyze", h.RunAnalysis).Methods(http.MethodPost)
	kg.HandleFunc("/analysis/{result_id}", h.GetAnalysis).Methods(http.MethodGet)
	kg.HandleFunc("/analyses", h.ListAnalyses).Methods(http.MethodGet)
	kg.HandleFunc("/analyzers", h.ListAnalyzers).Methods(http.MethodGet)
	kg.HandleFunc("/backends", h.UpsertBackend).Methods(http.MethodPost)
	kg.HandleFunc("/backends", h.ListBackends).Methods(http.MethodGet)
	kg.HandleFunc("/backends/{name}", h.GetBackend).Methods(http.MethodGet)
	kg.HandleFunc("/backends/{name}", h.DeleteBackend).Methods(http.MethodDelete)
	kg.HandleFunc("/backends/{name}/default", h.SetDefaultBackend).Methods(http.MethodPut)

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
