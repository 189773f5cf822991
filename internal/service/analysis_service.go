package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kubesage/kubesage-backend/internal/cache"
	"github.com/kubesage/kubesage-backend/internal/cmdexec"
	"github.com/kubesage/kubesage-backend/internal/config"
	"github.com/kubesage/kubesage-backend/internal/models"
)

// Defaults that k8sgpt already applies on its own; the matching flag is only
// emitted when the request deviates.
const (
	defaultLanguage       = "english"
	defaultMaxConcurrency = 10
)

// AnalysisRequest carries the caller's k8sgpt analyze options. Every field is
// optional; the zero value runs a plain cluster-wide analysis.
type AnalysisRequest struct {
	Backend        string   `json:"backend,omitempty"`
	CustomAnalysis bool     `json:"custom_analysis,omitempty"`
	CustomHeaders  []string `json:"custom_headers,omitempty"`
	Explain        bool     `json:"explain,omitempty"`
	Filter         []string `json:"filter,omitempty"`
	Interactive    bool     `json:"interactive,omitempty"`
	Language       string   `json:"language,omitempty"`
	MaxConcurrency int      `json:"max_concurrency,omitempty"`
	Namespace      string   `json:"namespace,omitempty"`
	NoCache        bool     `json:"no_cache,omitempty"`
	Selector       string   `json:"selector,omitempty"`
	WithDoc        bool     `json:"with_doc,omitempty"`
}

// AnalysisService runs k8sgpt against the caller's active cluster and keeps
// the immutable result history.
type AnalysisService struct {
	kubeconfigs *KubeconfigService
	results     *cache.ResultCache
	exec        *cmdexec.Executor
	cfg         *config.Config
	log         *slog.Logger
}

func NewAnalysisService(kubeconfigs *KubeconfigService, results *cache.ResultCache, exec *cmdexec.Executor, cfg *config.Config, log *slog.Logger) *AnalysisService {
	return &AnalysisService{kubeconfigs: kubeconfigs, results: results, exec: exec, cfg: cfg, log: log}
}

// Run executes one analysis against the active cluster and stores the result
// under a fresh result_id. The output format is forced to JSON regardless of
// the request so stored payloads stay machine-readable.
func (s *AnalysisService) Run(ctx context.Context, userID string, req AnalysisRequest) (*models.AnalysisResult, error) {
	kc, err := s.kubeconfigs.activePath(ctx, userID)
	if err != nil {
		return nil, err
	}

	cmd := s.buildAnalyzeCommand(req, kc.Path)
	out, err := s.exec.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}

	params, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize analysis parameters: %w", err)
	}

	clusterName := "unknown"
	if kc.ClusterName != nil && *kc.ClusterName != "" {
		clusterName = *kc.ClusterName
	}
	var namespace *string
	if req.Namespace != "" {
		namespace = &req.Namespace
	}

	ar := &models.AnalysisResult{
		UserID:      userID,
		ClusterName: clusterName,
		Namespace:   namespace,
		ResultID:    uuid.New().String(),
		ResultJSON:  string(out.Payload()),
		Parameters:  string(params),
	}
	if err := s.results.Store(ctx, ar); err != nil {
		return nil, fmt.Errorf("failed to store analysis result: %w", err)
	}

	s.log.Info("analysis completed", "user_id", userID, "result_id", ar.ResultID, "cluster", clusterName)
	return ar, nil
}

// Get retrieves one stored result, fast tier first.
func (s *AnalysisService) Get(ctx context.Context, userID, resultID string) (*models.AnalysisResult, error) {
	return s.results.Fetch(ctx, userID, resultID)
}

// List returns the caller's result history, newest first.
func (s *AnalysisService) List(ctx context.Context, userID string, limit, offset int) ([]*models.AnalysisResult, error) {
	return s.results.List(ctx, userID, limit, offset)
}

// Analyzers lists the analyzer filters the installed k8sgpt build supports.
func (s *AnalysisService) Analyzers(ctx context.Context, userID string) ([]string, error) {
	kc, err := s.kubeconfigs.activePath(ctx, userID)
	if err != nil {
		return nil, err
	}

	cmd := cmdexec.New(s.cfg.K8sgptBin).
		Arg("filters").Arg("list").
		Flag("--kubeconfig", kc.Path)
	out, err := s.exec.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}

	var analyzers []string
	for _, line := range strings.Split(out.Stdout, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), ">"))
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		analyzers = append(analyzers, line)
	}
	return analyzers, nil
}

// Items extracts structured findings from a stored result. Payloads that are
// not a JSON array of findings yield an empty slice, never an error; the raw
// payload is always available alongside.
func (s *AnalysisService) Items(ar *models.AnalysisResult) []models.AnalysisItem {
	var raw []struct {
		Name        string  `json:"name"`
		Kind        string  `json:"kind"`
		Namespace   string  `json:"namespace"`
		Status      string  `json:"status"`
		Severity    string  `json:"severity"`
		Message     string  `json:"message"`
		Hint        *string `json:"hint"`
		Explanation *string `json:"explanation"`
		Docs        *string `json:"docs"`
	}
	if err := json.Unmarshal([]byte(ar.ResultJSON), &raw); err != nil {
		return nil
	}
	items := make([]models.AnalysisItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, models.AnalysisItem{
			Name:        r.Name,
			Kind:        r.Kind,
			Namespace:   r.Namespace,
			Status:      r.Status,
			Severity:    r.Severity,
			Message:     r.Message,
			Hint:        r.Hint,
			Explanation: r.Explanation,
			Docs:        r.Docs,
		})
	}
	return items
}

// buildAnalyzeCommand maps request fields to k8sgpt analyze flags. Values
// travel as single argv tokens; --output json and --kubeconfig are always
// appended last and cannot be overridden by the request.
func (s *AnalysisService) buildAnalyzeCommand(req AnalysisRequest, kubeconfigPath string) *cmdexec.Command {
	cmd := cmdexec.New(s.cfg.K8sgptBin).Arg("analyze")

	if req.Backend != "" {
		cmd.Flag("--backend", req.Backend)
	}
	if req.CustomAnalysis {
		cmd.BoolFlag("--custom-analysis")
	}
	for _, h := range req.CustomHeaders {
		cmd.Flag("--custom-headers", h)
	}
	if req.Explain {
		cmd.BoolFlag("--explain")
	}
	for _, f := range req.Filter {
		cmd.Flag("--filter", f)
	}
	if req.Interactive {
		cmd.BoolFlag("--interactive")
	}
	if req.Language != "" && req.Language != defaultLanguage {
		cmd.Flag("--language", req.Language)
	}
	if req.MaxConcurrency > 0 && req.MaxConcurrency != defaultMaxConcurrency {
		cmd.Flag("--max-concurrency", strconv.Itoa(req.MaxConcurrency))
	}
	if req.Namespace != "" {
		cmd.Flag("--namespace", req.Namespace)
	}
	if req.NoCache {
		cmd.BoolFlag("--no-cache")
	}
	if req.Selector != "" {
		cmd.Flag("--selector", req.Selector)
	}
	if req.WithDoc {
		cmd.BoolFlag("--with-doc")
	}

	cmd.Flag("--output", "json")
	cmd.Flag("--kubeconfig", kubeconfigPath)
	return cmd
}
