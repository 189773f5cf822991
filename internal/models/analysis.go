package models

import "time"

// AnalysisResult is one stored k8sgpt run. Rows are immutable: created once,
// then only read. ResultJSON and Parameters hold serialized JSON as produced
// at execution time.
type AnalysisResult struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	ClusterName string    `json:"cluster_name" db:"cluster_name"`
	Namespace   *string   `json:"namespace" db:"namespace"`
	ResultID    string    `json:"result_id" db:"result_id"` // opaque external-facing identifier
	ResultJSON  string    `json:"result_json" db:"result_json"`
	Parameters  string    `json:"parameters" db:"parameters"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// AnalysisItem is one finding extracted from a k8sgpt result payload.
type AnalysisItem struct {
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
