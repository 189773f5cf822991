package models

import "time"

// Kubeconfig is an uploaded kubeconfig file plus its metadata record.
// At most one row per user has Active=true; activation is transactional
// (see repository.SetActiveKubeconfig).
type Kubeconfig struct {
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	Filename          string    `json:"filename" db:"filename"` // generated storage name, unique
	OriginalFilename  string    `json:"original_filename" db:"original_filename"`
	Path              string    `json:"path" db:"path"`
	ClusterName       *string   `json:"cluster_name" db:"cluster_name"` // resolved lazily by probing the file
	ContextName       *string   `json:"context_name" db:"context_name"`
	Active            bool      `json:"active" db:"active"`
	OperatorInstalled bool      `json:"operator_installed" db:"operator_installed"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// ClusterName entry returned by GET /kubeconfig/clusters.
type ClusterNameEntry struct {
	Filename          string `json:"filename"`
	ClusterName       string `json:"cluster_name"`
	Active            bool   `json:"active"`
	OperatorInstalled bool   `json:"operator_installed"`
}

// ClusterNameError reports a kubeconfig whose cluster name could not be resolved.
type ClusterNameError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}
