package models

import "time"

// AIBackend is a per-user named AI backend configuration for k8sgpt.
// At most one row per user has IsDefault=true; the invariant is enforced by
// the same repository primitive as kubeconfig activation.
type AIBackend struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Name       string    `json:"backend_name" db:"name"`
	IsDefault  bool      `json:"is_default" db:"is_default"`
	ConfigJSON string    `json:"-" db:"config_json"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
