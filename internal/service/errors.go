package service

import "errors"

var (
	// ErrNoActiveKubeconfig: the caller has no kubeconfig flagged active.
	ErrNoActiveKubeconfig = errors.New("no active kubeconfig found")

	// ErrKubeconfigFileMissing: the active record exists but its backing file
	// vanished from disk. The liveness sweep will deactivate the record.
	ErrKubeconfigFileMissing = errors.New("active kubeconfig file not found on disk")
)
