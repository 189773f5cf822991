// Package redact provides helpers to avoid exposing secret values in logs or
// API responses.
package redact

import "strings"

const redactedValue = "***REDACTED***"

// secretFlags are CLI flag names whose values must never appear in logs or in
// error text echoed back to clients.
var secretFlags = map[string]bool{
	"--password":   true,
	"--token":      true,
	"--api-key":    true,
	"--apikey":     true,
	"--secret":     true,
	"--access-key": true,
}

// Args returns a copy of argv with values of secret flags replaced. Both
// "--password value" and "--password=value" forms are handled.
func Args(args []string) []string {
	out := make([]string, len(args))
	redactNext := false
	for i, a := range args {
		switch {
		case redactNext:
			out[i] = redactedValue
			redactNext = false
		case secretFlags[a]:
			out[i] = a
			redactNext = true
		case strings.Contains(a, "="):
			name := a[:strings.Index(a, "=")]
			if secretFlags[name] {
				out[i] = name + "=" + redactedValue
			} else {
				out[i] = a
			}
		default:
			out[i] = a
		}
	}
	return out
}

// Text replaces any occurrence of the given secret values in s. Used before
// echoing command stderr back to clients.
func Text(s string, secrets []string) string {
	for _, sec := range secrets {
		if sec == "" {
			continue
		}
		s = strings.ReplaceAll(s, sec, redactedValue)
	}
	return s
}
