package inputcheck

import (
	"context"
	"strings"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
)

// deniedPathFragments is the fixed deny-list of sensitive path fragments,
// matched case-insensitively as substrings: credential files, SSH material,
// process/sys pseudo-filesystems, VCS config, and build caches.
var deniedPathFragments = []string{
	".env",
	".ssh",
	"id_rsa",
	"id_ed25519",
	"authorized_keys",
	".aws",
	".kube",
	".npmrc",
	".netrc",
	"credentials",
	"/etc/passwd",
	"/etc/shadow",
	"/proc/",
	"/sys/",
	".git/",
	".gitconfig",
	"node_modules",
	".cache",
}

// ValidateFilePath decides whether a caller-supplied path may be read or
// written. Parent-directory and home-relative segments are rejected outright;
// so is anything touching the sensitive-fragment deny list.
func (c *Checker) ValidateFilePath(ctx context.Context, path string, caller identity.Identity) Result {
	if caller.Admin {
		return Result{Valid: true}
	}

	result := checkFilePath(path)
	if !result.Valid && c.events != nil {
		c.events.Record(ctx, audit.SecurityEvent{
			UserID:   caller.UserID,
			Type:     audit.EventBlockedPath,
			Severity: audit.SeverityHigh,
			Details: map[string]any{
				"path":   path,
				"reason": result.Reason,
			},
		})
	}
	return result
}

func checkFilePath(path string) Result {
	if path == "" {
		return Result{Reason: "Invalid file path"}
	}
	if strings.Contains(path, "..") {
		return Result{Reason: "Path traversal not allowed"}
	}
	if strings.Contains(path, "~") {
		return Result{Reason: "Path traversal not allowed"}
	}

	lower := strings.ToLower(path)
	for _, fragment := range deniedPathFragments {
		if strings.Contains(lower, fragment) {
			return Result{Reason: "Path references a restricted location"}
		}
	}
	return Result{Valid: true}
}
