// Package inputcheck validates caller-supplied URLs and file paths before
// the platform fetches or reads anything on their behalf. These checks fail
// closed: any parse error or ambiguity is a rejection, and only the explicit
// admin rule bypasses them.
package inputcheck

import (
	"context"
	"net/netip"
	"net/url"
	"strings"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
)

// Result is a validator verdict with a user-displayable reason on rejection.
type Result struct {
	Valid  bool
	Reason string
}

// deniedHosts are hostnames that resolve to instance metadata or other
// internal services regardless of DNS.
var deniedHosts = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
	"metadata.goog":            true,
	"instance-data":            true,
}

// deniedHostSuffixes cover split-horizon internal zones.
var deniedHostSuffixes = []string{".internal", ".local"}

// Checker runs the input validators and records rejections.
type Checker struct {
	events audit.EventRecorder
}

type Option func(*Checker)

func WithEvents(events audit.EventRecorder) Option {
	return func(c *Checker) { c.events = events }
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateExternalURL decides whether a caller-supplied URL may be fetched.
// Only http/https schemes are accepted, and targets inside loopback, private,
// link-local (cloud metadata), or internal-zone address space are rejected.
func (c *Checker) ValidateExternalURL(ctx context.Context, rawURL string, caller identity.Identity) Result {
	if caller.Admin {
		return Result{Valid: true}
	}

	result := checkExternalURL(rawURL)
	if !result.Valid && c.events != nil {
		c.events.Record(ctx, audit.SecurityEvent{
			UserID:   caller.UserID,
			Type:     audit.EventBlockedURL,
			Severity: audit.SeverityHigh,
			Details: map[string]any{
				"url":    rawURL,
				"reason": result.Reason,
			},
		})
	}
	return result
}

func checkExternalURL(rawURL string) Result {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Result{Reason: "Invalid URL"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Result{Reason: "URL scheme not allowed"}
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return Result{Reason: "Invalid URL"}
	}

	if deniedHosts[host] {
		return Result{Reason: "URL targets a restricted address"}
	}
	for _, suffix := range deniedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return Result{Reason: "URL targets a restricted address"}
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if restrictedAddr(addr) {
			return Result{Reason: "URL targets a restricted address"}
		}
	}

	return Result{Valid: true}
}

// restrictedAddr reports whether an IP literal points at address space the
// platform must never fetch from on a user's behalf: loopback, RFC1918
// private ranges, link-local (which includes the 169.254.169.254 cloud
// metadata endpoint), and unspecified/broadcast addresses.
func restrictedAddr(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified() ||
		addr.IsMulticast()
}
