// Package session tracks a (user-agent, network-address) fingerprint per
// user and annotates simultaneous changes as possible hijacks. It observes
// and warns; it never denies access.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mssola/useragent"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
	"bulwark/pkg/requestcontext"
)

// FingerprintTTL is how long an idle fingerprint survives before the sweeper
// evicts it.
const FingerprintTTL = 2 * time.Hour

// Observation is the result of a fingerprint check. Valid is implicit and
// always true; Warning is non-empty when both fingerprint components changed
// at once.
type Observation struct {
	Warning string
}

// Fingerprint is the last-seen (user-agent, address) pair for a user.
// Last write wins: this is "where the user was a moment ago", not a device
// inventory.
type Fingerprint struct {
	UserAgent      string
	NetworkAddress string
	LastSeen       time.Time
}

// Validator keeps one fingerprint per active user.
type Validator struct {
	mu     sync.Mutex
	prints map[string]*Fingerprint
	events audit.EventRecorder
}

type Option func(*Validator)

func WithEvents(events audit.EventRecorder) Option {
	return func(v *Validator) { v.events = events }
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{prints: make(map[string]*Fingerprint)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate observes the caller's current user-agent and network address.
//
// The first observation seeds the fingerprint. On later calls, a change to
// only one component is treated as benign (browser update, address rotation)
// and silently absorbed. Both changing at once is the hijack signature: it
// records a medium event and returns a warning, but the caller is still let
// through and the stored fingerprint moves to the new values. For admins the
// warning is suppressed while tracking continues.
func (v *Validator) Validate(ctx context.Context, caller identity.Identity, userAgent, networkAddress string) Observation {
	now := requestcontext.Now(ctx)

	v.mu.Lock()
	prev := v.prints[caller.UserID]
	v.prints[caller.UserID] = &Fingerprint{
		UserAgent:      userAgent,
		NetworkAddress: networkAddress,
		LastSeen:       now,
	}
	v.mu.Unlock()

	if prev == nil {
		return Observation{}
	}

	agentChanged := prev.UserAgent != userAgent
	addressChanged := prev.NetworkAddress != networkAddress
	if !agentChanged || !addressChanged {
		return Observation{}
	}

	if v.events != nil {
		v.events.Record(ctx, audit.SecurityEvent{
			UserID:   caller.UserID,
			Type:     audit.EventFingerprintChanged,
			Severity: audit.SeverityMedium,
			Details: map[string]any{
				"previous_agent":   DescribeAgent(prev.UserAgent),
				"current_agent":    DescribeAgent(userAgent),
				"previous_address": prev.NetworkAddress,
				"current_address":  networkAddress,
			},
		})
	}

	if caller.Admin {
		return Observation{}
	}
	return Observation{
		Warning: fmt.Sprintf("Session context changed: now %s from a new address. If this wasn't you, review your account security.", DescribeAgent(userAgent)),
	}
}

// EvictIdle removes fingerprints with no activity for longer than maxIdle.
// Called by the sweep scheduler.
func (v *Validator) EvictIdle(now time.Time, maxIdle time.Duration) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	evicted := 0
	for userID, fp := range v.prints {
		if now.Sub(fp.LastSeen) > maxIdle {
			delete(v.prints, userID)
			evicted++
		}
	}
	return evicted
}

// Tracked reports whether a fingerprint exists for the user. Test hook.
func (v *Validator) Tracked(userID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.prints[userID]
	return ok
}

// DescribeAgent renders a raw user-agent string as a short human-readable
// label ("Chrome on Linux") for warnings and audit details. Raw user-agent
// strings stay out of the event log.
func DescribeAgent(rawAgent string) string {
	if rawAgent == "" {
		return "Unknown client"
	}
	ua := useragent.New(rawAgent)
	name, _ := ua.Browser()
	os := ua.OSInfo().Name
	switch {
	case name != "" && os != "":
		return name + " on " + os
	case name != "":
		return name
	case os != "":
		return "Unknown client on " + os
	default:
		return "Unknown client"
	}
}
