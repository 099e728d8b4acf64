package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the limit applied to one action.
type Policy struct {
	MaxRequests int
	Window      time.Duration
}

// Table maps action names to their policies. It is static configuration:
// built once at startup and never mutated at runtime.
type Table map[string]Policy

// DefaultTable is the built-in policy table. Actions not listed here are
// allowed without limiting; see Limiter.CheckLimit.
func DefaultTable() Table {
	return Table{
		"chat_message":    {MaxRequests: 40, Window: time.Minute},
		"purchase":        {MaxRequests: 10, Window: time.Minute},
		"clone_create":    {MaxRequests: 3, Window: 5 * time.Minute},
		"login":           {MaxRequests: 5, Window: time.Minute},
		"module_download": {MaxRequests: 20, Window: time.Minute},
		"api_call":        {MaxRequests: 120, Window: time.Minute},
	}
}

// policyFile is the YAML shape for a policy override file:
//
//	chat_message:
//	  max_requests: 40
//	  window: 1m
type policyFile map[string]struct {
	MaxRequests int    `yaml:"max_requests"`
	Window      string `yaml:"window"`
}

// LoadTable reads a policy table from a YAML file. The file replaces the
// default table wholesale so tuning never silently merges with stale
// defaults.
func LoadTable(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse rate policy file: %w", err)
	}

	table := make(Table, len(pf))
	for action, p := range pf {
		if p.MaxRequests <= 0 {
			return nil, fmt.Errorf("rate policy %q: max_requests must be positive", action)
		}
		window, err := time.ParseDuration(p.Window)
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("rate policy %q: invalid window %q", action, p.Window)
		}
		table[action] = Policy{MaxRequests: p.MaxRequests, Window: window}
	}
	return table, nil
}
