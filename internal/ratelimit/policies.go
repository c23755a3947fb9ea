package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// KeyType names what the identifier of a check is.
type KeyType string

const (
	KeyIP     KeyType = "ip"
	KeyAgent  KeyType = "agent"
	KeyAPIKey KeyType = "api_key"
)

// Actions with a default policy.
const (
	ActionRegister      = "register"
	ActionAuthFailure   = "auth_failure"
	ActionSwipe         = "swipe"
	ActionMessage       = "message"
	ActionAPIGeneral    = "api_general"
	ActionAPIUnauth     = "api_unauth"
	ActionProfileUpdate = "profile_update"
)

// Policy is max events per sliding window.
type Policy struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
	Key    KeyType       `yaml:"key"`
}

// Policies maps action name to policy.
type Policies map[string]Policy

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() Policies {
	return Policies{
		ActionRegister:      {Max: 10, Window: time.Hour, Key: KeyIP},
		ActionAuthFailure:   {Max: 20, Window: 15 * time.Minute, Key: KeyIP},
		ActionSwipe:         {Max: 200, Window: time.Hour, Key: KeyAgent},
		ActionMessage:       {Max: 100, Window: time.Hour, Key: KeyAgent},
		ActionAPIGeneral:    {Max: 300, Window: time.Minute, Key: KeyAPIKey},
		ActionAPIUnauth:     {Max: 300, Window: time.Minute, Key: KeyIP},
		ActionProfileUpdate: {Max: 20, Window: time.Hour, Key: KeyAgent},
	}
}

// LongestWindow returns the largest window across all policies.
func (p Policies) LongestWindow() time.Duration {
	var longest time.Duration
	for _, pol := range p {
		if pol.Window > longest {
			longest = pol.Window
		}
	}
	return longest
}

type policyFile struct {
	Policies map[string]Policy `yaml:"policies"`
}

// LoadPolicies reads a YAML overlay and applies it on top of the defaults.
// An empty path returns the defaults.
//
//	policies:
//	  swipe: {max: 50, window: 30m, key: agent}
func LoadPolicies(path string) (Policies, error) {
	policies := DefaultPolicies()
	if path == "" {
		return policies, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit policies: %w", err)
	}

	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rate limit policies: %w", err)
	}

	for action, override := range f.Policies {
		base := policies[action]
		if override.Max > 0 {
			base.Max = override.Max
		}
		if override.Window > 0 {
			base.Window = override.Window
		}
		if override.Key != "" {
			base.Key = override.Key
		}
		if base.Max <= 0 || base.Window <= 0 {
			return nil, fmt.Errorf("rate limit policy %q needs max and window", action)
		}
		if base.Key == "" {
			base.Key = KeyIP
		}
		policies[action] = base
	}
	return policies, nil
}
