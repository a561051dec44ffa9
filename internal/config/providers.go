package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jcom-dev/elevresolve/internal/model"
)

// providerFile is the on-disk shape of the provider list (§3
// ProviderDescriptor). It mirrors model.Provider's tagged-variant fields
// but keeps JSON tags separate from the in-memory type so the wire format
// can evolve without touching Selector code.
type providerFile struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"` // "object_store" | "http_api"
	Priority string `json:"priority_class"`

	Bucket string `json:"bucket,omitempty"`
	Region string `json:"region,omitempty"`
	Signed bool   `json:"signed,omitempty"`

	Endpoint     string  `json:"endpoint,omitempty"`
	AuthToken    string  `json:"auth_token,omitempty"`
	RateLimitRPS float64 `json:"rate_limit_rps,omitempty"`
	DailyQuota   int64   `json:"daily_quota,omitempty"`

	TimeoutMS      int64 `json:"timeout_ms,omitempty"`
	MaxConcurrency int   `json:"max_concurrency,omitempty"`
	BatchLimit     int   `json:"batch_limit,omitempty"`
}

// loadProviders reads the provider list from the file named by
// ELEVRESOLVE_PROVIDERS_PATH (default "providers.json"). A missing file is
// not an error by itself only if the variable was never set and the default
// also doesn't exist — tests and the `index verify` subcommand run without
// a provider list; anything that actually resolves queries needs one.
func (c *Config) loadProviders() error {
	path := getenv("ELEVRESOLVE_PROVIDERS_PATH", "providers.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && os.Getenv("ELEVRESOLVE_PROVIDERS_PATH") == "" {
			c.Providers = nil
			return nil
		}
		return model.NewError(model.KindConfigError, fmt.Sprintf("reading provider list %q", path), err)
	}

	var raw []providerFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.NewError(model.KindConfigError, fmt.Sprintf("parsing provider list %q", path), err)
	}

	providers := make([]model.Provider, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			return model.NewError(model.KindConfigError, "provider entry missing id", nil)
		}
		if seen[r.ID] {
			return model.NewError(model.KindConfigError, fmt.Sprintf("duplicate provider id %q", r.ID), nil)
		}
		seen[r.ID] = true

		p := model.Provider{
			ID:             r.ID,
			Bucket:         r.Bucket,
			Region:         r.Region,
			Signed:         r.Signed,
			Endpoint:       r.Endpoint,
			AuthToken:      r.AuthToken,
			RateLimitRPS:   r.RateLimitRPS,
			DailyQuota:     r.DailyQuota,
			MaxConcurrency: r.MaxConcurrency,
			BatchLimit:     r.BatchLimit,
		}
		if r.TimeoutMS > 0 {
			p.Timeout = time.Duration(r.TimeoutMS) * time.Millisecond
		}

		switch r.Kind {
		case "object_store":
			p.Kind = model.ProviderObjectStore
			if p.Bucket == "" {
				return model.NewError(model.KindConfigError, fmt.Sprintf("provider %q: object_store requires bucket", r.ID), nil)
			}
		case "http_api":
			p.Kind = model.ProviderHTTPAPI
			if p.Endpoint == "" {
				return model.NewError(model.KindConfigError, fmt.Sprintf("provider %q: http_api requires endpoint", r.ID), nil)
			}
		default:
			return model.NewError(model.KindConfigError, fmt.Sprintf("provider %q: unknown kind %q", r.ID, r.Kind), nil)
		}

		switch r.Priority {
		case "high":
			p.Priority = model.PriorityHigh
		case "medium", "":
			p.Priority = model.PriorityMedium
		case "low":
			p.Priority = model.PriorityLow
		default:
			return model.NewError(model.KindConfigError, fmt.Sprintf("provider %q: unknown priority_class %q", r.ID, r.Priority), nil)
		}

		providers = append(providers, p)
	}

	c.Providers = providers
	return nil
}
