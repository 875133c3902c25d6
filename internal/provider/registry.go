package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// entry pairs a provider config with its adapter and mutable health cell.
type entry struct {
	cfg     Config
	adapter Adapter
	health  healthCell
}

// Registry is the process-wide provider table. Built once at startup and
// dependency-injected; it is never a package-level singleton.
type Registry struct {
	entries []*entry
	byName  map[string]*entry
}

// Deps carries the family-specific clients the registry needs to build
// adapters. Bedrock is the only family whose SDK client is constructed by the
// caller (credential chain, region); the HTTP families build their own
// clients from Config.
type Deps struct {
	Bedrock *bedrockruntime.Client
}

// NewRegistry builds adapters for every config via a per-family dispatch
// table. Provider names must be unique; unknown families are an error so a
// typo cannot silently produce an unroutable provider.
func NewRegistry(configs []Config, deps Deps) (*Registry, error) {
	r := &Registry{byName: make(map[string]*entry, len(configs))}
	for _, cfg := range configs {
		name := strings.TrimSpace(cfg.Name)
		if name == "" {
			return nil, fmt.Errorf("provider: config with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("provider: duplicate provider %q", name)
		}
		if cfg.TrustTier < TrustDomestic || cfg.TrustTier > TrustPublicOnly {
			return nil, fmt.Errorf("provider: %s has invalid trust tier %d", name, cfg.TrustTier)
		}

		adapter, err := buildAdapter(cfg, deps)
		if err != nil {
			return nil, err
		}

		e := &entry{cfg: cfg, adapter: adapter}
		e.health.store(StatusHealthy)
		r.entries = append(r.entries, e)
		r.byName[name] = e
	}
	if len(r.entries) == 0 {
		return nil, fmt.Errorf("provider: registry requires at least one provider")
	}
	return r, nil
}

func buildAdapter(cfg Config, deps Deps) (Adapter, error) {
	switch cfg.Family {
	case FamilyOpenAI:
		return newOpenAIAdapter(cfg)
	case FamilyBedrock:
		if deps.Bedrock == nil {
			return nil, fmt.Errorf("provider: %s requires a bedrock runtime client", cfg.Name)
		}
		return newBedrockAdapter(deps.Bedrock, cfg.DefaultModel), nil
	case FamilyGemini:
		return newGeminiAdapter(cfg)
	default:
		return nil, fmt.Errorf("provider: %s has unknown family %q", cfg.Name, cfg.Family)
	}
}

// Lookup returns the config and adapter for a provider name.
func (r *Registry) Lookup(name string) (Config, Adapter, bool) {
	e, ok := r.byName[name]
	if !ok {
		return Config{}, nil, false
	}
	return e.cfg, e.adapter, true
}

// Configs returns every provider config in registration order.
func (r *Registry) Configs() []Config {
	out := make([]Config, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.cfg
	}
	return out
}

// Health returns the last probed status for a provider.
func (r *Registry) Health(name string) (Status, bool) {
	e, ok := r.byName[name]
	if !ok {
		return StatusUnhealthy, false
	}
	return e.health.load(), true
}

// SetHealth overrides a provider's status, used to disable a vendor
// operationally without rebuilding the registry.
func (r *Registry) SetHealth(name string, s Status) bool {
	e, ok := r.byName[name]
	if !ok {
		return false
	}
	e.health.store(s)
	return true
}

// NamesWithinTrust returns the providers whose trust tier is at most
// maxTrustTier, ordered by ascending trust tier then registration order. The
// restriction is monotone: the set for a stricter bound is always a subset of
// the set for a looser one.
func (r *Registry) NamesWithinTrust(maxTrustTier int) []string {
	type ranked struct {
		name string
		tier TrustTier
		pos  int
	}
	var list []ranked
	for i, e := range r.entries {
		if int(e.cfg.TrustTier) <= maxTrustTier {
			list = append(list, ranked{name: e.cfg.Name, tier: e.cfg.TrustTier, pos: i})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].tier != list[j].tier {
			return list[i].tier < list[j].tier
		}
		return list[i].pos < list[j].pos
	})
	names := make([]string, len(list))
	for i, rk := range list {
		names[i] = rk.name
	}
	return names
}

// CheckAll probes every provider, stores the result in each health cell, and
// returns the status map. In-flight requests are unaffected: candidate
// selection reads health once, at selection time.
func (r *Registry) CheckAll(ctx context.Context) map[string]Status {
	out := make(map[string]Status, len(r.entries))
	for _, e := range r.entries {
		if e.health.load() == StatusDisabled {
			out[e.cfg.Name] = StatusDisabled
			continue
		}
		s := e.adapter.HealthCheck(ctx)
		e.health.store(s)
		out[e.cfg.Name] = s
	}
	return out
}
