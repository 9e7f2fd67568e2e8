package site

import (
	"fmt"
	"strconv"
	"strings"

	"siteguard/internal/config"
)

// Registry holds the configured sites in configuration order.
type Registry struct {
	sites []config.SiteConfig
	byId  map[string]int
}

func NewRegistry(sites []config.SiteConfig) *Registry {
	r := &Registry{
		sites: sites,
		byId:  make(map[string]int, len(sites)),
	}
	for i, s := range sites {
		r.byId[strings.ToUpper(s.Id)] = i
	}
	return r
}

// Canonical turns "1", "site_1" or "Site-001" into SITE_001. Other ids are upper cased.
func Canonical(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	num := strings.TrimLeft(strings.TrimPrefix(strings.TrimPrefix(id, "SITE"), "_"), "-")
	if n, err := strconv.Atoi(num); err == nil && n >= 0 && num != "" {
		return fmt.Sprintf("SITE_%03d", n)
	}
	return id
}

func (r *Registry) Lookup(id string) (config.SiteConfig, bool) {
	if i, ok := r.byId[strings.ToUpper(id)]; ok {
		return r.sites[i], true
	}
	if i, ok := r.byId[Canonical(id)]; ok {
		return r.sites[i], true
	}
	return config.SiteConfig{}, false
}

func (r *Registry) Sites() []config.SiteConfig {
	return r.sites
}

func (r *Registry) Ids() []string {
	ids := make([]string, 0, len(r.sites))
	for _, s := range r.sites {
		ids = append(ids, s.Id)
	}
	return ids
}
