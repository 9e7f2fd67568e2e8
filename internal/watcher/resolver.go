package watcher

import (
	"fmt"
	"regexp"
	"strings"

	"siteguard/internal/dao"
)

// SiteResolver derives a site id from a video file name.
type SiteResolver interface {
	Resolve(filename string) (dao.SiteAssignment, bool)
}

var (
	siteNumberPattern  = regexp.MustCompile(`site[_-]?(\d+)`)
	genericSitePattern = regexp.MustCompile(`site[_-]?([a-z0-9]+)`)
)

// SiteNumberRule maps "site_7", "SITE-007" or "site12" to SITE_007 style ids.
type SiteNumberRule struct{}

func (SiteNumberRule) Resolve(filename string) (dao.SiteAssignment, bool) {
	m := siteNumberPattern.FindStringSubmatch(strings.ToLower(filename))
	if m == nil {
		return dao.SiteAssignment{}, false
	}
	num := m[1]
	if len(num) < 3 {
		num = strings.Repeat("0", 3-len(num)) + num
	}
	return dao.SiteAssignment{SiteId: "SITE_" + num, Rule: "site_number"}, true
}

// GenericSiteRule maps a non numeric tag such as "site-north" to SITE_NORTH.
type GenericSiteRule struct{}

func (GenericSiteRule) Resolve(filename string) (dao.SiteAssignment, bool) {
	m := genericSitePattern.FindStringSubmatch(strings.ToLower(filename))
	if m == nil {
		return dao.SiteAssignment{}, false
	}
	return dao.SiteAssignment{SiteId: "SITE_" + strings.ToUpper(m[1]), Rule: "generic_site"}, true
}

// RoundRobin spreads unrecognised files over Sites sites by the number of files processed so far.
// Its assignments are flagged as a fallback.
type RoundRobin struct {
	Sites int
	Count func() int
}

func (r RoundRobin) Resolve(filename string) (dao.SiteAssignment, bool) {
	sites := max(r.Sites, 1)
	n := 0
	if r.Count != nil {
		n = r.Count()
	}
	return dao.SiteAssignment{
		SiteId:   fmt.Sprintf("SITE_%03d", n%sites+1),
		Rule:     "round_robin",
		Fallback: true,
	}, true
}

// Chain tries each resolver in order.
type Chain []SiteResolver

func (c Chain) Resolve(filename string) (dao.SiteAssignment, bool) {
	for _, r := range c {
		if a, ok := r.Resolve(filename); ok {
			return a, true
		}
	}
	return dao.SiteAssignment{}, false
}
