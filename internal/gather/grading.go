package gather

import (
	"net/url"
	"strings"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/model"
)

// Grader classifies evidence hosts into reliability grades A-D. Grades are
// ordinal: A is primary/official, D is unattributed commentary.
type Grader struct {
	gradeA  map[string]bool
	gradeB  map[string]bool
	gradeC  map[string]bool
	primary map[string]bool
}

// NewGrader builds a grader from the authority host lists.
func NewGrader(cfg config.Authority) *Grader {
	return &Grader{
		gradeA:  hostSet(cfg.GradeA),
		gradeB:  hostSet(cfg.GradeB),
		gradeC:  hostSet(cfg.GradeC),
		primary: hostSet(cfg.Primary),
	}
}

func hostSet(hosts []string) map[string]bool {
	set := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(h)] = true
	}
	return set
}

// Grade returns the reliability grade for an evidence URL and whether the
// host is a primary/official source whose A-grade evidence can close a
// claim outright.
func (g *Grader) Grade(rawURL string) (model.Grade, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.GradeD, false
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case matchHost(g.gradeA, host):
		return model.GradeA, matchHost(g.primary, host)
	case strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov."):
		// Government hosts not explicitly listed are still official.
		return model.GradeA, true
	case matchHost(g.gradeB, host):
		return model.GradeB, false
	case matchHost(g.gradeC, host):
		return model.GradeC, false
	default:
		return model.GradeD, false
	}
}

// matchHost checks host and parent-domain membership, so news.sec.gov
// matches sec.gov.
func matchHost(set map[string]bool, host string) bool {
	if set[host] {
		return true
	}
	for domain := range set {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
