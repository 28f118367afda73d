package filter

import (
	"regexp"

	"github.com/samber/lo"

	"github.com/badalhalder99/vital/internal/domain"
)

// Pipeline combines a page pattern, page exclusions and where clauses
type Pipeline struct {
	pattern  *regexp.Regexp
	excludes []*regexp.Regexp
	where    *WhereFilter
}

// NewPipeline returns nil when no filter is configured
func NewPipeline(pattern *regexp.Regexp, excludes []*regexp.Regexp, where *WhereFilter) *Pipeline {
	if pattern == nil && len(excludes) == 0 && where == nil {
		return nil
	}
	return &Pipeline{pattern: pattern, excludes: excludes, where: where}
}

// Match applies the pattern, then excludes, then where clauses.
// A nil pipeline matches everything.
func (p *Pipeline) Match(rec *domain.SessionRecord) bool {
	if p == nil {
		return true
	}
	pages := rec.Detail.Pages
	if p.pattern != nil && !lo.SomeBy(pages, p.pattern.MatchString) {
		return false
	}
	for _, ex := range p.excludes {
		if lo.SomeBy(pages, ex.MatchString) {
			return false
		}
	}
	return p.where.Match(rec)
}

// Apply returns the visits that match, preserving order
func (p *Pipeline) Apply(recs []domain.SessionRecord) []domain.SessionRecord {
	return lo.Filter(recs, func(r domain.SessionRecord, _ int) bool {
		return p.Match(&r)
	})
}
