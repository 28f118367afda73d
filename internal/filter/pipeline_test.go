package filter

import (
	"regexp"
	"testing"

	"github.com/badalhalder99/vital/internal/domain"
)

func visit(n int, clicks int, pages ...string) domain.SessionRecord {
	return domain.SessionRecord{
		VisitNumber:      n,
		InteractionCount: clicks,
		Detail: domain.SessionDetail{
			ClickCount: clicks,
			Pages:      pages,
		},
	}
}

func TestPipeline_MatchOrder(t *testing.T) {
	pat := regexp.MustCompile("^/docs")
	ex1 := regexp.MustCompile("internal")
	where, err := NewWhereFilter([]string{"clicks>=2"})
	if err != nil {
		t.Fatalf("where build failed: %v", err)
	}
	p := NewPipeline(pat, []*regexp.Regexp{ex1}, where)

	rec := visit(1, 3, "/docs/start")
	if !p.Match(&rec) {
		t.Fatalf("expected visit to match pipeline")
	}

	rec2 := visit(2, 3, "/docs/start", "/docs/internal")
	if p.Match(&rec2) {
		t.Fatalf("expected exclude to drop visit")
	}

	rec3 := visit(3, 1, "/docs/start")
	if p.Match(&rec3) {
		t.Fatalf("expected where to drop low-click visit")
	}

	rec4 := visit(4, 5, "/pricing")
	if p.Match(&rec4) {
		t.Fatalf("expected pattern to drop visit without docs page")
	}
}

func TestPipeline_NilIsAllowAll(t *testing.T) {
	if NewPipeline(nil, nil, nil) != nil {
		t.Fatalf("expected nil pipeline when no filters provided")
	}
	p := NewPipeline(nil, nil, nil)
	rec := visit(1, 0)
	if !p.Match(&rec) {
		t.Fatalf("nil pipeline should allow all")
	}
}

func TestPipeline_Apply(t *testing.T) {
	where, err := NewWhereFilter([]string{"visit>1"})
	if err != nil {
		t.Fatalf("where build failed: %v", err)
	}
	p := NewPipeline(nil, nil, where)

	got := p.Apply([]domain.SessionRecord{visit(1, 0), visit(2, 0), visit(3, 0)})
	if len(got) != 2 || got[0].VisitNumber != 2 || got[1].VisitNumber != 3 {
		t.Fatalf("unexpected apply result: %+v", got)
	}
}
