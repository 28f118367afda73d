package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/badalhalder99/vital/internal/domain"
)

// WhereClause represents a parsed --where condition over closed visits
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	regex    *regexp.Regexp // Compiled regex for ~ and !~ operators
	number   float64        // Parsed value for numeric comparisons
	numeric  bool
}

var numericFields = map[string]bool{
	"visit":        true,
	"clicks":       true,
	"moves":        true,
	"scrolls":      true,
	"interactions": true,
	"duration_ms":  true,
	"pages":        true,
}

// ParseWhereClause parses a where clause like "clicks>=3" or "page~^/pricing"
// Supported operators: =, !=, ~, !~, >=, <=, >, <, ^, $
func ParseWhereClause(clause string) (*WhereClause, error) {
	// Try operators in order of length (longest first to avoid partial matches)
	operators := []string{"!~", ">=", "<=", "!=", ">", "<", "~", "=", "^", "$"}

	for _, op := range operators {
		idx := strings.Index(clause, op)
		if idx > 0 {
			field := strings.ToLower(strings.TrimSpace(clause[:idx]))
			value := strings.TrimSpace(clause[idx+len(op):])

			if field == "" || value == "" {
				return nil, fmt.Errorf("invalid where clause: %s", clause)
			}
			if field != "page" && !numericFields[field] {
				return nil, fmt.Errorf("unknown field %q in where clause (use page, visit, clicks, moves, scrolls, interactions, pages, duration_ms)", field)
			}

			wc := &WhereClause{
				Field:    field,
				Operator: op,
				Value:    value,
			}

			if op == "~" || op == "!~" {
				re, err := regexp.Compile(value)
				if err != nil {
					return nil, fmt.Errorf("invalid regex in where clause '%s': %w", clause, err)
				}
				wc.regex = re
			}

			if numericFields[field] {
				n, err := strconv.ParseFloat(value, 64)
				if err != nil && op != "~" && op != "!~" && op != "^" && op != "$" {
					return nil, fmt.Errorf("field %s needs a number in where clause '%s'", field, clause)
				}
				wc.number = n
				wc.numeric = err == nil
			}

			return wc, nil
		}
	}

	return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, ~, !~, >=, <=, >, <, ^, $)", clause)
}

// Match checks if a closed visit matches this where clause
func (wc *WhereClause) Match(rec *domain.SessionRecord) bool {
	if wc.Field == "page" {
		return wc.matchPages(rec.Detail.Pages)
	}

	value := wc.numericValue(rec)
	switch wc.Operator {
	case "=":
		return wc.numeric && value == wc.number
	case "!=":
		return !wc.numeric || value != wc.number
	case ">=":
		return value >= wc.number
	case "<=":
		return value <= wc.number
	case ">":
		return value > wc.number
	case "<":
		return value < wc.number
	}
	return wc.matchString(strconv.FormatFloat(value, 'f', -1, 64))
}

// matchPages applies positive operators to any page and negative ones to all
func (wc *WhereClause) matchPages(pages []string) bool {
	switch wc.Operator {
	case "!=", "!~":
		return lo.EveryBy(pages, wc.matchString)
	default:
		return lo.SomeBy(pages, wc.matchString)
	}
}

func (wc *WhereClause) matchString(fieldValue string) bool {
	switch wc.Operator {
	case "=":
		return fieldValue == wc.Value
	case "!=":
		return fieldValue != wc.Value
	case "~": // Contains (regex)
		return wc.regex.MatchString(fieldValue)
	case "!~": // Not contains (regex)
		return !wc.regex.MatchString(fieldValue)
	case "^": // Starts with
		return strings.HasPrefix(fieldValue, wc.Value)
	case "$": // Ends with
		return strings.HasSuffix(fieldValue, wc.Value)
	}
	return false
}

func (wc *WhereClause) numericValue(rec *domain.SessionRecord) float64 {
	switch wc.Field {
	case "visit":
		return float64(rec.VisitNumber)
	case "clicks":
		return float64(rec.Detail.ClickCount)
	case "moves":
		return float64(rec.Detail.MoveCount)
	case "scrolls":
		return float64(rec.Detail.ScrollCount)
	case "interactions":
		return float64(rec.InteractionCount)
	case "pages":
		return float64(len(rec.Detail.Pages))
	case "duration_ms":
		return float64(rec.Detail.DurationMs)
	default:
		return 0
	}
}

// WhereFilter is a filter that applies multiple where clauses (AND logic)
type WhereFilter struct {
	clauses []*WhereClause
}

// NewWhereFilter creates a filter from multiple where clause strings
func NewWhereFilter(whereClauses []string) (*WhereFilter, error) {
	if len(whereClauses) == 0 {
		return nil, nil
	}

	filter := &WhereFilter{}
	for _, clause := range whereClauses {
		wc, err := ParseWhereClause(clause)
		if err != nil {
			return nil, err
		}
		filter.clauses = append(filter.clauses, wc)
	}

	return filter, nil
}

// Match returns true if the visit matches ALL where clauses (AND logic)
func (f *WhereFilter) Match(rec *domain.SessionRecord) bool {
	if f == nil {
		return true
	}
	for _, clause := range f.clauses {
		if !clause.Match(rec) {
			return false
		}
	}
	return true
}
