package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"

	"github.com/badalhalder99/vital/internal/domain"
	"github.com/badalhalder99/vital/internal/store"
)

// DatabaseName maps a tenant to its logical database. Records without a
// tenant go to "main".
func DatabaseName(tenantID string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "main"
	}
	return "tenant_" + tenantID
}

// ErrInvalidTenant is returned for tenant ids outside [A-Za-z0-9_-]
var ErrInvalidTenant = errors.New("invalid tenant id")

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// tenantDatabase is DatabaseName for ids that are safe to embed in a key
func tenantDatabase(tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID != "" && !tenantIDPattern.MatchString(tenantID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}
	return DatabaseName(tenantID), nil
}

const (
	keyNamespace = "heatmap:"
	recordKind   = ":guest_visit:"
)

func recordPrefix(db string) string {
	return keyNamespace + db + recordKind
}

// databaseOf extracts the database name from a record key
func databaseOf(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, keyNamespace)
	if !ok {
		return "", false
	}
	db, _, ok := strings.Cut(rest, recordKind)
	if !ok || (db != "main" && !strings.HasPrefix(db, "tenant_")) {
		return "", false
	}
	return db, true
}

// DatabaseCount is the number of records held by one database
type DatabaseCount struct {
	Database string `json:"database"`
	Count    int    `json:"count"`
}

// Repository stores guest visit records in a key-value store, one key per
// record, namespaced by tenant database
type Repository struct {
	store   store.Store
	entropy io.Reader
}

// NewRepository creates a Repository over st
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st, entropy: ulid.DefaultEntropy()}
}

// SaveGuestVisit stores v and returns its key. The record key embeds a ULID
// so keys sort by arrival time.
func (r *Repository) SaveGuestVisit(ctx context.Context, v domain.GuestVisit) (string, error) {
	id, err := ulid.New(ulid.Timestamp(v.Timestamp), r.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate record id: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode guest visit: %w", err)
	}
	db, err := tenantDatabase(v.TenantID)
	if err != nil {
		return "", err
	}
	key := recordPrefix(db) + id.String()
	if err := r.store.Set(ctx, key, string(b)); err != nil {
		return "", fmt.Errorf("failed to save guest visit: %w", err)
	}
	return key, nil
}

// GuestVisits returns a tenant's records received within [from, to].
// Zero bounds are open.
func (r *Repository) GuestVisits(ctx context.Context, tenantID string, from, to time.Time) ([]domain.GuestVisit, error) {
	db, err := tenantDatabase(tenantID)
	if err != nil {
		return nil, err
	}
	keys, err := r.store.Keys(ctx, recordPrefix(db))
	if err != nil {
		return nil, fmt.Errorf("failed to list guest visits: %w", err)
	}
	sort.Strings(keys)

	visits := make([]domain.GuestVisit, 0, len(keys))
	for _, k := range keys {
		raw, err := r.store.Get(ctx, k)
		if errors.Is(err, store.ErrNotFound) {
			continue // removed concurrently
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read guest visit %s: %w", k, err)
		}
		var v domain.GuestVisit
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		if !from.IsZero() && v.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && v.Timestamp.After(to) {
			continue
		}
		visits = append(visits, v)
	}
	return visits, nil
}

// Count returns the number of records in a tenant database
func (r *Repository) Count(ctx context.Context, tenantID string) (int, error) {
	db, err := tenantDatabase(tenantID)
	if err != nil {
		return 0, err
	}
	keys, err := r.store.Keys(ctx, recordPrefix(db))
	if err != nil {
		return 0, fmt.Errorf("failed to count guest visits: %w", err)
	}
	return len(keys), nil
}

// Clear deletes every record in a tenant database
func (r *Repository) Clear(ctx context.Context, tenantID string) (int, error) {
	db, err := tenantDatabase(tenantID)
	if err != nil {
		return 0, err
	}
	return r.clearDatabase(ctx, db)
}

// Databases lists main and every tenant database that holds records, main
// first and tenants in name order
func (r *Repository) Databases(ctx context.Context) ([]DatabaseCount, error) {
	keys, err := r.store.Keys(ctx, keyNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	counts := map[string]int{}
	for _, k := range keys {
		if db, ok := databaseOf(k); ok {
			counts[db]++
		}
	}

	out := []DatabaseCount{{Database: "main", Count: counts["main"]}}
	delete(counts, "main")
	tenants := lo.Keys(counts)
	sort.Strings(tenants)
	for _, db := range tenants {
		out = append(out, DatabaseCount{Database: db, Count: counts[db]})
	}
	return out, nil
}

// CountAll counts the records of main and every tenant database
func (r *Repository) CountAll(ctx context.Context) (int, []DatabaseCount, error) {
	dbs, err := r.Databases(ctx)
	if err != nil {
		return 0, nil, err
	}
	return lo.SumBy(dbs, func(d DatabaseCount) int { return d.Count }), dbs, nil
}

// ClearAll deletes the records of main and every tenant database. The
// returned details hold what was deleted per database.
func (r *Repository) ClearAll(ctx context.Context) (int, []DatabaseCount, error) {
	dbs, err := r.Databases(ctx)
	if err != nil {
		return 0, nil, err
	}
	total := 0
	details := make([]DatabaseCount, 0, len(dbs))
	for _, d := range dbs {
		n, err := r.clearDatabase(ctx, d.Database)
		total += n
		details = append(details, DatabaseCount{Database: d.Database, Count: n})
		if err != nil {
			return total, details, err
		}
	}
	return total, details, nil
}

func (r *Repository) clearDatabase(ctx context.Context, db string) (int, error) {
	keys, err := r.store.Keys(ctx, recordPrefix(db))
	if err != nil {
		return 0, fmt.Errorf("failed to list guest visits: %w", err)
	}
	deleted := 0
	for _, k := range keys {
		if err := r.store.Remove(ctx, k); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", k, err)
		}
		deleted++
	}
	return deleted, nil
}

// PageCount is the number of visit records reported for a page
type PageCount struct {
	Page   string `json:"page"`
	Visits int    `json:"visits"`
}

// GuestStats aggregates guest visit records
type GuestStats struct {
	TotalGuests           int         `json:"totalGuests"`
	ReturningGuests       int         `json:"returningGuests"`
	NewGuests             int         `json:"newGuests"`
	TotalVisits           int         `json:"totalVisits"`
	AverageVisitsPerGuest float64     `json:"averageVisitsPerGuest"`
	Pages                 []PageCount `json:"pages"`
}

// ComputeGuestStats counts distinct guests and takes each guest's highest
// reported visit count as their total
func ComputeGuestStats(visits []domain.GuestVisit) GuestStats {
	byGuest := lo.GroupBy(visits, func(v domain.GuestVisit) string { return v.GuestID })

	stats := GuestStats{TotalGuests: len(byGuest), Pages: []PageCount{}}
	for _, recs := range byGuest {
		maxCount := lo.Max(lo.Map(recs, func(v domain.GuestVisit, _ int) int { return v.VisitCount }))
		returning := maxCount > 1 || lo.SomeBy(recs, func(v domain.GuestVisit) bool { return v.IsReturning })
		if returning {
			stats.ReturningGuests++
		}
		stats.TotalVisits += lo.Max([]int{maxCount, 1})
	}
	stats.NewGuests = stats.TotalGuests - stats.ReturningGuests
	if stats.TotalGuests > 0 {
		avg := float64(stats.TotalVisits) / float64(stats.TotalGuests)
		stats.AverageVisitsPerGuest = float64(int(avg*100+0.5)) / 100
	}

	pages := lo.CountValuesBy(visits, func(v domain.GuestVisit) string {
		if v.Page == "" {
			return "/"
		}
		return v.Page
	})
	for page, n := range pages {
		stats.Pages = append(stats.Pages, PageCount{Page: page, Visits: n})
	}
	sort.Slice(stats.Pages, func(i, j int) bool {
		if stats.Pages[i].Visits != stats.Pages[j].Visits {
			return stats.Pages[i].Visits > stats.Pages[j].Visits
		}
		return stats.Pages[i].Page < stats.Pages[j].Page
	})
	return stats
}
