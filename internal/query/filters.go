package query

import (
	"strings"
	"time"

	"github.com/lib/pq"

	"kbapi/internal/model"
)

// RawFilters carries search parameters exactly as supplied by the caller.
// ParseFilters validates them once into a typed Filters value.
type RawFilters struct {
	Text       string
	Tags       string // comma-separated
	DateFrom   string // ISO-8601, inclusive
	DateTo     string // ISO-8601, inclusive
	Group      string
	Visibility string
}

// Filters is the validated filter predicate. Zero values mean "not filtered".
// OwnerID is resolved by the caller from the owner search string; filters
// with an unresolvable owner never reach this type.
type Filters struct {
	Text       string
	Tags       []string
	DateFrom   *time.Time
	DateTo     *time.Time
	Group      string
	Visibility model.Visibility
	OwnerID    string
}

// ParseFilters validates raw search input. Malformed dates and unknown
// visibility values fail with a ValidationError naming the parameter;
// they are never silently dropped.
func ParseFilters(raw RawFilters) (Filters, error) {
	f := Filters{
		Text:  strings.TrimSpace(raw.Text),
		Tags:  SplitTags(raw.Tags),
		Group: strings.TrimSpace(raw.Group),
	}

	if raw.DateFrom != "" {
		t, err := parseISODate(raw.DateFrom)
		if err != nil {
			return Filters{}, model.NewValidationError("date_from", "invalid date format")
		}
		f.DateFrom = &t
	}
	if raw.DateTo != "" {
		t, err := parseISODate(raw.DateTo)
		if err != nil {
			return Filters{}, model.NewValidationError("date_to", "invalid date format")
		}
		f.DateTo = &t
	}
	if raw.Visibility != "" {
		v := model.Visibility(raw.Visibility)
		if !v.Valid() {
			return Filters{}, model.NewValidationError("visibility", "must be private, group, or public")
		}
		f.Visibility = v
	}
	return f, nil
}

// SplitTags splits a comma-separated tag list, trimming blanks and
// dropping duplicates while keeping first-seen order.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// parseISODate accepts RFC 3339 timestamps and bare dates.
func parseISODate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// AppendSQL translates every active filter to a conjunct over documents d.
func (f Filters) AppendSQL(b *Builder) {
	if f.Text != "" {
		p := likePattern(f.Text)
		b.Add("(d.title ILIKE " + b.Bind(p) + " OR d.summary ILIKE " + b.Bind(p) + ")")
	}
	if len(f.Tags) > 0 {
		b.Add("d.tags && " + b.Bind(pq.Array(f.Tags)) + "::text[]")
	}
	if f.DateFrom != nil {
		b.Add("d.created_at >= " + b.Bind(*f.DateFrom))
	}
	if f.DateTo != nil {
		b.Add("d.created_at <= " + b.Bind(*f.DateTo))
	}
	if f.Group != "" {
		b.Add("u.group_name = " + b.Bind(f.Group))
	}
	if f.Visibility != "" {
		b.Add("d.visibility = " + b.Bind(string(f.Visibility)))
	}
	if f.OwnerID != "" {
		b.Add("d.owner_id = " + b.Bind(f.OwnerID))
	}
}

// likePattern wraps s for substring matching, escaping LIKE metacharacters.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
