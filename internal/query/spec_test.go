package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbapi/internal/model"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		field, order string
		want         Sort
	}{
		{"created_at", "desc", Sort{Field: SortCreatedAt, Desc: true}},
		{"updated_at", "asc", Sort{Field: SortUpdatedAt, Desc: false}},
		{"title", "", Sort{Field: SortTitle, Desc: true}},
		{"average_rating", "desc", Sort{Field: SortAverageRating, Desc: true}},
		// anything outside the allow-list falls back to created_at
		{"rating_sum", "asc", Sort{Field: SortCreatedAt, Desc: false}},
		{"; DROP TABLE documents;", "desc", Sort{Field: SortCreatedAt, Desc: true}},
		{"", "", Sort{Field: SortCreatedAt, Desc: true}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSort(tt.field, tt.order), "field=%q order=%q", tt.field, tt.order)
	}
}

func TestSort_OrderBySQL_AlwaysTotal(t *testing.T) {
	assert.Equal(t, "ORDER BY d.average_rating DESC, d.id ASC",
		Sort{Field: SortAverageRating, Desc: true}.OrderBySQL())
	assert.Equal(t, "ORDER BY d.title ASC, d.id ASC",
		Sort{Field: SortTitle}.OrderBySQL())
}

func TestNewPage(t *testing.T) {
	p, err := NewPage(3, 20)
	require.NoError(t, err)
	assert.Equal(t, 40, p.Offset())

	_, err = NewPage(0, 10)
	ve, ok := model.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "page", ve.Field)

	_, err = NewPage(1, 0)
	ve, ok = model.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "limit", ve.Field)

	_, err = NewPage(1, 101)
	ve, ok = model.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "limit", ve.Field)
}

func TestSpec_WhereSQL(t *testing.T) {
	vis := VisibleTo(model.Principal{ID: "u1", Group: "eng"})

	t.Run("visibility and filters compose with AND", func(t *testing.T) {
		s := Spec{
			Visible: &vis,
			Filters: Filters{Text: "report", Group: "eng"},
		}
		where, args := s.WhereSQL()
		assert.Contains(t, where, "d.visibility = $1")
		assert.Contains(t, where, "d.title ILIKE $6 OR d.summary ILIKE $7")
		assert.Contains(t, where, "u.group_name = $8")
		assert.Len(t, args, 8)
	})

	t.Run("owner-scoped query skips visibility", func(t *testing.T) {
		s := Spec{Filters: Filters{OwnerID: "u1"}}
		where, args := s.WhereSQL()
		assert.Equal(t, "d.owner_id = $1", where)
		assert.Equal(t, []any{"u1"}, args)
	})

	t.Run("empty spec matches everything", func(t *testing.T) {
		where, args := Spec{}.WhereSQL()
		assert.Equal(t, "TRUE", where)
		assert.Empty(t, args)
	})

	t.Run("identical specs render identical SQL", func(t *testing.T) {
		s := Spec{Visible: &vis, Filters: Filters{Text: "x", Tags: []string{"a", "b"}}}
		w1, a1 := s.WhereSQL()
		w2, a2 := s.WhereSQL()
		assert.Equal(t, w1, w2)
		assert.Len(t, a2, len(a1))
	})
}
