// ABOUTME: Tests for the report registry
// ABOUTME: Covers filtering, creation defaults, updates, comments, and stats

package reports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *time.Time) {
	t.Helper()
	now := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	r := NewRegistry(nil, Samples()...)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRegistry_ListFilters(t *testing.T) {
	r, _ := newTestRegistry(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"RPT-001", "RPT-002"}},
		{"all keyword", Filter{Status: "all", Category: "all", Priority: "all"}, []string{"RPT-001", "RPT-002"}},
		{"status", Filter{Status: StatusInProgress}, []string{"RPT-002"}},
		{"priority", Filter{Priority: PriorityHigh}, []string{"RPT-001"}},
		{"category miss", Filter{Category: "health"}, nil},
		{"search title", Filter{Search: "street LIGHT"}, []string{"RPT-002"}},
		{"search location", Filter{Search: "nakumatt"}, []string{"RPT-001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []string
			for _, rep := range r.List(tt.filter) {
				ids = append(ids, rep.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRegistry_CreateDefaults(t *testing.T) {
	r, _ := newTestRegistry(t)

	rep, err := r.Create(NewReport{
		Title:       "Blocked drain",
		Description: "Water pools after rain",
		Category:    "sanitation",
		District:    "Nyarugenge",
		Sector:      "Nyamirambo",
	})
	require.NoError(t, err)

	assert.Regexp(t, `^RPT-\d{6}$`, rep.ID)
	assert.Equal(t, StatusPending, rep.Status)
	assert.Equal(t, PriorityMedium, rep.Priority)
	assert.Equal(t, "Nyamirambo, Nyarugenge", rep.Location)
	assert.Equal(t, Anonymous, rep.SubmittedBy)
	assert.Empty(t, rep.AssignedTo)
	assert.NotNil(t, rep.Comments)

	list := r.List(Filter{})
	require.Len(t, list, 3)
	assert.Equal(t, rep.ID, list[0].ID, "new report is listed first")
}

func TestRegistry_CreateUniqueIDs(t *testing.T) {
	r, _ := newTestRegistry(t)
	in := NewReport{Title: "t", Description: "d", Category: "c", District: "x", Sector: "y"}

	a, err := r.Create(in)
	require.NoError(t, err)
	b, err := r.Create(in)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRegistry_CreateValidation(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Create(NewReport{Title: "only a title", Priority: "urgent"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "description is required")
	assert.Contains(t, verr.Problems, "sector is required")
	assert.Len(t, verr.Problems, 5)
	assert.Len(t, r.List(Filter{}), 2)
}

func TestRegistry_Update(t *testing.T) {
	r, now := newTestRegistry(t)

	status := StatusResolved
	assignee := "Bizimana Eric"
	rep, err := r.Update("RPT-001", Patch{Status: &status, AssignedTo: &assignee})
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, rep.Status)
	assert.Equal(t, "Bizimana Eric", rep.AssignedTo)
	assert.Equal(t, "Road Repair Needed", rep.Title)
	assert.Equal(t, *now, rep.LastUpdate)

	bad := "closed"
	_, err = r.Update("RPT-001", Patch{Status: &bad})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = r.Update("RPT-999", Patch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_AddComment(t *testing.T) {
	r, now := newTestRegistry(t)

	c, err := r.AddComment("RPT-002", "Crew scheduled for Friday", "")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, c.Author)
	assert.True(t, len(c.ID) > 1 && c.ID[0] == 'c')

	rep, err := r.Get("RPT-002")
	require.NoError(t, err)
	require.Len(t, rep.Comments, 1)
	assert.Equal(t, "Crew scheduled for Friday", rep.Comments[0].Text)
	assert.Equal(t, *now, rep.LastUpdate)

	_, err = r.AddComment("RPT-002", "  ", "Alice")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = r.AddComment("RPT-404", "hello", "Alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	r, _ := newTestRegistry(t)

	rep, err := r.Get("RPT-001")
	require.NoError(t, err)
	rep.Title = "mutated"
	rep.Comments = append(rep.Comments, Comment{ID: "x"})

	again, err := r.Get("RPT-001")
	require.NoError(t, err)
	assert.Equal(t, "Road Repair Needed", again.Title)
	assert.Empty(t, again.Comments)
}

func TestRegistry_StatsAndRecent(t *testing.T) {
	r, _ := newTestRegistry(t)

	assert.Equal(t, Stats{Total: 2, Pending: 1, InProgress: 1}, r.Stats())

	recent := r.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "RPT-001", recent[0].ID)
	assert.Len(t, r.Recent(5), 2)
}
