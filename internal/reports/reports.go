// ABOUTME: In-memory registry of community issue reports with filtering and comments
// ABOUTME: Seeded with sample reports; contents reset when the process restarts

package reports

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a report id does not exist
var ErrNotFound = errors.New("report not found")

// Status values
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
)

// Priority values
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Anonymous is recorded when no author or submitter is given.
const Anonymous = "Anonymous"

// Report is an issue submitted by a citizen.
type Report struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	District      string    `json:"district"`
	Sector        string    `json:"sector"`
	Location      string    `json:"location"`
	SubmittedBy   string    `json:"submittedBy"`
	SubmittedDate time.Time `json:"submittedDate"`
	AssignedTo    string    `json:"assignedTo,omitempty"`
	LastUpdate    time.Time `json:"lastUpdate"`
	Comments      []Comment `json:"comments"`
}

// Comment is a note attached to a report.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationError lists the problems with a create or update request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid report: " + strings.Join(e.Problems, ", ")
}

// Filter selects reports. Empty fields and "all" match everything.
type Filter struct {
	Status   string
	Category string
	Priority string
	Search   string
}

func matches(field, want string) bool {
	return want == "" || want == "all" || field == want
}

func (f Filter) match(r *Report) bool {
	if !matches(r.Status, f.Status) || !matches(r.Category, f.Category) || !matches(r.Priority, f.Priority) {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(r.Title), q) ||
		strings.Contains(strings.ToLower(r.Description), q) ||
		strings.Contains(strings.ToLower(r.Location), q)
}

// NewReport holds the fields accepted when creating a report.
type NewReport struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	District    string `json:"district"`
	Sector      string `json:"sector"`
	Location    string `json:"location"`
	Priority    string `json:"priority"`
	SubmittedBy string `json:"submittedBy"`
}

// Patch holds optional report updates. Nil fields are left unchanged.
type Patch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	Location    *string `json:"location"`
	AssignedTo  *string `json:"assignedTo"`
}

// Stats summarizes reports by status.
type Stats struct {
	Total      int `json:"totalReports"`
	Pending    int `json:"pendingReports"`
	InProgress int `json:"inProgressReports"`
	Resolved   int `json:"resolvedReports"`
}

// Registry holds reports in memory. Reports are kept newest first.
type Registry struct {
	mu      sync.RWMutex
	reports []*Report
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates a registry containing the given reports.
func NewRegistry(logger *slog.Logger, seed ...Report) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger: logger.With("component", "reports"),
		now:    time.Now,
	}
	for i := range seed {
		rep := seed[i]
		rep.Comments = append([]Comment(nil), rep.Comments...)
		r.reports = append(r.reports, &rep)
	}
	return r
}

func cloneReport(r *Report) Report {
	out := *r
	out.Comments = append([]Comment{}, r.Comments...)
	return out
}

// List returns the reports matching f, newest first.
func (r *Registry) List(f Filter) []Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Report{}
	for _, rep := range r.reports {
		if f.match(rep) {
			out = append(out, cloneReport(rep))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedDate.After(out[j].SubmittedDate)
	})
	return out
}

// Recent returns up to n reports, newest first.
func (r *Registry) Recent(n int) []Report {
	all := r.List(Filter{})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Get returns the report with the given id.
func (r *Registry) Get(id string) (Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep := r.find(id)
	if rep == nil {
		return Report{}, ErrNotFound
	}
	return cloneReport(rep), nil
}

func (r *Registry) find(id string) *Report {
	for _, rep := range r.reports {
		if rep.ID == id {
			return rep
		}
	}
	return nil
}

// Create validates and stores a new pending report.
func (r *Registry) Create(in NewReport) (Report, error) {
	var problems []string
	for _, f := range []struct{ name, value string }{
		{"title", in.Title},
		{"description", in.Description},
		{"category", in.Category},
		{"district", in.District},
		{"sector", in.Sector},
	} {
		if strings.TrimSpace(f.value) == "" {
			problems = append(problems, f.name+" is required")
		}
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !validPriority(priority) {
		problems = append(problems, fmt.Sprintf("priority %q is not one of low, medium, high", priority))
	}
	if len(problems) > 0 {
		return Report{}, &ValidationError{Problems: problems}
	}

	location := in.Location
	if location == "" {
		location = in.Sector + ", " + in.District
	}
	submittedBy := in.SubmittedBy
	if submittedBy == "" {
		submittedBy = Anonymous
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	rep := &Report{
		ID:            r.nextIDLocked(now),
		Title:         in.Title,
		Description:   in.Description,
		Category:      in.Category,
		Status:        StatusPending,
		Priority:      priority,
		District:      in.District,
		Sector:        in.Sector,
		Location:      location,
		SubmittedBy:   submittedBy,
		SubmittedDate: now,
		LastUpdate:    now,
		Comments:      []Comment{},
	}
	r.reports = append([]*Report{rep}, r.reports...)

	r.logger.Info("report created", "id", rep.ID, "category", rep.Category, "district", rep.District)
	return cloneReport(rep), nil
}

// nextIDLocked derives RPT-<last six digits of the millisecond clock>,
// stepping forward on collision. Must be called with mu held.
func (r *Registry) nextIDLocked(now time.Time) string {
	n := now.UnixMilli() % 1_000_000
	for {
		id := fmt.Sprintf("RPT-%06d", n)
		if r.find(id) == nil {
			return id
		}
		n = (n + 1) % 1_000_000
	}
}

// Update applies p to the report with the given id.
func (r *Registry) Update(id string, p Patch) (Report, error) {
	var problems []string
	if p.Status != nil && !validStatus(*p.Status) {
		problems = append(problems, fmt.Sprintf("status %q is not one of pending, in-progress, resolved", *p.Status))
	}
	if p.Priority != nil && !validPriority(*p.Priority) {
		problems = append(problems, fmt.Sprintf("priority %q is not one of low, medium, high", *p.Priority))
	}
	for _, f := range []struct {
		name  string
		value *string
	}{{"title", p.Title}, {"description", p.Description}, {"category", p.Category}} {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			problems = append(problems, f.name+" cannot be empty")
		}
	}
	if len(problems) > 0 {
		return Report{}, &ValidationError{Problems: problems}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rep := r.find(id)
	if rep == nil {
		return Report{}, ErrNotFound
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&rep.Title, p.Title)
	set(&rep.Description, p.Description)
	set(&rep.Category, p.Category)
	set(&rep.Status, p.Status)
	set(&rep.Priority, p.Priority)
	set(&rep.Location, p.Location)
	set(&rep.AssignedTo, p.AssignedTo)
	rep.LastUpdate = r.now().UTC()

	r.logger.Debug("report updated", "id", id, "status", rep.Status)
	return cloneReport(rep), nil
}

// AddComment appends a comment to a report.
func (r *Registry) AddComment(id, text, author string) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, &ValidationError{Problems: []string{"comment text is required"}}
	}
	if author == "" {
		author = Anonymous
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rep := r.find(id)
	if rep == nil {
		return Comment{}, ErrNotFound
	}
	now := r.now().UTC()
	c := Comment{
		ID:        "c" + uuid.New().String(),
		Author:    author,
		Text:      text,
		Timestamp: now,
	}
	rep.Comments = append(rep.Comments, c)
	rep.LastUpdate = now
	return c, nil
}

// Stats counts reports by status.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Total: len(r.reports)}
	for _, rep := range r.reports {
		switch rep.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress:
			s.InProgress++
		case StatusResolved:
			s.Resolved++
		}
	}
	return s
}

func validStatus(s string) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusResolved
}

func validPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}
