// ABOUTME: HTTP handlers for community issue reports and dashboard statistics
// ABOUTME: Reports are public; a known X-User-ID only fills in the submitter or author name

package gateway

import (
	"net/http"
	"strings"

	"github.com/2389/ubwiyunge/internal/auth"
	"github.com/2389/ubwiyunge/internal/reports"
	"github.com/2389/ubwiyunge/internal/store"
)

// recentReportsLimit is how many reports the dashboard shows.
const recentReportsLimit = 5

// optionalUserName returns the display name of the acting user when the
// request names a known one.
func (g *Gateway) optionalUserName(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(auth.UserHeader))
	if id == "" {
		return ""
	}
	user, err := g.directory.Lookup(r.Context(), id)
	if err != nil {
		return ""
	}
	return user.DisplayName()
}

// handleListReports handles GET /api/reports?status=&category=&priority=&search=.
func (g *Gateway) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g.sendJSON(w, http.StatusOK, g.reports.List(reports.Filter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Priority: q.Get("priority"),
		Search:   q.Get("search"),
	}))
}

// handleRecentReports handles GET /api/reports/recent.
func (g *Gateway) handleRecentReports(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, g.reports.Recent(recentReportsLimit))
}

// handleGetReport handles GET /api/reports/{id}.
func (g *Gateway) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := g.reports.Get(r.PathValue("id"))
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, rep)
}

// handleCreateReport handles POST /api/reports.
func (g *Gateway) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var in reports.NewReport
	if !g.decodeJSON(w, r, &in) {
		return
	}
	if in.SubmittedBy == "" {
		in.SubmittedBy = g.optionalUserName(r)
	}
	rep, err := g.reports.Create(in)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, rep)
}

// handleUpdateReport handles PUT /api/reports/{id}.
func (g *Gateway) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	var p reports.Patch
	if !g.decodeJSON(w, r, &p) {
		return
	}
	rep, err := g.reports.Update(r.PathValue("id"), p)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, rep)
}

type commentRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// handleAddComment handles POST /api/reports/{id}/comments.
func (g *Gateway) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}
	if req.Author == "" {
		req.Author = g.optionalUserName(r)
	}
	c, err := g.reports.AddComment(r.PathValue("id"), req.Text, req.Author)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, c)
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	reports.Stats
	TotalUsers    int `json:"totalUsers"`
	ActiveLeaders int `json:"activeLeaders"`
}

// handleStats handles GET /api/stats.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	users, err := g.directory.List(r.Context())
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	resp := StatsResponse{Stats: g.reports.Stats(), TotalUsers: len(users)}
	for _, u := range users {
		if u.Role() == store.RoleLeader {
			resp.ActiveLeaders++
		}
	}
	g.sendJSON(w, http.StatusOK, resp)
}
