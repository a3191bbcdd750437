// ABOUTME: JSON API route table, response helpers, and user account handlers
// ABOUTME: Maps domain errors onto HTTP status codes with a uniform {"error": ...} body

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2389/ubwiyunge/internal/auth"
	"github.com/2389/ubwiyunge/internal/conversation"
	"github.com/2389/ubwiyunge/internal/reports"
	"github.com/2389/ubwiyunge/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// errForbiddenReceiver is returned when the acting user may not message the receiver.
var errForbiddenReceiver = errors.New("you cannot message this user")

// registerAPIRoutes wires the JSON API onto mux.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	withUser := auth.RequireUser(g.directory, g.logger)
	user := func(h http.HandlerFunc) http.Handler { return withUser(h) }

	mux.HandleFunc("GET /api/health", g.handleAPIHealth)

	mux.HandleFunc("POST /api/users/register", g.handleRegister)
	mux.HandleFunc("POST /api/users/login", g.handleLogin)
	mux.Handle("GET /api/users/me", user(g.handleGetMe))
	mux.Handle("PUT /api/users/me", user(g.handleUpdateMe))

	mux.Handle("GET /api/contacts", user(g.handleListContacts))
	mux.Handle("POST /api/contacts", user(g.handleAddContact))

	mux.Handle("GET /api/conversations", user(g.handleListConversations))
	mux.Handle("POST /api/conversations", user(g.handleStartConversation))
	mux.Handle("GET /api/conversations/{id}/messages", user(g.handleConversationMessages))
	mux.Handle("POST /api/conversations/{id}/read", user(g.handleMarkRead))

	mux.Handle("POST /api/messages", user(g.handleSendMessage))
	mux.Handle("POST /api/messages/quick", user(g.handleQuickMessage))
	mux.Handle("GET /api/messages/unread-count", user(g.handleUnreadCount))

	mux.HandleFunc("GET /api/reports", g.handleListReports)
	mux.HandleFunc("POST /api/reports", g.handleCreateReport)
	mux.HandleFunc("GET /api/reports/recent", g.handleRecentReports)
	mux.HandleFunc("GET /api/reports/{id}", g.handleGetReport)
	mux.HandleFunc("PUT /api/reports/{id}", g.handleUpdateReport)
	mux.HandleFunc("POST /api/reports/{id}/comments", g.handleAddComment)
	mux.HandleFunc("GET /api/stats", g.handleStats)
}

// sendJSON writes v as a JSON response with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a JSON request body into v.
func (g *Gateway) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// sendDomainError maps a domain error onto a status code.
func (g *Gateway) sendDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		convErr   *conversation.ValidationError
		authErr   *auth.ValidationError
		reportErr *reports.ValidationError
	)
	switch {
	case errors.As(err, &convErr), errors.As(err, &authErr), errors.As(err, &reportErr):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errForbiddenReceiver), errors.Is(err, conversation.ErrNotPermitted):
		g.sendJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrIDTaken):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		g.sendJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, conversation.ErrUnknownContact),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, reports.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, err.Error())
	default:
		g.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// UserResponse is the public view of a user. The password hash is never
// included.
type UserResponse struct {
	ID            string     `json:"id"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	Role          store.Role `json:"role"`
	District      string     `json:"district,omitempty"`
	Sector        string     `json:"sector,omitempty"`
	Avatar        string     `json:"avatar"`
	CreatedDate   time.Time  `json:"createdDate"`
	Position      string     `json:"position,omitempty"`
	Department    string     `json:"department,omitempty"`
	OfficeAddress string     `json:"officeAddress,omitempty"`
}

func userResponse(u store.User) UserResponse {
	p := u.Base()
	resp := UserResponse{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		Phone:       p.Phone,
		Role:        u.Role(),
		District:    p.District,
		Sector:      p.Sector,
		Avatar:      p.Avatar,
		CreatedDate: p.CreatedAt,
	}
	if l, ok := u.(store.Leader); ok {
		resp.Position = l.Position
		resp.Department = l.Department
		resp.OfficeAddress = l.OfficeAddress
	}
	return resp
}

// handleAPIHealth reports liveness with uptime for the dashboard.
func (g *Gateway) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(g.started).Seconds(),
		"service":   "Ubwiyunge Community Platform API",
	})
}

// handleRegister handles POST /api/users/register.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if !g.decodeJSON(w, r, &reg) {
		return
	}
	user, err := g.directory.Register(r.Context(), reg)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, userResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin handles POST /api/users/login. No session is created; the
// client keeps the returned id and sends it as X-User-ID.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}
	user, err := g.directory.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, userResponse(user))
}

// handleGetMe handles GET /api/users/me.
func (g *Gateway) handleGetMe(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, userResponse(auth.MustFromContext(r.Context())))
}

// handleUpdateMe handles PUT /api/users/me.
func (g *Gateway) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd auth.ProfileUpdate
	if !g.decodeJSON(w, r, &upd) {
		return
	}
	user, err := g.directory.UpdateProfile(r.Context(), auth.MustFromContext(r.Context()).UserID(), upd)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, userResponse(user))
}
