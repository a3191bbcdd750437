// ABOUTME: User directory service: registration, password login, profile edits, and lookup
// ABOUTME: Passwords are stored as bcrypt hashes; emails are unique case-insensitively

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/ubwiyunge/internal/store"
)

// ErrEmailTaken is returned when registering an email already in the directory.
var ErrEmailTaken = errors.New("email already registered")

// ErrIDTaken is returned when a new account would reuse an existing user id.
var ErrIDTaken = errors.New("user id already registered")

// ErrInvalidCredentials is returned when login fails for any reason.
var ErrInvalidCredentials = errors.New("invalid email or password")

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// ValidationError reports a rejected registration or profile field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Registration holds the fields submitted when creating an account.
type Registration struct {
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Password      string     `json:"password"`
	Role          store.Role `json:"role"`
	District      string     `json:"district"`
	Sector        string     `json:"sector"`
	Avatar        string     `json:"avatar"`
	Position      string     `json:"position"`
	Department    string     `json:"department"`
	OfficeAddress string     `json:"officeAddress"`
}

// ProfileUpdate holds optional profile edits. Nil fields are left unchanged.
// Leader fields are ignored for citizens.
type ProfileUpdate struct {
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	Phone         *string `json:"phone"`
	District      *string `json:"district"`
	Sector        *string `json:"sector"`
	Avatar        *string `json:"avatar"`
	Position      *string `json:"position"`
	Department    *string `json:"department"`
	OfficeAddress *string `json:"officeAddress"`
}

// Directory manages registered users.
type Directory struct {
	store  store.DirectoryStore
	logger *slog.Logger

	// mu serializes email uniqueness checks with the write that follows.
	mu sync.Mutex

	now   func() time.Time
	newID func() string
	cost  int
}

// NewDirectory creates a Directory over the given store.
func NewDirectory(s store.DirectoryStore, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		store:  s,
		logger: logger.With("component", "directory"),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		cost:   bcrypt.DefaultCost,
	}
}

// users loads the directory, treating a corrupt collection as empty.
func (d *Directory) users(ctx context.Context) ([]store.User, error) {
	users, err := d.store.ListUsers(ctx)
	if errors.Is(err, store.ErrCorrupt) {
		d.logger.Warn("corrupt user directory treated as empty", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func findByEmail(users []store.User, email string) (store.User, bool) {
	for _, u := range users {
		if normalizeEmail(u.Base().Email) == email {
			return u, true
		}
	}
	return nil, false
}

// Lookup returns the user with the given id, or store.ErrNotFound.
func (d *Directory) Lookup(ctx context.Context, id string) (store.User, error) {
	users, err := d.users(ctx)
	if err != nil {
		return nil, err
	}
	if u, ok := store.FindUser(users, id); ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

// List returns every registered user.
func (d *Directory) List(ctx context.Context) ([]store.User, error) {
	return d.users(ctx)
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return &ValidationError{Field: "name", Reason: "first name and last name are required"}
	}
	if !strings.Contains(r.Email, "@") {
		return &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if len(r.Password) < MinPasswordLength {
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	switch r.Role {
	case "", store.RoleCitizen, store.RoleLeader:
	default:
		return &ValidationError{Field: "role", Reason: "must be citizen or leader"}
	}
	return nil
}

// Register creates a new user. The role defaults to citizen.
func (d *Directory) Register(ctx context.Context, reg Registration) (store.User, error) {
	if err := reg.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	avatar := reg.Avatar
	if avatar == "" {
		avatar = store.DefaultAvatar
	}
	profile := store.Profile{
		ID:           d.newID(),
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		Email:        strings.TrimSpace(reg.Email),
		Phone:        strings.TrimSpace(reg.Phone),
		District:     strings.TrimSpace(reg.District),
		Sector:       strings.TrimSpace(reg.Sector),
		Avatar:       avatar,
		PasswordHash: string(hash),
		CreatedAt:    d.now().UTC(),
	}

	var user store.User = store.Citizen{Profile: profile}
	if reg.Role == store.RoleLeader {
		user = store.Leader{
			Profile:       profile,
			Position:      strings.TrimSpace(reg.Position),
			Department:    strings.TrimSpace(reg.Department),
			OfficeAddress: strings.TrimSpace(reg.OfficeAddress),
		}
	}

	if err := d.insert(ctx, user); err != nil {
		return nil, err
	}
	d.logger.Info("user registered", "user_id", user.UserID(), "role", user.Role())
	return user, nil
}

// insert stores user unless its id or email is already registered.
func (d *Directory) insert(ctx context.Context, user store.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.users(ctx)
	if err != nil {
		return err
	}
	if _, taken := findByEmail(users, normalizeEmail(user.Base().Email)); taken {
		return ErrEmailTaken
	}
	if _, taken := store.FindUser(users, user.UserID()); taken {
		return ErrIDTaken
	}
	if err := d.store.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

// Login checks an email and password pair.
func (d *Directory) Login(ctx context.Context, email, password string) (store.User, error) {
	users, err := d.users(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := findByEmail(users, normalizeEmail(email))
	if !ok || user.Base().PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Base().PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	d.logger.Debug("user logged in", "user_id", user.UserID())
	return user, nil
}

// UpdateProfile applies upd to the user with the given id.
func (d *Directory) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (store.User, error) {
	for _, f := range []struct {
		name  string
		value *string
	}{{"firstName", upd.FirstName}, {"lastName", upd.LastName}} {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return nil, &ValidationError{Field: f.name, Reason: "cannot be empty"}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.users(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := store.FindUser(users, id)
	if !ok {
		return nil, store.ErrNotFound
	}

	profile := user.Base()
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&profile.FirstName, upd.FirstName)
	set(&profile.LastName, upd.LastName)
	set(&profile.Phone, upd.Phone)
	set(&profile.District, upd.District)
	set(&profile.Sector, upd.Sector)
	set(&profile.Avatar, upd.Avatar)

	switch u := user.(type) {
	case store.Leader:
		u.Profile = profile
		set(&u.Position, upd.Position)
		set(&u.Department, upd.Department)
		set(&u.OfficeAddress, upd.OfficeAddress)
		user = u
	case store.Citizen:
		u.Profile = profile
		user = u
	}

	if err := d.store.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	return user, nil
}

// SeedLeader stores leader unless a user with the same email exists. It
// reports whether the leader was added. An empty password leaves the
// account without a login.
func (d *Directory) SeedLeader(ctx context.Context, leader store.Leader, password string) (bool, error) {
	if leader.ID == "" {
		return false, &ValidationError{Field: "id", Reason: "is required"}
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
		if err != nil {
			return false, fmt.Errorf("hashing password: %w", err)
		}
		leader.PasswordHash = string(hash)
	}
	if leader.Avatar == "" {
		leader.Avatar = store.DefaultAvatar
	}
	if leader.CreatedAt.IsZero() {
		leader.CreatedAt = d.now().UTC()
	}

	err := d.insert(ctx, leader)
	switch {
	case errors.Is(err, ErrEmailTaken):
		d.logger.Debug("seed leader already registered", "email", leader.Email)
		return false, nil
	case errors.Is(err, ErrIDTaken):
		d.logger.Warn("seed leader id belongs to another account", "user_id", leader.ID, "email", leader.Email)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	d.logger.Info("seed leader registered", "user_id", leader.ID)
	return true, nil
}
