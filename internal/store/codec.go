// ABOUTME: JSON encoding for persisted collections and the flat user record format
// ABOUTME: Decode failures and unknown roles surface as ErrCorrupt

package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// userRecord is the persisted shape of a User. Role is the discriminator;
// leader-only fields are empty for citizens.
type userRecord struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Role          Role      `json:"role"`
	PasswordHash  string    `json:"passwordHash,omitempty"`
	CreatedDate   time.Time `json:"createdDate"`
	District      string    `json:"district,omitempty"`
	Sector        string    `json:"sector,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Position      string    `json:"position,omitempty"`
	Department    string    `json:"department,omitempty"`
	OfficeAddress string    `json:"officeAddress,omitempty"`
}

func encodeUser(u User) userRecord {
	p := u.Base()
	rec := userRecord{
		ID:           p.ID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		Phone:        p.Phone,
		Role:         u.Role(),
		PasswordHash: p.PasswordHash,
		CreatedDate:  p.CreatedAt.UTC(),
		District:     p.District,
		Sector:       p.Sector,
		Avatar:       p.Avatar,
	}
	if l, ok := u.(Leader); ok {
		rec.Position = l.Position
		rec.Department = l.Department
		rec.OfficeAddress = l.OfficeAddress
	}
	return rec
}

func decodeUser(rec userRecord) (User, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: user record without id", ErrCorrupt)
	}
	p := Profile{
		ID:           rec.ID,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		Email:        rec.Email,
		Phone:        rec.Phone,
		District:     rec.District,
		Sector:       rec.Sector,
		Avatar:       rec.Avatar,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedDate,
	}
	switch rec.Role {
	case RoleCitizen:
		return Citizen{Profile: p}, nil
	case RoleLeader:
		return Leader{
			Profile:       p,
			Position:      rec.Position,
			Department:    rec.Department,
			OfficeAddress: rec.OfficeAddress,
		}, nil
	default:
		return nil, fmt.Errorf("%w: user %s has unknown role %q", ErrCorrupt, rec.ID, rec.Role)
	}
}

// decodeCollection unmarshals a stored JSON array. A missing document is an
// empty collection.
func decodeCollection[T any](key string, raw []byte) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return out, nil
}

func decodeUsers(raw []byte) ([]User, error) {
	recs, err := decodeCollection[userRecord](KeyUsers, raw)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(recs))
	for _, rec := range recs {
		u, err := decodeUser(rec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyUsers, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func encodeCollection[T any](key string, items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", key, err)
	}
	return data, nil
}
