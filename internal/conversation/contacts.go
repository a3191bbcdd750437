// ABOUTME: Contact derivation from the user directory and ad-hoc additions
// ABOUTME: Citizens see leaders, leaders see everyone but themselves, directory entries win

package conversation

import "github.com/2389/ubwiyunge/internal/store"

// Labels applied when a directory user has no value of their own.
const (
	DefaultLeaderLabel       = "Community Leader"
	CitizenLabel             = "Citizen"
	DefaultLeaderDepartment  = "Community Affairs"
	DefaultCitizenDepartment = "Community Member"
)

// DeriveContacts returns the users currentUser may message followed by
// currentUser's ad-hoc contacts. A citizen sees every leader; a leader sees
// every other user. An ad-hoc entry naming a directory user or currentUser
// is dropped, so the directory alone decides who is reachable among
// registered users.
func DeriveContacts(currentUser store.User, directory []store.User, adHoc []store.Contact) []store.Contact {
	contacts := make([]store.Contact, 0, len(directory)+len(adHoc))
	seen := make(map[string]bool, len(directory)+len(adHoc))
	seen[currentUser.UserID()] = true

	for _, u := range directory {
		if seen[u.UserID()] {
			continue
		}
		seen[u.UserID()] = true
		if canSee(currentUser, u) {
			contacts = append(contacts, ContactFromUser(u))
		}
	}

	for _, c := range adHoc {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		contacts = append(contacts, c)
	}
	return contacts
}

func canSee(viewer, other store.User) bool {
	switch viewer.Role() {
	case store.RoleCitizen:
		return other.Role() == store.RoleLeader
	case store.RoleLeader:
		return other.UserID() != viewer.UserID()
	}
	return false
}

// ContactFromUser projects a directory user for messaging display.
func ContactFromUser(u store.User) store.Contact {
	p := u.Base()
	c := store.Contact{
		ID:       p.ID,
		Name:     u.DisplayName(),
		Role:     u.Role(),
		Avatar:   p.Avatar,
		Status:   store.PresenceOnline,
		LastSeen: p.CreatedAt,
		District: p.District,
		Sector:   p.Sector,
		Email:    p.Email,
	}
	if c.Avatar == "" {
		c.Avatar = store.DefaultAvatar
	}

	switch v := u.(type) {
	case store.Leader:
		c.Label = firstNonEmpty(v.Position, DefaultLeaderLabel)
		c.Title = v.Position
		c.Department = firstNonEmpty(v.Department, DefaultLeaderDepartment)
	case store.Citizen:
		c.Label = CitizenLabel
		c.Department = DefaultCitizenDepartment
	}
	return c
}

// FindContact returns the contact with the given id.
func FindContact(contacts []store.Contact, id string) (store.Contact, bool) {
	for _, c := range contacts {
		if c.ID == id {
			return c, true
		}
	}
	return store.Contact{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
