package service

import (
	"strings"
	"sync"

	"github.com/noah-isme/runar/internal/models"
)

const unknownUserName = "Unknown"

// Directory is the roster of users known to the session, supplied by the host.
type Directory struct {
	mu    sync.RWMutex
	order []string
	users map[string]models.User
}

// NewDirectory builds a directory from a roster. Later duplicates of an id replace earlier ones.
func NewDirectory(users []models.User) *Directory {
	d := &Directory{users: make(map[string]models.User, len(users))}
	for _, user := range users {
		d.Put(user)
	}
	return d
}

// Put inserts or replaces a roster entry.
func (d *Directory) Put(user models.User) {
	id := strings.TrimSpace(user.ID)
	if id == "" {
		return
	}
	user.ID = id

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.users[id]; !exists {
		d.order = append(d.order, id)
	}
	d.users[id] = user
}

// SetActive flips the presence flag of a user.
func (d *Directory) SetActive(userID string, active bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[userID]
	if !ok {
		return false
	}
	user.Active = active
	d.users[userID] = user
	return true
}

// User looks up a roster entry.
func (d *Directory) User(userID string) (models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[userID]
	return user, ok
}

// Name returns the display name for userID, or "Unknown".
func (d *Directory) Name(userID string) string {
	if user, ok := d.User(userID); ok && user.Name != "" {
		return user.Name
	}
	return unknownUserName
}

// Users returns the roster in insertion order.
func (d *Directory) Users() []models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.User, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.users[id])
	}
	return out
}

// ByName finds a user by case-insensitive display name.
func (d *Directory) ByName(name string) (models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, id := range d.order {
		user := d.users[id]
		if strings.EqualFold(user.Name, name) {
			return user, true
		}
	}
	return models.User{}, false
}

// ActiveGM returns the first active privileged user other than exclude.
func (d *Directory) ActiveGM(exclude string) (models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, id := range d.order {
		user := d.users[id]
		if id != exclude && user.IsGM() && user.Active {
			return user, true
		}
	}
	return models.User{}, false
}

// IsGM reports whether userID carries the privileged role.
func (d *Directory) IsGM(userID string) bool {
	user, ok := d.User(userID)
	return ok && user.IsGM()
}
