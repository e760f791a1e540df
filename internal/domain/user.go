package domain

import (
	"strings"
	"time"
)

const AnonymousName = "Anonymous"

// An account identity. Users start anonymous and may later pick a display name.
type User struct {
	ID          string
	DisplayName string
	Anonymous   bool
	CreatedAt   time.Time
}

// Name returns the display name, or AnonymousName when none was chosen.
func (u User) Name() string {
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	return AnonymousName
}
