package tool

import "github.com/google/uuid"

// GenerateUUIDV7 returns a time-ordered UUID for trace and correlation ids.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}
