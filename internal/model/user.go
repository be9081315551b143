package model

import "time"

// User is a clinic staff or portal account persisted in the typed users table.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      string
	Phone     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
