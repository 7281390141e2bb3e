package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           string    `bun:"id,pk" json:"id"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	Name         string    `bun:"name" json:"name"`
	IsSuperAdmin bool      `bun:"is_super_admin" json:"is_super_admin"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}
