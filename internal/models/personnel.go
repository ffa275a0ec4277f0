package models

import (
	"strings"
	"time"

	"github.com/nxpat/projets-lfs/internal/catalog"
)

// Staff directory & authentication models
type Personnel struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"unique;not null;index"`
	Name      string `gorm:"not null;index"`
	Firstname string `gorm:"not null"`
	Department string `gorm:"not null"`
	Role      string // admin, gestion, direction ou vide
	User      *User  `gorm:"foreignKey:PID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Personnel) TableName() string { return "personnel" }

// User is the authentication identity backing a Personnel entry.
// At most one User per Personnel; unregistered staff have none.
type User struct {
	ID             uint `gorm:"primaryKey"`
	PID            uint `gorm:"column:pid;uniqueIndex;not null"` // clé étrangère vers Personnel
	Password       string `gorm:"not null"` // hashé
	DateRegistered time.Time
	Preferences    string // jetons séparés par des virgules, ex: "email=ready-1,email=validated"
	NewMessages    string // ids de projets avec nouveaux commentaires, séparés par des virgules
}

// HasPreference reports whether the comma-joined preference string carries
// the exact token. The single parser for the stringly preference field.
func (u *User) HasPreference(token string) bool {
	if u == nil || u.Preferences == "" {
		return false
	}
	for _, t := range strings.Split(u.Preferences, ",") {
		if strings.TrimSpace(t) == token {
			return true
		}
	}
	return false
}

// NewMessageIDs returns the pending-notification project ids.
func (u *User) NewMessageIDs() []string {
	if u == nil || u.NewMessages == "" {
		return nil
	}
	return strings.Split(u.NewMessages, ",")
}

// FullName formats "Firstname Name" for display and mail headers.
func (p *Personnel) FullName() string {
	return strings.TrimSpace(p.Firstname + " " + p.Name)
}

// IsManagement reports an elevated review role.
func (p *Personnel) IsManagement() bool {
	for _, role := range catalog.Roles {
		if p.Role == role {
			return true
		}
	}
	return false
}
