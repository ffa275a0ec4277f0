package models

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/catalog"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&Personnel{}, &User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// La colonne de la clé étrangère doit s'appeler pid : les requêtes SQL
// brutes et les migrations SQL utilisent ce nom.
func TestUserPIDColumnName(t *testing.T) {
	db := setupTestDB(t, t.Name())
	p := Personnel{Email: "prof@lfs.example", Name: "Durand", Firstname: "Anne", Department: "Langues"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed personnel: %v", err)
	}
	u := User{PID: p.ID, Password: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	var got uint
	if err := db.Raw("SELECT pid FROM users WHERE id = ?", u.ID).Scan(&got).Error; err != nil {
		t.Fatalf("colonne pid absente: %v", err)
	}
	if got != p.ID {
		t.Fatalf("pid = %d, attendu %d", got, p.ID)
	}

	var found User
	if err := db.Where("pid = ?", p.ID).First(&found).Error; err != nil {
		t.Fatalf("recherche par pid: %v", err)
	}
	if found.ID != u.ID {
		t.Fatalf("utilisateur %d, attendu %d", found.ID, u.ID)
	}
}

func TestIsManagementMatchesRoles(t *testing.T) {
	for _, role := range catalog.Roles {
		p := Personnel{Role: role}
		if !p.IsManagement() {
			t.Fatalf("role %q doit être considéré comme gestionnaire", role)
		}
	}
	for _, role := range []string{"", "prof", "Direction"} {
		p := Personnel{Role: role}
		if p.IsManagement() {
			t.Fatalf("role %q ne doit pas être considéré comme gestionnaire", role)
		}
	}
}

func TestHasPreference(t *testing.T) {
	var nobody *User
	if nobody.HasPreference("email=ready-1") {
		t.Fatalf("nil user has no preference")
	}
	u := &User{Preferences: "email=ready-1, email=default-c"}
	if !u.HasPreference("email=ready-1") || !u.HasPreference("email=default-c") {
		t.Fatalf("tokens must be found, spaces ignored")
	}
	if u.HasPreference("email=validated") {
		t.Fatalf("absent token must not match")
	}
}
