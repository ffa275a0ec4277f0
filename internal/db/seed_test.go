package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/models"
)

func TestSeedIdempotent(t *testing.T) {
	d, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.AutoMigrate(&models.Personnel{}, &models.User{}); err != nil {
		t.Fatal(err)
	}
	seed(d)
	seed(d)
	var count int64
	d.Model(&models.Personnel{}).Count(&count)
	if count < 3 {
		t.Fatalf("expected at least 3 personnel rows got %d", count)
	}
	var admins int64
	d.Model(&models.Personnel{}).Where("role = ?", "admin").Count(&admins)
	if admins != 1 {
		t.Fatalf("expected exactly 1 admin after double seed got %d", admins)
	}
}

func TestImportStaffRejectsUnknownDepartment(t *testing.T) {
	d, err := gorm.Open(sqlite.Open("file:importstaff?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.AutoMigrate(&models.Personnel{}); err != nil {
		t.Fatal(err)
	}
	added, err := ImportStaff(d, []models.Personnel{
		{Email: "prof@lfs.example", Name: "Durand", Firstname: "Anne", Department: "Langues"},
		{Email: "intrus@lfs.example", Name: "Intrus", Firstname: "Un", Department: "Inconnu"},
		{Email: "gestion@lfs.example", Name: "Gestionnaire", Firstname: "La", Department: "Administration", Role: "gestion"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Fatalf("expected 2 rows imported got %d", added)
	}
	var count int64
	d.Model(&models.Personnel{}).Where("email = ?", "intrus@lfs.example").Count(&count)
	if count != 0 {
		t.Fatalf("unknown department must be skipped")
	}
}
