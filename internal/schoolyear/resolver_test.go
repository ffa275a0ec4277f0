package schoolyear

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/models"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.SchoolYear{}, &models.Project{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testResolver(t *testing.T, name string, now time.Time) (*Resolver, *gorm.DB) {
	db := setupTestDB(t, name)
	r := NewResolver(db)
	r.Now = func() time.Time { return now }
	return r, db
}

func TestResolveCreatesAndReuses(t *testing.T) {
	now := time.Date(2025, time.October, 6, 10, 0, 0, 0, time.UTC)
	r, db := testResolver(t, t.Name(), now)

	start, end, label, err := r.Resolve(nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if label != "2025 - 2026" {
		t.Fatalf("label %q", label)
	}
	if start.Month() != time.September || start.Year() != 2025 {
		t.Fatalf("start %v", start)
	}
	if end.Month() != time.August || end.Year() != 2026 {
		t.Fatalf("end %v", end)
	}

	// idempotent le même jour
	if _, _, _, err := r.Resolve(nil, nil); err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	var count int64
	db.Model(&models.SchoolYear{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected a single school-year row, got %d", count)
	}
}

func TestResolveBeforeSeptember(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	r, _ := testResolver(t, t.Name(), now)
	_, _, label, err := r.Resolve(nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if label != "2025 - 2026" {
		t.Fatalf("March 2026 belongs to 2025 - 2026, got %q", label)
	}
}

func TestResolveSubstitutesOutOfWindowDates(t *testing.T) {
	now := time.Date(2025, time.October, 6, 10, 0, 0, 0, time.UTC)
	r, _ := testResolver(t, t.Name(), now)

	// fenêtre demandée entièrement dans le passé
	reqStart := time.Date(2023, time.September, 1, 0, 0, 0, 0, time.UTC)
	reqEnd := time.Date(2024, time.August, 31, 0, 0, 0, 0, time.UTC)
	_, _, label, err := r.Resolve(&reqStart, &reqEnd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if label != "2025 - 2026" {
		t.Fatalf("out-of-window dates must be silently replaced, got %q", label)
	}

	// fenêtre demandée contenant aujourd'hui : honorée
	reqStart = time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC)
	reqEnd = time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)
	start, end, _, err := r.Resolve(&reqStart, &reqEnd)
	if err != nil {
		t.Fatalf("resolve custom: %v", err)
	}
	if !start.Equal(reqStart) || !end.Equal(reqEnd) {
		t.Fatalf("in-window dates must be honored, got %v / %v", start, end)
	}
}

func TestDivisionsFallbackAndPersistence(t *testing.T) {
	now := time.Date(2025, time.October, 6, 10, 0, 0, 0, time.UTC)
	r, db := testResolver(t, t.Name(), now)

	// sans ligne persistée : échelle par défaut
	got := r.Divisions("2025 - 2026")
	if strings.Join(got, ",") != strings.Join(divisions.DefaultLadder(), ",") {
		t.Fatalf("expected default ladder, got %v", got)
	}

	if _, _, _, err := r.Resolve(nil, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := db.Model(&models.SchoolYear{}).Where("sy = ?", "2025 - 2026").
		Update("divisions", "6eA,cm1B").Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	got = r.Divisions("2025 - 2026")
	if strings.Join(got, ",") != "6eA,cm1B" {
		t.Fatalf("expected persisted list, got %v", got)
	}
}

func TestSeedDivisionsInheritsPriorYear(t *testing.T) {
	now := time.Date(2026, time.September, 2, 10, 0, 0, 0, time.UTC)
	r, db := testResolver(t, t.Name(), now)

	prior := models.SchoolYear{
		SY:        "2025 - 2026",
		SYStart:   time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		SYEnd:     time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC),
		Divisions: "6eA,6eB,cm2A",
	}
	if err := db.Create(&prior).Error; err != nil {
		t.Fatalf("seed prior year: %v", err)
	}

	_, _, label, err := r.Resolve(nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if label != "2026 - 2027" {
		t.Fatalf("label %q", label)
	}
	var sy models.SchoolYear
	if err := db.Where("sy = ?", label).First(&sy).Error; err != nil {
		t.Fatalf("new year row: %v", err)
	}
	if sy.Divisions != prior.Divisions {
		t.Fatalf("new year must inherit divisions, got %q", sy.Divisions)
	}
}

func TestBackfillYearsFromProjects(t *testing.T) {
	now := time.Date(2025, time.October, 6, 10, 0, 0, 0, time.UTC)
	r, db := testResolver(t, t.Name(), now)

	old := models.Project{
		SchoolYear: "2024 - 2025", Axis: "a", Priority: "p", Mode: "m",
		Requirement: "yes", Location: "in",
		StartDate: time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC),
		Title:     "t", Objectives: "o", Description: "d",
		CreatedAt: now, UID: 1, ModifiedAt: now, ModifiedBy: 1, Status: "validated",
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}

	if _, _, _, err := r.Resolve(nil, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var sy models.SchoolYear
	if err := db.Where("sy = ?", "2024 - 2025").First(&sy).Error; err != nil {
		t.Fatalf("backfilled row: %v", err)
	}
	if sy.NbProjects != 1 {
		t.Fatalf("backfilled counter %d, want 1", sy.NbProjects)
	}
}

func TestParseLabel(t *testing.T) {
	a, b, ok := ParseLabel("2025 - 2026")
	if !ok || a != 2025 || b != 2026 {
		t.Fatalf("ParseLabel = %d %d %v", a, b, ok)
	}
	for _, bad := range []string{"", "2025", "2025 - 2027", "abcd - efgh"} {
		if _, _, ok := ParseLabel(bad); ok {
			t.Fatalf("ParseLabel(%q) must fail", bad)
		}
	}
}
