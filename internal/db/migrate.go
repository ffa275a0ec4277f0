package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nxpat/projets-lfs/internal/catalog"
	"github.com/nxpat/projets-lfs/internal/models"
)

func ConnectAndMigrate() (*gorm.DB, error) {
	dsn := GetNormalizedDSN()
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN est vide, vérifiez la configuration de l'environnement")
	}
	var db *gorm.DB
	var err error
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		fmt.Println("Retrying DB connection...", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	// Basic connectivity test
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	// Always print masked DSN once for diagnostics (before migrations for visibility)
	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	fmt.Println("[DB] Using DSN:", masked)
	// If MIGRATIONS=1 (or true) we run sql migrations via golang-migrate; otherwise keep AutoMigrate fallback (dev convenience)
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if migErr := AutoMigrate(db); migErr != nil {
			return nil, migErr
		}
	}

	// sanity check: ensure required core tables exist
	for _, table := range []string{"personnel", "users", "projects"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	// Seeding only when explicitly requested (e.g. development) via DB_SEED=1|true
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

// AutoMigrate creates/updates the full schema; shared with the test fixtures.
func AutoMigrate(db *gorm.DB) error {
	modelsToMigrate := []interface{}{
		&models.Personnel{}, &models.User{},
		&models.Project{}, &models.ProjectMember{}, &models.ProjectComment{}, &models.ProjectHistory{},
		&models.SchoolYear{}, &models.Dashboard{}, &models.QueuedAction{},
	}
	for _, m := range modelsToMigrate {
		if err := db.AutoMigrate(m); err != nil {
			fmt.Printf("[DB] AutoMigrate detailed error model=%T type=%T value=%#v\n", m, err, err)
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// seed fills the staff directory with a minimal development dataset.
func seed(db *gorm.DB) {
	_, _ = ImportStaff(db, []models.Personnel{
		{Email: "admin@lfs.example", Name: "Admin", Firstname: "Site", Department: "Administration", Role: "admin"},
		{Email: "direction@lfs.example", Name: "Proviseur", Firstname: "Le", Department: "Administration", Role: "direction"},
		{Email: "gestion@lfs.example", Name: "Gestionnaire", Firstname: "La", Department: "Administration", Role: "gestion"},
		{Email: "prof.lettres@lfs.example", Name: "Lettres", Firstname: "Prof", Department: "Arts et Lettres"},
		{Email: "prof.elem@lfs.example", Name: "Élémentaire", Firstname: "Prof", Department: "Élémentaire"},
	})
}

// ImportStaff insère les entrées absentes de l'annuaire et retourne le nombre
// de lignes créées. Les enseignants dont le département n'est pas répertorié
// sont ignorés ; le personnel avec un rôle (administration) est exempté.
func ImportStaff(db *gorm.DB, entries []models.Personnel) (int, error) {
	added := 0
	for _, p := range entries {
		if p.Role == "" && !catalog.ValidDepartment(p.Department) {
			continue
		}
		var existing models.Personnel
		err := db.Where("email = ?", p.Email).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&p).Error; err != nil {
				return added, err
			}
			added++
		} else if err != nil {
			return added, err
		}
	}
	return added, nil
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate file source.
func runSQLMigrations(dsn string) error {
	// golang-migrate expects DSN without gorm specific extras; reuse as-is (URL form supported)
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
