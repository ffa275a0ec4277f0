// Package schoolyear computes and persists academic-year boundaries.
package schoolyear

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/models"
)

// Resolver supplies the current school-year window and keeps the SchoolYear
// table in sync with it. Now is injectable for tests; nil means time.Now.
type Resolver struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewResolver(db *gorm.DB) *Resolver { return &Resolver{DB: db} }

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Label formats the "YYYY - YYYY" school-year label.
func Label(start, end time.Time) string {
	return fmt.Sprintf("%d - %d", start.Year(), end.Year())
}

// DefaultDates returns the September 1 - August 31 window spanning today.
func (r *Resolver) DefaultDates() (time.Time, time.Time) {
	today := r.now()
	year := today.Year()
	if today.Month() < time.September {
		year--
	}
	start := time.Date(year, time.September, 1, 0, 0, 0, 0, today.Location())
	end := time.Date(year+1, time.August, 31, 0, 0, 0, 0, today.Location())
	return start, end
}

// Resolve returns the current school-year window and label, persisting the
// SchoolYear row on first use. Requested boundaries are honored only when
// today falls inside them; otherwise the computed default is silently
// substituted, so callers must not rely on requested dates being echoed
// back. Idempotent across repeated calls within the same day.
func (r *Resolver) Resolve(requestedStart, requestedEnd *time.Time) (time.Time, time.Time, string, error) {
	start, end := r.DefaultDates()
	if requestedStart != nil && requestedEnd != nil {
		today := r.now()
		if !today.Before(*requestedStart) && !today.After(*requestedEnd) {
			start, end = *requestedStart, *requestedEnd
		}
	}
	label := Label(start, end)

	var sy models.SchoolYear
	err := r.DB.Where("sy = ?", label).First(&sy).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		sy = models.SchoolYear{
			SY:        label,
			SYStart:   start,
			SYEnd:     end,
			Divisions: strings.Join(r.seedDivisions(start), ","),
		}
		if err := r.DB.Create(&sy).Error; err != nil {
			return start, end, label, err
		}
		if err := r.backfillYears(&sy); err != nil {
			return start, end, label, err
		}
	case err != nil:
		return start, end, label, err
	default:
		// keep persisted dates aligned with the resolved (or corrected) window
		if !sy.SYStart.Equal(start) || !sy.SYEnd.Equal(end) {
			sy.SYStart, sy.SYEnd = start, end
			if err := r.DB.Save(&sy).Error; err != nil {
				return start, end, label, err
			}
		}
	}
	return start, end, label, nil
}

// Divisions returns the canonical division list valid for a school-year
// label, falling back to the default ladder.
func (r *Resolver) Divisions(label string) []string {
	var sy models.SchoolYear
	if err := r.DB.Where("sy = ?", label).First(&sy).Error; err != nil || sy.Divisions == "" {
		return divisions.DefaultLadder()
	}
	return strings.Split(sy.Divisions, ",")
}

// seedDivisions copies the most recent prior year's division list, or falls
// back to the default ladder when the table is empty.
func (r *Resolver) seedDivisions(start time.Time) []string {
	var prior models.SchoolYear
	err := r.DB.Where("sy_start < ?", start).Order("sy_start desc").First(&prior).Error
	if err != nil || prior.Divisions == "" {
		return divisions.DefaultLadder()
	}
	return strings.Split(prior.Divisions, ",")
}

// backfillYears creates SchoolYear rows for labels already present in
// historical project data but missing from the table, inheriting the
// current year's division list.
func (r *Resolver) backfillYears(current *models.SchoolYear) error {
	var labels []string
	if err := r.DB.Model(&models.Project{}).Distinct("school_year").Pluck("school_year", &labels).Error; err != nil {
		// table may not exist yet on first boot
		return nil
	}
	for _, label := range labels {
		if label == "" || label == current.SY {
			continue
		}
		var count int64
		if err := r.DB.Model(&models.SchoolYear{}).Where("sy = ?", label).Count(&count).Error; err != nil || count > 0 {
			continue
		}
		startYear, endYear, ok := ParseLabel(label)
		if !ok {
			continue
		}
		var nb int64
		r.DB.Model(&models.Project{}).Where("school_year = ?", label).Count(&nb)
		sy := models.SchoolYear{
			SY:         label,
			SYStart:    time.Date(startYear, time.September, 1, 0, 0, 0, 0, current.SYStart.Location()),
			SYEnd:      time.Date(endYear, time.August, 31, 0, 0, 0, 0, current.SYStart.Location()),
			NbProjects: int(nb),
			Divisions:  current.Divisions,
		}
		if err := r.DB.Create(&sy).Error; err != nil {
			return err
		}
	}
	return nil
}

// ParseLabel splits a "YYYY - YYYY" label into its two calendar years.
func ParseLabel(label string) (int, int, bool) {
	parts := strings.Split(label, " - ")
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || b != a+1 {
		return 0, 0, false
	}
	return a, b, true
}
