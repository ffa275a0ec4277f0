package reporting

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/models"
)

// TimelineRow is one project line of the timeline table: one cell per month
// of the window, 1 when the project's date range touches that month.
type TimelineRow struct {
	Ref
	Dates     string
	Divisions string
	Cells     []int
}

// Timeline is the chart-ready per-month activity table.
type Timeline struct {
	Title  string // x-axis title
	Months []string
	Rows   []TimelineRow
}

var frenchMonths = []string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var frenchMonthsTitle = []string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

var yearRE = regexp.MustCompile(`\b\d{4}\b`)

// BuildTimeline computes the timeline over the dataset for a timeframe:
// a school-year label, a "Projet d'établissement YYYY - YYYY" period, or ""
// for all recorded years. July and August months without any activity are
// dropped from the window.
func (ds *Dataset) BuildTimeline(db *gorm.DB, timeframe string) (*Timeline, error) {
	startMonth, endMonth, err := monthWindow(db, timeframe)
	if err != nil {
		return nil, err
	}

	t := &Timeline{Title: timelineTitle(timeframe)}
	for m := startMonth; m <= endMonth; m++ {
		t.Months = append(t.Months, frenchMonthsTitle[(m-1)%12])
	}

	for i := range ds.Projects {
		p := &ds.Projects[i]
		firstYear, _, ok := parseYears(p.SchoolYear)
		if !ok {
			continue
		}
		cells := make([]int, len(t.Months))
		from := monthIndex(p.StartDate, firstYear)
		to := monthIndex(p.EndDate, firstYear)
		for m := from; m <= to; m++ {
			if m >= startMonth && m <= endMonth {
				cells[m-startMonth] = 1
			}
		}
		t.Rows = append(t.Rows, TimelineRow{
			Ref:       ref(p),
			Dates:     FormatDates(p.StartDate, p.EndDate),
			Divisions: divisions.Names(p.DivisionList(), ", "),
			Cells:     cells,
		})
	}

	t.dropQuietMonth("Juillet")
	t.dropQuietMonth("Août")
	return t, nil
}

// monthWindow resolves the continuous month range of the timeframe. Months
// past December are encoded as month+12 so a September-August school year is
// the range [9, 20].
func monthWindow(db *gorm.DB, timeframe string) (int, int, error) {
	single := timeframe != "" && timeframe[0] >= '0' && timeframe[0] <= '9'
	if single {
		var sy models.SchoolYear
		if err := db.Where("sy = ?", timeframe).First(&sy).Error; err != nil {
			// année inconnue : fenêtre scolaire standard
			return int(time.September), int(time.August) + 12, nil
		}
		return spanMonths(sy.SYStart, sy.SYEnd)
	}

	var years []models.SchoolYear
	if err := db.Order("sy_start").Find(&years).Error; err != nil {
		return 0, 0, err
	}
	if timeframe != "" {
		// période du projet d'établissement
		bounds := yearRE.FindAllString(timeframe, 2)
		if len(bounds) == 2 {
			from, _ := strconv.Atoi(bounds[0])
			to, _ := strconv.Atoi(bounds[1])
			kept := years[:0]
			for _, sy := range years {
				if sy.SYStart.Year() >= from && sy.SYEnd.Year() <= to {
					kept = append(kept, sy)
				}
			}
			years = kept
		}
	}

	start, end := 0, 0
	for _, sy := range years {
		s, e, err := spanMonths(sy.SYStart, sy.SYEnd)
		if err != nil {
			continue
		}
		if start == 0 || s < start {
			start = s
		}
		if e > end {
			end = e
		}
	}
	if start == 0 {
		return int(time.September), int(time.August) + 12, nil
	}
	return start, end, nil
}

func spanMonths(start, end time.Time) (int, int, error) {
	s := int(start.Month())
	e := int(end.Month())
	if end.Year() > start.Year() {
		e += 12
	}
	if e < s {
		return 0, 0, fmt.Errorf("reporting: fenêtre scolaire incohérente (%s, %s)", start, end)
	}
	return s, e, nil
}

// monthIndex places a date on the school-year month scale anchored at the
// label's first calendar year.
func monthIndex(date time.Time, firstYear int) int {
	m := int(date.Month())
	if date.Year() > firstYear {
		m += 12 * (date.Year() - firstYear)
	}
	return m
}

func parseYears(label string) (int, int, bool) {
	bounds := yearRE.FindAllString(label, 2)
	if len(bounds) != 2 {
		return 0, 0, false
	}
	a, _ := strconv.Atoi(bounds[0])
	b, _ := strconv.Atoi(bounds[1])
	return a, b, true
}

func timelineTitle(timeframe string) string {
	switch {
	case timeframe == "":
		return "Années scolaires"
	case timeframe[0] >= '0' && timeframe[0] <= '9':
		return "Année scolaire " + timeframe
	default:
		bounds := yearRE.FindAllString(timeframe, 2)
		if len(bounds) == 2 {
			return "Projet d'établissement " + bounds[0] + " - " + bounds[1]
		}
		return timeframe
	}
}

// dropQuietMonth removes the named month columns when no project touches
// them, trimming the empty July/August edges of the window.
func (t *Timeline) dropQuietMonth(label string) {
	for i := 0; i < len(t.Months); {
		if t.Months[i] != label || t.columnActive(i) {
			i++
			continue
		}
		t.Months = append(t.Months[:i], t.Months[i+1:]...)
		for r := range t.Rows {
			t.Rows[r].Cells = append(t.Rows[r].Cells[:i], t.Rows[r].Cells[i+1:]...)
		}
	}
}

func (t *Timeline) columnActive(i int) bool {
	for _, row := range t.Rows {
		if row.Cells[i] != 0 {
			return true
		}
	}
	return false
}

// FormatDates renders a project date range in French: "le 2 janvier 2026" or
// "du 2 janvier 2026 au 15 mars 2026".
func FormatDates(start, end time.Time) string {
	if start.Equal(end) || end.IsZero() {
		return fmt.Sprintf("le %d %s %d", start.Day(), frenchMonths[start.Month()-1], start.Year())
	}
	return fmt.Sprintf("du %d %s %d au %d %s %d",
		start.Day(), frenchMonths[start.Month()-1], start.Year(),
		end.Day(), frenchMonths[end.Month()-1], end.Year())
}
