// Package reporting builds the tabular distributions and chart-ready tables
// over the project dataset. Read-only: it never writes and does not need to
// be transactionally consistent with the workflow.
package reporting

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/models"
)

// Filter restricts the project set under analysis.
type Filter struct {
	SchoolYear    string // "" = toutes années
	Department    string // "" = tous départements
	IncludeDrafts bool
}

// Dataset is a loaded, filtered project set with the member index needed by
// the staff distribution.
type Dataset struct {
	Projects []models.Project
	Staff    []models.Personnel // annuaire complet, trié par nom

	members map[uint][]uint // project id -> personnel ids
}

// Load reads the project set matching the filter. Members are preloaded;
// drafts are excluded unless requested.
func Load(db *gorm.DB, f Filter) (*Dataset, error) {
	q := db.Preload("Members")
	if !f.IncludeDrafts {
		q = q.Where("status <> ?", "draft")
	}
	if f.SchoolYear != "" {
		q = q.Where("school_year = ?", f.SchoolYear)
	}
	if f.Department != "" {
		q = q.Where("departments LIKE ?", "%"+f.Department+"%")
	}
	var projects []models.Project
	if err := q.Order("id").Find(&projects).Error; err != nil {
		return nil, err
	}
	// le filtre LIKE est large, revérifie sur la liste découpée
	if f.Department != "" {
		kept := projects[:0]
		for _, p := range projects {
			for _, d := range p.DepartmentList() {
				if d == f.Department {
					kept = append(kept, p)
					break
				}
			}
		}
		projects = kept
	}

	var staff []models.Personnel
	if err := db.Order("name, firstname").Find(&staff).Error; err != nil {
		return nil, err
	}

	ds := &Dataset{Projects: projects, Staff: staff, members: map[uint][]uint{}}
	for _, p := range projects {
		for _, m := range p.Members {
			ds.members[p.ID] = append(ds.members[p.ID], m.PID)
		}
	}
	return ds, nil
}

// Ref identifies a project in a drill-down list.
type Ref struct {
	ID    uint
	Title string
}

func ref(p *models.Project) Ref { return Ref{ID: p.ID, Title: p.Title} }

// pct formats n/d as a whole percentage, 0% when the denominator is zero.
func pct(n, d int) string {
	if d == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", float64(n)/float64(d)*100)
}

// matching returns the refs of projects satisfying the predicate.
func (ds *Dataset) matching(keep func(*models.Project) bool) []Ref {
	var out []Ref
	for i := range ds.Projects {
		if keep(&ds.Projects[i]) {
			out = append(out, ref(&ds.Projects[i]))
		}
	}
	return out
}

func containsCSV(csv, v string) bool {
	for _, x := range strings.Split(csv, ",") {
		if x == v {
			return true
		}
	}
	return false
}
