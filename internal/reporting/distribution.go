package reporting

import (
	"github.com/nxpat/projets-lfs/internal/catalog"
	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/models"
)

// Entry is one row of a distribution table.
type Entry struct {
	Category   string
	Count      int
	Percentage string
	Projects   []Ref
}

// Table is a distribution over one categorical dimension. Total is the
// denominator used for the percentages.
type Table struct {
	Entries []Entry
	Total   int
}

// PEEntry is one row of the projet d'établissement distribution: an axis row
// (Priority empty, percentage over the grand total) or a priority row
// (percentage relative to its axis, not the grand total).
type PEEntry struct {
	Axis       string
	Priority   string
	Count      int
	Percentage string
	Projects   []Ref
}

// Distribution aggregates every dimension for the data page.
type Distribution struct {
	Total int

	PE []PEEntry

	Departments Table
	Paths       Table
	Skills      Table
	Mode        Table
	Requirement Table
	Location    Table

	// staff participation, grouped by school section
	StaffSecondary    Table
	StaffElementary   Table
	StaffKindergarten Table
	StaffOther        Table

	// project divisions, grouped by school section; denominator is the count
	// of projects touching that section
	Divisions map[string]Table
}

// Distribute computes every distribution table over the dataset. All
// percentages are integer-rounded strings and zero-guarded: an empty dataset
// or an empty axis yields 0% everywhere, never a division error.
func (ds *Dataset) Distribute(yearDivisions []string) *Distribution {
	total := len(ds.Projects)
	d := &Distribution{Total: total, Divisions: map[string]Table{}}

	// axes et priorités du projet d'établissement
	for _, axis := range catalog.Axes {
		axisRefs := ds.matching(func(p *models.Project) bool { return p.Axis == axis })
		n := len(axisRefs)
		d.PE = append(d.PE, PEEntry{
			Axis:       axis,
			Count:      n,
			Percentage: pct(n, total),
			Projects:   axisRefs,
		})
		for _, priority := range catalog.Priorities[axis] {
			refs := ds.matching(func(p *models.Project) bool { return p.Priority == priority })
			d.PE = append(d.PE, PEEntry{
				Axis:       axis,
				Priority:   priority,
				Count:      len(refs),
				Percentage: pct(len(refs), n),
				Projects:   refs,
			})
		}
	}

	d.Departments = ds.table(catalog.Departments, total, func(p *models.Project, dep string) bool {
		return containsCSV(p.Departments, dep)
	})
	d.Paths = ds.table(catalog.Paths, total, func(p *models.Project, path string) bool {
		return containsCSV(p.Paths, path)
	})
	d.Skills = ds.table(catalog.Skills, total, func(p *models.Project, skill string) bool {
		return containsCSV(p.Skills, skill)
	})
	d.Mode = ds.table(catalog.Modes, total, func(p *models.Project, m string) bool {
		return p.Mode == m
	})

	var requirements, locations []string
	labels := map[string]string{}
	for _, c := range catalog.Requirements {
		requirements = append(requirements, c.Value)
		labels[c.Value] = c.Label
	}
	for _, c := range catalog.Locations {
		locations = append(locations, c.Value)
		labels[c.Value] = c.Label
	}
	d.Requirement = ds.table(requirements, total, func(p *models.Project, r string) bool {
		return p.Requirement == r
	})
	d.Location = ds.table(locations, total, func(p *models.Project, l string) bool {
		return p.Location == l
	})
	relabel(&d.Requirement, labels)
	relabel(&d.Location, labels)

	ds.staffTables(d)
	ds.divisionTables(d, yearDivisions)
	return d
}

// table computes one single-level distribution.
func (ds *Dataset) table(categories []string, total int, match func(*models.Project, string) bool) Table {
	t := Table{Total: total}
	for _, c := range categories {
		refs := ds.matching(func(p *models.Project) bool { return match(p, c) })
		t.Entries = append(t.Entries, Entry{
			Category:   c,
			Count:      len(refs),
			Percentage: pct(len(refs), total),
			Projects:   refs,
		})
	}
	return t
}

func relabel(t *Table, labels map[string]string) {
	for i := range t.Entries {
		if l, ok := labels[t.Entries[i].Category]; ok {
			t.Entries[i].Category = l
		}
	}
}

// staffTables computes the per-member participation, sectioned by the
// member's department. The denominator of each section is the number of
// projects involving that section.
func (ds *Dataset) staffTables(d *Distribution) {
	secondary := map[string]bool{}
	for _, dep := range catalog.SecondaryDepartments {
		secondary[dep] = true
	}

	inSection := func(p *models.Project, section string) bool {
		for _, dep := range p.DepartmentList() {
			switch section {
			case "secondary":
				if secondary[dep] {
					return true
				}
			case "elementary":
				if dep == "Élémentaire" {
					return true
				}
			case "kindergarten":
				if dep == "Maternelle" {
					return true
				}
			}
		}
		return false
	}
	nSecondary := len(ds.matching(func(p *models.Project) bool { return inSection(p, "secondary") }))
	nElementary := len(ds.matching(func(p *models.Project) bool { return inSection(p, "elementary") }))
	nKindergarten := len(ds.matching(func(p *models.Project) bool { return inSection(p, "kindergarten") }))
	nOther := len(ds.Projects) - nSecondary - nElementary - nKindergarten
	if nOther < 0 {
		nOther = 0
	}

	d.StaffSecondary = Table{Total: nSecondary}
	d.StaffElementary = Table{Total: nElementary}
	d.StaffKindergarten = Table{Total: nKindergarten}
	d.StaffOther = Table{Total: nOther}

	for i := range ds.Staff {
		member := &ds.Staff[i]
		refs := ds.matching(func(p *models.Project) bool {
			for _, pid := range ds.members[p.ID] {
				if pid == member.ID {
					return true
				}
			}
			return false
		})

		var t *Table
		switch {
		case secondary[member.Department]:
			t = &d.StaffSecondary
		case member.Department == "Élémentaire":
			t = &d.StaffElementary
		case member.Department == "Maternelle":
			t = &d.StaffKindergarten
		default:
			t = &d.StaffOther
		}
		t.Entries = append(t.Entries, Entry{
			Category:   member.Name + " " + member.Firstname,
			Count:      len(refs),
			Percentage: pct(len(refs), t.Total),
			Projects:   refs,
		})
	}
}

// divisionTables computes per-division participation inside each school
// section of the year's division list.
func (ds *Dataset) divisionTables(d *Distribution, yearDivisions []string) {
	for section, codes := range divisions.BySection(yearDivisions) {
		n := len(ds.matching(func(p *models.Project) bool {
			for _, code := range p.DivisionList() {
				for _, c := range codes {
					if code == c {
						return true
					}
				}
			}
			return false
		}))
		t := Table{Total: n}
		for _, code := range codes {
			refs := ds.matching(func(p *models.Project) bool {
				return containsCSV(p.Divisions, code)
			})
			t.Entries = append(t.Entries, Entry{
				Category:   divisions.Name(code),
				Count:      len(refs),
				Percentage: pct(len(refs), n),
				Projects:   refs,
			})
		}
		d.Divisions[section] = t
	}
}
