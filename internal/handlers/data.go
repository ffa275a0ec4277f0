package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/catalog"
	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/httpx"
	"github.com/nxpat/projets-lfs/internal/models"
	"github.com/nxpat/projets-lfs/internal/reporting"
	"github.com/nxpat/projets-lfs/internal/schoolyear"
	"github.com/nxpat/projets-lfs/internal/workflow"
)

// DataHandler serves the reporting pages: distributions, chart tables,
// timeline, budget recap and the directory/choice lists behind the form.
type DataHandler struct {
	DB *gorm.DB
	SY *schoolyear.Resolver
}

func NewDataHandler(db *gorm.DB, sy *schoolyear.Resolver) *DataHandler {
	return &DataHandler{DB: db, SY: sy}
}

// Analysis: GET /data?sy=... – the distribution tables and chart-ready
// structures over the non-draft projects of one school year (default: the
// current one, "all" for every year).
func (h *DataHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentActor(h.DB, r); !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	_, _, current, err := h.SY.Resolve(nil, nil)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	sy := strings.TrimSpace(r.URL.Query().Get("sy"))
	timeframe := sy
	switch sy {
	case "":
		sy, timeframe = current, current
	case "all":
		sy, timeframe = "", ""
	}

	ds, err := reporting.Load(h.DB, reporting.Filter{
		SchoolYear: sy,
		Department: strings.TrimSpace(r.URL.Query().Get("department")),
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}

	yearDivisions := h.SY.Divisions(current)
	if sy != "" {
		yearDivisions = h.SY.Divisions(sy)
	}
	dist := ds.Distribute(yearDivisions)
	rows := reporting.PERows(dist)

	timeline, err := ds.BuildTimeline(h.DB, timeframe)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"school_year":  sy,
		"distribution": dist,
		"pe_chart": map[string]any{
			"rows":   rows,
			"colors": reporting.TintPalette(rows),
		},
		"timeline": timeline,
	})
}

// Budget: GET /data/budget?sy=... – per-project budget recap, management
// only.
func (h *DataHandler) Budget(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if !actor.IsManagement() {
		httpx.JSONError(w, http.StatusForbidden, workflow.ErrForbidden.Error(), nil)
		return
	}
	_, _, current, err := h.SY.Resolve(nil, nil)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	sy := strings.TrimSpace(r.URL.Query().Get("sy"))
	if sy == "" {
		sy = current
	}

	var projects []models.Project
	if err := h.DB.Where("school_year = ? AND status <> ?", sy, "draft").Order("id").Find(&projects).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}

	totals := map[string]int{}
	items := make([]map[string]any, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		if !p.HasBudget() {
			continue
		}
		entry := map[string]any{
			"id":     p.ID,
			"title":  p.Title,
			"status": p.Status,
			"dates":  reporting.FormatDates(p.StartDate, p.EndDate),
		}
		for _, kind := range models.BudgetKinds {
			for year := 1; year <= 2; year++ {
				amount, comment := p.BudgetSlot(kind, year)
				if *amount == 0 {
					continue
				}
				slot := kind + "_" + strconv.Itoa(year)
				entry[slot] = *amount
				if *comment != "" {
					entry[slot+"_comment"] = *comment
				}
				totals[slot] += *amount
			}
		}
		items = append(items, entry)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"school_year": sy,
		"items":       items,
		"totals":      totals,
	})
}

// Export: GET /data/export?sy=... – flat project rows for spreadsheet
// export, management only. File generation is left to the client.
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if !actor.IsManagement() {
		httpx.JSONError(w, http.StatusForbidden, workflow.ErrForbidden.Error(), nil)
		return
	}
	_, _, current, err := h.SY.Resolve(nil, nil)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	sy := strings.TrimSpace(r.URL.Query().Get("sy"))
	if sy == "" {
		sy = current
	}

	var projects []models.Project
	if err := h.DB.Where("school_year = ? AND status <> ?", sy, "draft").Order("id").Find(&projects).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}

	columns := []string{
		"id", "titre", "axe", "priorité", "parcours", "compétences",
		"classes", "départements", "dates", "élèves", "lieu", "statut",
	}
	for _, kind := range models.BudgetKinds {
		for year := 1; year <= 2; year++ {
			columns = append(columns, "budget_"+kind+"_"+strconv.Itoa(year))
		}
	}
	rows := make([][]any, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		row := []any{
			p.ID, p.Title, p.Axis, p.Priority, p.Paths, p.Skills,
			divisions.Names(p.DivisionList(), ", "), p.Departments,
			reporting.FormatDates(p.StartDate, p.EndDate),
			p.NbStudents, p.Location, p.Status,
		}
		for _, kind := range models.BudgetKinds {
			for year := 1; year <= 2; year++ {
				amount, _ := p.BudgetSlot(kind, year)
				row = append(row, *amount)
			}
		}
		rows = append(rows, row)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"school_year": sy,
		"columns":     columns,
		"rows":        rows,
	})
}

// Choices: GET /choices – the closed vocabularies and the staff directory
// feeding the project form.
func (h *DataHandler) Choices(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentActor(h.DB, r); !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	_, _, label, err := h.SY.Resolve(nil, nil)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}

	var staff []models.Personnel
	if err := h.DB.Order("name, firstname").Find(&staff).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	people := make([]map[string]any, 0, len(staff))
	for _, p := range staff {
		people = append(people, map[string]any{
			"id":         p.ID,
			"name":       p.FullName(),
			"department": p.Department,
		})
	}

	codes := h.SY.Divisions(label)
	divs := make([]map[string]string, 0, len(codes))
	for _, c := range codes {
		divs = append(divs, map[string]string{"code": c, "name": divisions.Name(c)})
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"school_year":  label,
		"axes":         catalog.Axes,
		"priorities":   catalog.Priorities,
		"departments":  catalog.Departments,
		"paths":        catalog.Paths,
		"skills":       catalog.Skills,
		"modes":        catalog.Modes,
		"requirements": catalog.Requirements,
		"locations":    catalog.Locations,
		"divisions":    divs,
		"personnel":    people,
	})
}
