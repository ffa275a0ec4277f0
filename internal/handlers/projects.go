package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/catalog"
	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/httpx"
	"github.com/nxpat/projets-lfs/internal/models"
	"github.com/nxpat/projets-lfs/internal/validation"
	"github.com/nxpat/projets-lfs/internal/workflow"
)

// ProjectHandler exposes the project workflow over JSON.
type ProjectHandler struct {
	DB  *gorm.DB
	Svc *workflow.Service
}

func NewProjectHandler(db *gorm.DB, svc *workflow.Service) *ProjectHandler {
	return &ProjectHandler{DB: db, Svc: svc}
}

// projectForm is the submitted JSON payload.
type projectForm struct {
	Title       string   `json:"title"`
	Objectives  string   `json:"objectives"`
	Description string   `json:"description"`
	Indicators  string   `json:"indicators"`
	Website     string   `json:"website"`
	StartDate   string   `json:"start_date"` // "2006-01-02"
	EndDate     string   `json:"end_date"`   // optionnel
	Priority    string   `json:"priority"`
	Paths       []string `json:"paths"`
	Skills      []string `json:"skills"`
	Divisions   []string `json:"divisions"`
	Members     []uint   `json:"members"`
	Mode        string   `json:"mode"`
	Requirement string   `json:"requirement"`
	Location    string   `json:"location"`
	IsRecurring bool     `json:"is_recurring"`
	NbStudents  int      `json:"nb_students"`
	Students    string   `json:"students"`

	FieldtripAddress   string `json:"fieldtrip_address"`
	FieldtripExtPeople string `json:"fieldtrip_ext_people"`
	FieldtripImpact    string `json:"fieldtrip_impact"`

	Budgets        map[string]int    `json:"budgets"`
	BudgetComments map[string]string `json:"budget_comments"`

	SchoolYear string `json:"school_year"` // "current" | "next"
	Status     string `json:"status"`      // draft | ready-1 | ready | adjust
}

func (f *projectForm) validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("title", f.Title, v)
	validation.Required("objectives", f.Objectives, v)
	validation.Required("description", f.Description, v)
	validation.Required("start_date", f.StartDate, v)
	validation.Required("priority", f.Priority, v)
	if !catalog.ValidPriority(f.Priority) {
		v["priority"] = "unknown_choice"
	}
	validation.OneOf("mode", f.Mode, catalog.Modes, v)
	if !catalog.ValidRequirement(f.Requirement) {
		v["requirement"] = "unknown_choice"
	}
	if !catalog.ValidLocation(f.Location) {
		v["location"] = "unknown_choice"
	}
	if len(f.Divisions) == 0 {
		v["divisions"] = "required"
	}
	if len(f.Members) == 0 {
		v["members"] = "required"
	}
	validation.NonNegativeInt("nb_students", f.NbStudents, v)
	if st := workflow.Status(f.Status); !st.Known() && st != workflow.StatusAdjust {
		v["status"] = "unknown_choice"
	}
	if f.StartDate != "" && f.EndDate != "" {
		start, err1 := time.Parse("2006-01-02", f.StartDate)
		end, err2 := time.Parse("2006-01-02", f.EndDate)
		if err1 == nil && err2 == nil {
			validation.DateOrder("end_date", start, end, v)
		}
	}
	if f.Location == "outer" || f.Location == "trip" {
		validation.Required("fieldtrip_address", f.FieldtripAddress, v)
		validation.Required("fieldtrip_impact", f.FieldtripImpact, v)
	}
	return v
}

func (f *projectForm) toInput(id uint) (workflow.ProjectInput, error) {
	start, err := time.Parse("2006-01-02", f.StartDate)
	if err != nil {
		return workflow.ProjectInput{}, err
	}
	in := workflow.ProjectInput{
		ID:                 id,
		Title:              f.Title,
		Objectives:         f.Objectives,
		Description:        f.Description,
		Indicators:         f.Indicators,
		Website:            f.Website,
		StartDate:          start,
		Priority:           f.Priority,
		Paths:              f.Paths,
		Skills:             f.Skills,
		Divisions:          f.Divisions,
		Members:            f.Members,
		Mode:               f.Mode,
		Requirement:        f.Requirement,
		Location:           f.Location,
		IsRecurring:        f.IsRecurring,
		NbStudents:         f.NbStudents,
		Students:           f.Students,
		FieldtripAddress:   f.FieldtripAddress,
		FieldtripExtPeople: f.FieldtripExtPeople,
		FieldtripImpact:    f.FieldtripImpact,
		Budgets:            f.Budgets,
		BudgetComments:     f.BudgetComments,
		SchoolYearChoice:   f.SchoolYear,
		Status:             f.Status,
	}
	if f.EndDate != "" {
		end, err := time.Parse("2006-01-02", f.EndDate)
		if err != nil {
			return workflow.ProjectInput{}, err
		}
		in.EndDate = &end
	}
	return in, nil
}

// List: GET /projects – the listing every signed-in user sees. Drafts and
// first requests of other teams are hidden; the rest is school-public.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	q := h.DB.Preload("Members").Order("id desc")
	if sy := strings.TrimSpace(r.URL.Query().Get("sy")); sy != "" {
		q = q.Where("school_year = ?", sy)
	}
	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	// regroupement par étape du circuit de validation, puis du plus récent
	sort.SliceStable(projects, func(i, j int) bool {
		ri, rj := workflow.Status(projects[i].Status).Rank(), workflow.Status(projects[j].Status).Rank()
		if ri != rj {
			return ri < rj
		}
		return projects[i].ID > projects[j].ID
	})
	items := make([]map[string]any, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		if !actor.CanView(p) {
			continue
		}
		items = append(items, h.summary(p, actor))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// Get: GET /projects/{id} – the fiche projet; clears the reader's
// new-message marker for this project.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, project, ok := h.load(w, r)
	if !ok {
		return
	}
	if !actor.CanView(project) {
		httpx.JSONError(w, http.StatusForbidden, workflow.ErrForbidden.Error(), nil)
		return
	}
	if err := h.Svc.MarkMessagesRead(actor, project.ID); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, h.detail(project, actor))
}

// Create: POST /projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, 0)
}

// Update: POST /projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	h.save(w, r, id)
}

func (h *ProjectHandler) save(w http.ResponseWriter, r *http.Request, id uint) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var form projectForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if v := form.validate(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	in, err := form.toInput(id)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_date", nil)
		return
	}
	project, warning, err := h.Svc.Save(actor, in)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	resp := h.detail(project, actor)
	if warning != "" {
		resp["warning"] = warning
	}
	httpx.JSON(w, status, resp)
}

// Transition endpoints: POST /projects/{id}/{validate|reject|devalidate}
func (h *ProjectHandler) Validate(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.Validate)
}

func (h *ProjectHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.Reject)
}

func (h *ProjectHandler) Devalidate(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.Devalidate)
}

func (h *ProjectHandler) decide(w http.ResponseWriter, r *http.Request, op func(workflow.Actor, uint) (*models.Project, string, error)) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	project, warning, err := op(actor, id)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	resp := h.detail(project, actor)
	if warning != "" {
		resp["warning"] = warning
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// Delete: POST /projects/{id}/delete
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.Delete(actor, id); err != nil {
		writeWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Duplicate: POST /projects/{id}/duplicate
func (h *ProjectHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	project, err := h.Svc.Duplicate(actor, id)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.detail(project, actor))
}

// Comments: GET/POST /projects/{id}/comments
func (h *ProjectHandler) Comments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listComments(w, r)
	case http.MethodPost:
		h.addComment(w, r)
	default:
		w.Header().Set("Allow", "GET,POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (h *ProjectHandler) listComments(w http.ResponseWriter, r *http.Request) {
	actor, project, ok := h.load(w, r)
	if !ok {
		return
	}
	if !actor.CanView(project) {
		httpx.JSONError(w, http.StatusForbidden, workflow.ErrForbidden.Error(), nil)
		return
	}
	var comments []models.ProjectComment
	if err := h.DB.Where("project_id = ?", project.ID).Order("posted_at").Find(&comments).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	items := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		items = append(items, map[string]any{
			"id":        c.ID,
			"author":    h.userName(c.UID),
			"message":   c.Message,
			"posted_at": c.PostedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ProjectHandler) addComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	comment, warning, err := h.Svc.AddComment(actor, id, body.Message)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	resp := map[string]any{
		"id":        comment.ID,
		"message":   comment.Message,
		"posted_at": comment.PostedAt,
	}
	if warning != "" {
		resp["warning"] = warning
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

// History: GET /projects/{id}/history – the audit trail, newest first.
func (h *ProjectHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, project, ok := h.load(w, r)
	if !ok {
		return
	}
	if !actor.CanView(project) {
		httpx.JSONError(w, http.StatusForbidden, workflow.ErrForbidden.Error(), nil)
		return
	}
	var entries []models.ProjectHistory
	if err := h.DB.Where("project_id = ?", project.ID).Order("id desc").Find(&entries).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{
			"status":     e.Status,
			"updated_at": e.UpdatedAt,
			"updated_by": h.userName(e.UpdatedBy),
		}
		if e.StartDate != nil {
			item["start_date"] = *e.StartDate
		}
		if e.EndDate != nil {
			item["end_date"] = *e.EndDate
		}
		if e.NbStudents != nil {
			item["nb_students"] = *e.NbStudents
		}
		items = append(items, item)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

// load resolves actor and project for {id} routes, writing the error itself.
func (h *ProjectHandler) load(w http.ResponseWriter, r *http.Request) (workflow.Actor, *models.Project, bool) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return workflow.Actor{}, nil, false
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return workflow.Actor{}, nil, false
	}
	project, err := h.Svc.Get(id)
	if err != nil {
		writeWorkflowError(w, err)
		return workflow.Actor{}, nil, false
	}
	return actor, project, true
}

func (h *ProjectHandler) summary(p *models.Project, actor workflow.Actor) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"title":       p.Title,
		"school_year": p.SchoolYear,
		"axis":        p.Axis,
		"priority":    p.Priority,
		"divisions":   divisions.Names(p.DivisionList(), ", "),
		"start_date":  p.StartDate,
		"end_date":    p.EndDate,
		"status":      p.Status,
		"has_budget":  p.HasBudget(),
		"can_edit":    actor.CanEdit(p) && workflow.Status(p.Status).Editable(),
	}
}

func (h *ProjectHandler) detail(p *models.Project, actor workflow.Actor) map[string]any {
	members := make([]map[string]any, 0, len(p.Members))
	for _, m := range p.Members {
		var personnel models.Personnel
		if err := h.DB.First(&personnel, m.PID).Error; err == nil {
			members = append(members, map[string]any{
				"id":         personnel.ID,
				"name":       personnel.FullName(),
				"department": personnel.Department,
			})
		}
	}
	budgets := map[string]any{}
	for _, kind := range models.BudgetKinds {
		for year := 1; year <= 2; year++ {
			amount, comment := p.BudgetSlot(kind, year)
			if *amount != 0 {
				budgets[kind+"_"+strconv.Itoa(year)] = map[string]any{
					"amount":  *amount,
					"comment": *comment,
				}
			}
		}
	}
	out := map[string]any{
		"id":           p.ID,
		"title":        p.Title,
		"objectives":   p.Objectives,
		"description":  p.Description,
		"indicators":   p.Indicators,
		"website":      p.Website,
		"school_year":  p.SchoolYear,
		"axis":         p.Axis,
		"priority":     p.Priority,
		"paths":        p.PathList(),
		"skills":       p.SkillList(),
		"divisions":    p.DivisionList(),
		"departments":  p.DepartmentList(),
		"mode":         p.Mode,
		"requirement":  p.Requirement,
		"location":     p.Location,
		"is_recurring": p.IsRecurring,
		"start_date":   p.StartDate,
		"end_date":     p.EndDate,
		"nb_students":  p.NbStudents,
		"members":      members,
		"budgets":      budgets,
		"status":       p.Status,
		"created_by":   h.userName(p.UID),
		"modified_at":  p.ModifiedAt,
		"can_edit":     actor.CanEdit(p) && workflow.Status(p.Status).Editable(),
	}
	if p.Requirement == "no" && actor.CanEdit(p) {
		out["students"] = p.Students
	}
	if p.IsFieldTrip() {
		out["fieldtrip"] = map[string]string{
			"address":    p.FieldtripAddress,
			"ext_people": p.FieldtripExtPeople,
			"impact":     p.FieldtripImpact,
		}
	}
	if p.ValidatedAt != nil {
		out["validated_at"] = *p.ValidatedAt
		out["validated_by"] = h.userName(p.ValidatedBy)
	}
	return out
}

// userName resolves a user id to the staff display name, for audit fields.
func (h *ProjectHandler) userName(uid uint) string {
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		return ""
	}
	var personnel models.Personnel
	if err := h.DB.First(&personnel, user.PID).Error; err != nil {
		return ""
	}
	return personnel.FullName()
}

// pathID extracts the {id} path value.
func pathID(r *http.Request) (uint, bool) {
	raw := r.PathValue("id")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// writeWorkflowError maps the workflow sentinels to HTTP statuses; the
// message is the user-facing French text carried by the sentinel.
func writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, workflow.ErrForbidden):
		httpx.JSONError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, workflow.ErrLocked), errors.Is(err, workflow.ErrValidated),
		errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrInvalidInput):
		httpx.JSONError(w, http.StatusConflict, err.Error(), nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
	}
}
